package oracle

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/md4"
	"golang.org/x/crypto/ripemd160"
	"golang.org/x/crypto/sha3"
)

// Algorithm is a hash function the oracle can test candidates against.
type Algorithm struct {
	Name   string
	HexLen int
	New    func() hash.Hash
}

// Sum returns the raw digest of data.
func (a Algorithm) Sum(data []byte) []byte {
	h := a.New()
	h.Write(data)
	return h.Sum(nil)
}

// Catalog is an ordered set of algorithms. Order matters: it is the order
// in which ambiguous candidates are reported.
type Catalog []Algorithm

func mustBlake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

func mustBlake2b512() hash.Hash {
	h, err := blake2b.New512(nil)
	if err != nil {
		panic(err)
	}
	return h
}

func mustBlake2s256() hash.Hash {
	h, err := blake2s.New256(nil)
	if err != nil {
		panic(err)
	}
	return h
}

var (
	MD5    = Algorithm{Name: "md5", HexLen: 32, New: md5.New}
	SHA1   = Algorithm{Name: "sha1", HexLen: 40, New: sha1.New}
	SHA224 = Algorithm{Name: "sha224", HexLen: 56, New: sha256.New224}
	SHA256 = Algorithm{Name: "sha256", HexLen: 64, New: sha256.New}
	SHA384 = Algorithm{Name: "sha384", HexLen: 96, New: sha512.New384}
	SHA512 = Algorithm{Name: "sha512", HexLen: 128, New: sha512.New}

	CRC32      = Algorithm{Name: "crc32", HexLen: 8, New: func() hash.Hash { return crc32.NewIEEE() }}
	Adler32    = Algorithm{Name: "adler32", HexLen: 8, New: func() hash.Hash { return adler32.New() }}
	FNV1a64    = Algorithm{Name: "fnv1a-64", HexLen: 16, New: func() hash.Hash { return fnv.New64a() }}
	XXH64      = Algorithm{Name: "xxh64", HexLen: 16, New: func() hash.Hash { return xxhash.New() }}
	MD4        = Algorithm{Name: "md4", HexLen: 32, New: md4.New}
	RIPEMD160  = Algorithm{Name: "ripemd160", HexLen: 40, New: ripemd160.New}
	SHA512_224 = Algorithm{Name: "sha512-224", HexLen: 56, New: sha512.New512_224}
	SHA512_256 = Algorithm{Name: "sha512-256", HexLen: 64, New: sha512.New512_256}
	SHA3_224   = Algorithm{Name: "sha3-224", HexLen: 56, New: sha3.New224}
	SHA3_256   = Algorithm{Name: "sha3-256", HexLen: 64, New: sha3.New256}
	SHA3_384   = Algorithm{Name: "sha3-384", HexLen: 96, New: sha3.New384}
	SHA3_512   = Algorithm{Name: "sha3-512", HexLen: 128, New: sha3.New512}
	BLAKE2s256 = Algorithm{Name: "blake2s-256", HexLen: 64, New: mustBlake2s256}
	BLAKE2b256 = Algorithm{Name: "blake2b-256", HexLen: 64, New: mustBlake2b256}
	BLAKE2b512 = Algorithm{Name: "blake2b-512", HexLen: 128, New: mustBlake2b512}
	BLAKE3     = Algorithm{Name: "blake3", HexLen: 64, New: func() hash.Hash { return blake3.New() }}
)

// Classic holds the algorithms whose hex lengths are pairwise distinct, so
// identification by length is never ambiguous.
func Classic() Catalog {
	return Catalog{MD5, SHA1, SHA224, SHA256, SHA384, SHA512}
}

// Extended is Classic followed by every other supported algorithm. Most
// lengths are shared, so digests usually need an explicit algorithm.
func Extended() Catalog {
	return append(Classic(),
		CRC32, Adler32, FNV1a64, XXH64, MD4, RIPEMD160,
		SHA512_224, SHA512_256, SHA3_224, SHA3_256, SHA3_384, SHA3_512,
		BLAKE2s256, BLAKE2b256, BLAKE2b512, BLAKE3,
	)
}

func (c Catalog) Lookup(name string) (Algorithm, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range c {
		if a.Name == name {
			return a, true
		}
	}
	return Algorithm{}, false
}

func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, a := range c {
		names[i] = a.Name
	}
	return names
}

// Lengths returns the distinct hex lengths in ascending order.
func (c Catalog) Lengths() []int {
	seen := make(map[int]bool)
	var out []int
	for _, a := range c {
		if !seen[a.HexLen] {
			seen[a.HexLen] = true
			out = append(out, a.HexLen)
		}
	}
	sort.Ints(out)
	return out
}

// Matching returns every algorithm producing digests of the given hex length,
// in catalog order.
func (c Catalog) Matching(hexLen int) Catalog {
	var out Catalog
	for _, a := range c {
		if a.HexLen == hexLen {
			out = append(out, a)
		}
	}
	return out
}
