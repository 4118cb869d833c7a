package oracle

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestAlgorithmHexLengths(t *testing.T) {
	for _, alg := range Extended() {
		got := len(hex.EncodeToString(alg.Sum([]byte("test"))))
		assert.Equal(t, alg.HexLen, got, alg.Name)
	}
}

func TestIdentifyClassic(t *testing.T) {
	tests := []struct {
		digest string
		want   string
	}{
		{md5Hex("ab"), "md5"},
		{strings.Repeat("a", 40), "sha1"},
		{strings.Repeat("b", 56), "sha224"},
		{strings.Repeat("c", 64), "sha256"},
		{strings.Repeat("d", 96), "sha384"},
		{strings.Repeat("e", 128), "sha512"},
	}

	for _, tt := range tests {
		alg, err := Classic().Identify(tt.digest)
		require.NoError(t, err)
		assert.Equal(t, tt.want, alg.Name)
	}
}

func TestIdentifyUnknown(t *testing.T) {
	_, err := Classic().Identify("abcd")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = Classic().Identify("xyz")
	assert.ErrorIs(t, err, ErrInvalidDigest)

	_, err = Classic().Identify("   ")
	assert.ErrorIs(t, err, ErrInvalidDigest)
}

func TestIdentifyAmbiguous(t *testing.T) {
	catalog := Catalog{MD4, MD5}

	_, err := catalog.Identify(md5Hex("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousAlgorithm)

	var amb *AmbiguousAlgorithmError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, 32, amb.Length)
	assert.Equal(t, []string{"md4", "md5"}, amb.Candidates)

	_, err = Extended().Identify(md5Hex("x"))
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, []string{"md5", "md4"}, amb.Candidates)
}

func TestResolve(t *testing.T) {
	alg, err := Extended().Resolve(md5Hex("x"), "MD4")
	require.NoError(t, err)
	assert.Equal(t, "md4", alg.Name)

	_, err = Extended().Resolve(md5Hex("x"), "sha1")
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Extended().Resolve(md5Hex("x"), "whirlpool")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	alg, err = Classic().Resolve(md5Hex("x"), "")
	require.NoError(t, err)
	assert.Equal(t, "md5", alg.Name)
}

func TestCheck(t *testing.T) {
	sum := sha256.Sum256([]byte("a+b"))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))

	o, err := New(digest, SHA256)
	require.NoError(t, err)

	assert.True(t, o.Check("a+b"))
	assert.False(t, o.Check("a+c"))
	assert.False(t, o.Check(""))
	assert.Equal(t, uint64(3), o.Checks())
	assert.Equal(t, strings.ToLower(digest), o.Digest())
	assert.Equal(t, o.Digest(), o.Hex("a+b"))
}

func TestNewRejectsMismatchedLength(t *testing.T) {
	_, err := New(md5Hex("x"), SHA1)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCheckConcurrent(t *testing.T) {
	o, err := New(md5Hex("needle"), MD5)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	hits := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if o.Check("needle") {
					mu.Lock()
					hits++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4000, hits)
	assert.Equal(t, uint64(4000), o.Checks())
}

func TestCatalogLengths(t *testing.T) {
	assert.Equal(t, []int{32, 40, 56, 64, 96, 128}, Classic().Lengths())
	assert.Equal(t, []int{8, 16, 32, 40, 56, 64, 96, 128}, Extended().Lengths())
}

func BenchmarkCheckMD5(b *testing.B) {
	o, _ := New(md5Hex("needle"), MD5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		o.Check("haystack+candidate")
	}
}
