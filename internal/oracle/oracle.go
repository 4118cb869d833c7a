package oracle

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

var (
	ErrUnknownAlgorithm   = errors.New("no supported algorithm produces digests of this length")
	ErrAmbiguousAlgorithm = errors.New("digest length matches more than one algorithm")
	ErrInvalidDigest      = errors.New("digest is not a hex string")
	ErrLengthMismatch     = errors.New("digest length does not match algorithm")
)

// AmbiguousAlgorithmError lists every algorithm sharing the digest length.
type AmbiguousAlgorithmError struct {
	Length     int
	Candidates []string
}

func (e *AmbiguousAlgorithmError) Error() string {
	return fmt.Sprintf("%d hex characters could be any of: %s (choose one explicitly)",
		e.Length, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousAlgorithmError) Is(target error) bool {
	return target == ErrAmbiguousAlgorithm
}

func normalize(digest string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(digest))
	if d == "" {
		return "", ErrInvalidDigest
	}
	if _, err := hex.DecodeString(d); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return d, nil
}

// Identify picks the single algorithm in c whose hex length equals the
// digest's. It never guesses between several.
func (c Catalog) Identify(digest string) (Algorithm, error) {
	d, err := normalize(digest)
	if err != nil {
		return Algorithm{}, err
	}
	matches := c.Matching(len(d))
	switch len(matches) {
	case 0:
		return Algorithm{}, fmt.Errorf("%w: %d hex characters", ErrUnknownAlgorithm, len(d))
	case 1:
		return matches[0], nil
	default:
		return Algorithm{}, &AmbiguousAlgorithmError{Length: len(d), Candidates: matches.Names()}
	}
}

// Resolve returns the named algorithm when name is set, checking it against
// the digest length, and falls back to Identify otherwise.
func (c Catalog) Resolve(digest, name string) (Algorithm, error) {
	if name == "" {
		return c.Identify(digest)
	}
	alg, ok := c.Lookup(name)
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	d, err := normalize(digest)
	if err != nil {
		return Algorithm{}, err
	}
	if len(d) != alg.HexLen {
		return Algorithm{}, fmt.Errorf("%w: %s wants %d hex characters, got %d",
			ErrLengthMismatch, alg.Name, alg.HexLen, len(d))
	}
	return alg, nil
}

// Oracle answers whether a candidate hashes to the target digest. Check is
// safe for concurrent use; the check counter is the only shared state.
type Oracle struct {
	alg    Algorithm
	digest string
	target []byte
	checks atomic.Uint64
}

func New(digest string, alg Algorithm) (*Oracle, error) {
	d, err := normalize(digest)
	if err != nil {
		return nil, err
	}
	if len(d) != alg.HexLen {
		return nil, fmt.Errorf("%w: %s wants %d hex characters, got %d",
			ErrLengthMismatch, alg.Name, alg.HexLen, len(d))
	}
	target, _ := hex.DecodeString(d)
	return &Oracle{alg: alg, digest: d, target: target}, nil
}

func (o *Oracle) Algorithm() Algorithm {
	return o.alg
}

// Digest returns the target in lowercase hex.
func (o *Oracle) Digest() string {
	return o.digest
}

func (o *Oracle) Check(candidate string) bool {
	o.checks.Add(1)
	return bytes.Equal(o.alg.Sum([]byte(candidate)), o.target)
}

func (o *Oracle) Hex(candidate string) string {
	return hex.EncodeToString(o.alg.Sum([]byte(candidate)))
}

func (o *Oracle) Checks() uint64 {
	return o.checks.Load()
}

func (o *Oracle) String() string {
	return fmt.Sprintf("%s(%s)", o.alg.Name, o.digest)
}
