package session

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lth/hashcollider/internal/cracker"
	"github.com/lth/hashcollider/internal/extract"
	"github.com/lth/hashcollider/internal/oracle"
	"github.com/lth/hashcollider/internal/parsers"
	"github.com/lth/hashcollider/internal/store"
)

func digest(alg oracle.Algorithm, s string) string {
	return hex.EncodeToString(alg.Sum([]byte(s)))
}

func newSession(t *testing.T, target string, opts Options) *Session {
	t.Helper()
	if opts.Registry == nil {
		reg, err := parsers.ByName(nil)
		require.NoError(t, err)
		opts.Registry = reg
	}
	s, err := New(digest(oracle.MD5, target), opts)
	require.NoError(t, err)
	return s
}

func tempFiles(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(os.TempDir(), "hashcollider-*.candidates"))
	require.NoError(t, err)
	return matches
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "generation failed", GenerationFailed.String())
	assert.False(t, Verifying.Terminal())
	assert.True(t, Found.Terminal())
	assert.True(t, Cancelled.Terminal())
}

func TestNewIdentifiesAlgorithm(t *testing.T) {
	s, err := New("0cc175b9c0f1b6a831c399e269772661", Options{})
	require.NoError(t, err)
	assert.Equal(t, "md5", s.Oracle().Algorithm().Name)
	assert.Equal(t, Idle, s.State())

	_, err = New("abc", Options{})
	assert.ErrorIs(t, err, oracle.ErrUnknownAlgorithm)

	_, err = New(digest(oracle.MD5, "a"), Options{Catalog: oracle.Extended()})
	assert.ErrorIs(t, err, oracle.ErrAmbiguousAlgorithm)

	s, err = New(digest(oracle.MD4, "a"), Options{Catalog: oracle.Extended(), Algorithm: "md4"})
	require.NoError(t, err)
	assert.Equal(t, "md4", s.Oracle().Algorithm().Name)
}

func TestRunFindsParameterCombination(t *testing.T) {
	s := newSession(t, "bob|42", Options{Workers: 2})
	n, err := s.Feed("user=bob&id=42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "20", s.Total().String())

	var phases []State
	s.SetPhaseCallback(func(st State) { phases = append(phases, st) })

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, out.State)
	assert.Equal(t, "bob|42", out.Candidate)
	assert.Equal(t, "md5", out.Algorithm)
	assert.Equal(t, uint64(20), out.Written)
	assert.Empty(t, out.StreamPath)
	assert.Equal(t, []State{Generating, Verifying, Found}, phases)
}

func TestRunFindsEmptyCandidate(t *testing.T) {
	s := newSession(t, "", Options{Workers: 1})
	_, err := s.Feed("just words")
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, out.State)
	assert.Equal(t, "", out.Candidate)
}

func TestRunExhausted(t *testing.T) {
	s := newSession(t, "not there", Options{Workers: 3})
	_, err := s.Feed(`["a", "b", "c"]`)
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Exhausted, out.State)
	assert.Equal(t, out.Total.Uint64(), out.Processed)
	assert.Equal(t, out.Total.Uint64(), out.Checks)

	_, err = s.Run(context.Background())
	assert.Error(t, err)
	_, err = s.Feed("more")
	assert.Error(t, err)
}

func TestRunEmptyVocabulary(t *testing.T) {
	s := newSession(t, "x", Options{})
	out, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
	assert.Equal(t, Idle, out.State)
}

func TestFeedWithoutParser(t *testing.T) {
	reg, err := extract.NewRegistry(parsers.JSON{})
	require.NoError(t, err)
	s := newSession(t, "x", Options{Registry: reg})

	_, err = s.Feed("not json")
	assert.ErrorIs(t, err, extract.ErrNoParserFound)
	assert.Zero(t, s.Vocabulary().Len())

	n, err := s.FeedWith("json", `{"k": "v"}`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunKeepsWorkingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.zst")
	s := newSession(t, "c.b", Options{WorkingFile: path, Codec: store.CodecZstd, Workers: 2})
	_, err := s.Feed("a b c")
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Found, out.State)
	assert.Equal(t, path, out.StreamPath)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRunRemovesTemporaryStream(t *testing.T) {
	before := len(tempFiles(t))
	s := newSession(t, "nope", Options{Codec: store.CodecLZ4})
	_, err := s.Feed("a b")
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, tempFiles(t), before)
}

func TestRunCancelled(t *testing.T) {
	s := newSession(t, "nope", Options{})
	_, err := s.Feed("a b c d")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out.State)
	assert.Empty(t, out.Candidate)
}

func TestRunCancelledWhileVerifying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newSession(t, "nope", Options{Workers: 1, BatchSize: 1})
	_, err := s.Feed("a b c")
	require.NoError(t, err)
	// the first progress report always gets through the throttle
	s.opts.OnVerify = func(cracker.Progress) { cancel() }

	out, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, out.State)
	assert.Less(t, out.Processed, out.Total.Uint64())
}

func TestRunGenerationFailed(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("needs /dev/full")
	}
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("needs /dev/full")
	}

	s := newSession(t, "nope", Options{WorkingFile: "/dev/full", ProceedOnPartial: true})
	_, err := s.Feed("a b c")
	require.NoError(t, err)

	out, err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStorageExhausted), err.Error())
	assert.Equal(t, GenerationFailed, out.State)
	assert.Zero(t, out.Written)
	assert.True(t, strings.HasPrefix(err.Error(), "generating candidates"))
}
