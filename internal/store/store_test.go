package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tricky = []string{
	"",
	"a+b",
	"a|b.c",
	"+|.",
	"  padded  ",
	"tab\there",
	"carriage\rreturn",
	"trailing\r",
	"ünïcødé",
	"",
}

func TestRoundTripCodecs(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			s, err := Create(Options{Path: filepath.Join(t.TempDir(), "c.txt"), Codec: codec, FlushEvery: 3})
			require.NoError(t, err)
			defer s.Release()

			for _, rec := range tricky {
				require.NoError(t, s.Writer().Append(rec))
			}
			require.NoError(t, s.Writer().Close())
			assert.Equal(t, uint64(len(tricky)), s.Count())

			r, err := s.Open()
			require.NoError(t, err)
			defer r.Close()

			var got []string
			for {
				batch, err := r.ReadBatch(4)
				require.NoError(t, err)
				if len(batch) == 0 {
					break
				}
				got = append(got, batch...)
			}
			assert.Equal(t, tricky, got)
			assert.Equal(t, uint64(len(tricky)), r.Index())
		})
	}
}

func TestAppendRejectsNewline(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, CodecNone)
	require.NoError(t, err)

	err = w.Append("two\nlines")
	assert.ErrorIs(t, err, ErrEmbeddedNewline)
	require.NoError(t, w.Append("ok"))
	require.NoError(t, w.Close())
	assert.Equal(t, "ok\n", buf.String())
}

// limitedWriter accepts limit bytes and then fails like a full disk.
type limitedWriter struct {
	buf   bytes.Buffer
	limit int
}

var errDiskFull = errors.New("no space left on device")

func (l *limitedWriter) Write(p []byte) (int, error) {
	room := l.limit - l.buf.Len()
	if room <= 0 {
		return 0, errDiskFull
	}
	if len(p) > room {
		l.buf.Write(p[:room])
		return room, errDiskFull
	}
	return l.buf.Write(p)
}

func TestStorageExhaustedPreservesCommitted(t *testing.T) {
	lw := &limitedWriter{limit: 25}
	w, err := NewWriter(lw, CodecNone)
	require.NoError(t, err)
	w.flushEvery = 2

	// Each record is "recN\n", 5 bytes; two flushes fit, the third tears.
	var appendErr error
	for i := 0; i < 10 && appendErr == nil; i++ {
		appendErr = w.Append("rec" + string(rune('0'+i)))
	}
	require.Error(t, appendErr)
	assert.ErrorIs(t, appendErr, ErrStorageExhausted)
	assert.ErrorIs(t, appendErr, errDiskFull)
	assert.Equal(t, uint64(4), w.Committed())

	assert.ErrorIs(t, w.Append("more"), ErrStorageExhausted)
	assert.ErrorIs(t, w.Close(), ErrStorageExhausted)

	r, err := NewReader(bytes.NewReader(lw.buf.Bytes()), CodecNone)
	require.NoError(t, err)
	r.SetLimit(w.Committed())
	got, err := r.ReadBatch(100)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec0", "rec1", "rec2", "rec3"}, got)
}

func TestReaderDropsTornRecord(t *testing.T) {
	r, err := NewReader(strings.NewReader("one\ntwo\nthr"), CodecNone)
	require.NoError(t, err)

	got, err := r.ReadBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)

	got, err = r.ReadBatch(10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReaderSkip(t *testing.T) {
	r, err := NewReader(strings.NewReader("a\nb\nc\nd\n"), CodecNone)
	require.NoError(t, err)

	n, err := r.Skip(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
	assert.Equal(t, uint64(2), r.Index())

	got, err := r.ReadBatch(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got)

	n, err = r.Skip(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)
}

func TestOpenWhileWriting(t *testing.T) {
	s, err := Create(Options{})
	require.NoError(t, err)
	defer s.Release()

	_, err = s.Open()
	assert.ErrorIs(t, err, ErrWriterOpen)

	require.NoError(t, s.Writer().Close())
	r, err := s.Open()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.ErrorIs(t, s.Writer().Append("late"), ErrWriterClosed)
}

func TestReleaseRemovesTemporary(t *testing.T) {
	s, err := Create(Options{})
	require.NoError(t, err)
	assert.False(t, s.Persistent())

	require.NoError(t, s.Writer().Append("x"))
	require.NoError(t, s.Release())
	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Release())
}

func TestReleaseKeepsPersistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.txt")
	s, err := Create(Options{Path: path})
	require.NoError(t, err)
	assert.True(t, s.Persistent())

	require.NoError(t, s.Writer().Append("x"))
	require.NoError(t, s.Release())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in   string
		want Codec
	}{
		{"", CodecNone},
		{"none", CodecNone},
		{"ZSTD", CodecZstd},
		{"lz4", CodecLZ4},
	}
	for _, tt := range tests {
		got, err := ParseCodec(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseCodec("gzip")
	assert.Error(t, err)
}
