// Package store keeps the candidate stream on disk: one candidate per
// newline-terminated UTF-8 line, written once and then read back in order.
package store

import (
	"fmt"
	"os"
)

type Options struct {
	// Path keeps the stream at a caller-chosen location after the run.
	// Empty means a temporary file removed by Release.
	Path       string
	Codec      Codec
	FlushEvery int
}

// Store owns the backing file. It hands out one writer; readers can only be
// opened once that writer is closed.
type Store struct {
	path    string
	persist bool
	codec   Codec
	writer  *Writer
	removed bool
}

func Create(opts Options) (*Store, error) {
	var (
		f   *os.File
		err error
	)
	if opts.Path == "" {
		f, err = os.CreateTemp("", "hashcollider-*.candidates")
	} else {
		f, err = os.OpenFile(opts.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	}
	if err != nil {
		return nil, fmt.Errorf("creating candidate stream: %w", err)
	}

	w, err := NewWriter(f, opts.Codec)
	if err != nil {
		f.Close()
		if opts.Path == "" {
			os.Remove(f.Name())
		}
		return nil, err
	}
	w.closer = f
	if opts.FlushEvery > 0 {
		w.flushEvery = opts.FlushEvery
	}

	return &Store{
		path:    f.Name(),
		persist: opts.Path != "",
		codec:   opts.Codec,
		writer:  w,
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Persistent() bool {
	return s.persist
}

func (s *Store) Codec() Codec {
	return s.codec
}

func (s *Store) Writer() *Writer {
	return s.writer
}

// Count is the number of committed records.
func (s *Store) Count() uint64 {
	return s.writer.Committed()
}

func (s *Store) Size() int64 {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

// Open returns a reader over the committed records.
func (s *Store) Open() (*Reader, error) {
	if !s.writer.closed {
		return nil, ErrWriterOpen
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening candidate stream: %w", err)
	}
	r, err := NewReader(f, s.codec)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	r.SetLimit(s.writer.Committed())
	return r, nil
}

// Release closes the writer if still open and deletes temporary streams.
// Persistent streams are left in place. Calling it twice is harmless.
func (s *Store) Release() error {
	var err error
	if !s.writer.closed {
		err = s.writer.Close()
	}
	if !s.persist && !s.removed {
		s.removed = true
		if rerr := os.Remove(s.path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}
