package store

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrStorageExhausted = errors.New("backing store refused further writes")
	ErrEmbeddedNewline  = errors.New("record contains a newline")
	ErrWriterOpen       = errors.New("candidate stream is still being written")
	ErrWriterClosed     = errors.New("candidate stream writer is closed")
)

const DefaultFlushEvery = 4096

// Writer appends newline-terminated records. Records become committed once
// a flush reaches the underlying writer; after the first write failure
// every call returns the same ErrStorageExhausted error.
type Writer struct {
	layer      flushWriteCloser
	bw         *bufio.Writer
	closer     io.Closer
	flushEvery int

	pending   uint64
	committed uint64
	err       error
	closed    bool
}

func NewWriter(w io.Writer, codec Codec) (*Writer, error) {
	layer, err := codec.wrapWriter(w)
	if err != nil {
		return nil, err
	}
	return &Writer{
		layer:      layer,
		bw:         bufio.NewWriterSize(layer, 64*1024),
		flushEvery: DefaultFlushEvery,
	}, nil
}

func (w *Writer) fail(err error) error {
	w.err = fmt.Errorf("%w: %w", ErrStorageExhausted, err)
	return w.err
}

func (w *Writer) Append(record string) error {
	if w.err != nil {
		return w.err
	}
	if w.closed {
		return ErrWriterClosed
	}
	if strings.ContainsRune(record, '\n') {
		return fmt.Errorf("%w: %q", ErrEmbeddedNewline, record)
	}
	if _, err := w.bw.WriteString(record); err != nil {
		return w.fail(err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return w.fail(err)
	}
	w.pending++
	if w.pending-w.committed >= uint64(w.flushEvery) {
		return w.Flush()
	}
	return nil
}

func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		return w.fail(err)
	}
	if err := w.layer.Flush(); err != nil {
		return w.fail(err)
	}
	w.committed = w.pending
	return nil
}

// Committed is the number of records known to have reached storage.
func (w *Writer) Committed() uint64 {
	return w.committed
}

// Close flushes and finalizes the stream. It is safe to call after a
// failure; the underlying closer always runs.
func (w *Writer) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	err := w.Flush()
	if cerr := w.layer.Close(); cerr != nil && err == nil {
		err = w.fail(cerr)
	}
	if w.closer != nil {
		if cerr := w.closer.Close(); cerr != nil && err == nil {
			err = w.fail(cerr)
		}
	}
	return err
}

// Reader returns records in write order. Reading stops at the limit, if
// set, and a final record missing its newline (a torn write) is dropped.
type Reader struct {
	br      *bufio.Reader
	release func()
	closer  io.Closer
	index   uint64
	limit   uint64
	limited bool
	done    bool
}

func NewReader(r io.Reader, codec Codec) (*Reader, error) {
	inner, release, err := codec.wrapReader(r)
	if err != nil {
		return nil, err
	}
	return &Reader{br: bufio.NewReaderSize(inner, 64*1024), release: release}, nil
}

// SetLimit caps the number of records the reader will return.
func (r *Reader) SetLimit(n uint64) {
	r.limit = n
	r.limited = true
}

func (r *Reader) next() (string, bool, error) {
	if r.done || (r.limited && r.index >= r.limit) {
		return "", false, nil
	}
	line, err := r.br.ReadString('\n')
	if err != nil {
		r.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", false, nil
		}
		return "", false, err
	}
	r.index++
	return line[:len(line)-1], true, nil
}

// ReadBatch returns up to n records. An empty slice with a nil error means
// the stream is exhausted.
func (r *Reader) ReadBatch(n int) ([]string, error) {
	out := make([]string, 0, n)
	for len(out) < n {
		rec, ok, err := r.next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// Skip advances past n records and returns how many were skipped.
func (r *Reader) Skip(n uint64) (uint64, error) {
	var skipped uint64
	for skipped < n {
		_, ok, err := r.next()
		if err != nil {
			return skipped, err
		}
		if !ok {
			break
		}
		skipped++
	}
	return skipped, nil
}

// Index is the position of the next record.
func (r *Reader) Index() uint64 {
	return r.index
}

func (r *Reader) Close() error {
	r.release()
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
