package main

import (
	"bufio"
	"context"
	"io"
	"math/rand/v2"
	"strings"
)

const charsetBench = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789=&.+|"

// lineSource streams the non-blank lines of r, one raw input each. The
// scan error, if any, is sent on the second channel once lines is closed.
func lineSource(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	ch := make(chan string, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(ch)

		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 16*1024*1024)

		for scanner.Scan() {
			line := strings.TrimRight(scanner.Text(), "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case ch <- line:
			}
		}
		errc <- scanner.Err()
	}()

	return ch, errc
}

// sliceSource serves an in-memory candidate list to the cracker.
type sliceSource struct {
	items []string
	pos   int
}

func (s *sliceSource) ReadBatch(n int) ([]string, error) {
	end := min(s.pos+n, len(s.items))
	batch := s.items[s.pos:end]
	s.pos = end
	return batch, nil
}

// randomCandidates builds a reproducible benchmark corpus of count strings
// between minLen and maxLen characters.
func randomCandidates(count, minLen, maxLen int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]string, count)
	buf := make([]byte, maxLen)
	for i := range out {
		length := minLen
		if maxLen > minLen {
			length = minLen + rng.IntN(maxLen-minLen+1)
		}
		for j := 0; j < length; j++ {
			buf[j] = charsetBench[rng.IntN(len(charsetBench))]
		}
		out[i] = string(buf[:length])
	}
	return out
}
