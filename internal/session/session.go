// Package session drives one search: it owns the target oracle, the parser
// registry and the vocabulary, generates the candidate stream and verifies
// it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/lth/hashcollider/internal/cracker"
	"github.com/lth/hashcollider/internal/extract"
	"github.com/lth/hashcollider/internal/generator"
	"github.com/lth/hashcollider/internal/oracle"
	"github.com/lth/hashcollider/internal/store"
)

var ErrEmptyVocabulary = errors.New("no input to work on")

type State int

const (
	Idle State = iota
	Generating
	Verifying
	Found
	Exhausted
	Cancelled
	GenerationFailed
)

var stateNames = [...]string{
	Idle:             "idle",
	Generating:       "generating",
	Verifying:        "verifying",
	Found:            "found",
	Exhausted:        "exhausted",
	Cancelled:        "cancelled",
	GenerationFailed: "generation failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s >= Found
}

type Options struct {
	// Catalog defaults to oracle.Classic().
	Catalog   oracle.Catalog
	Algorithm string

	Registry   *extract.Registry
	Separators []string
	Workers    int
	BatchSize  int

	WorkingFile string
	Codec       store.Codec

	// ProceedOnPartial verifies the committed part of the stream when
	// generation fails on storage.
	ProceedOnPartial bool

	OnGenerate func(generator.Progress)
	OnVerify   func(cracker.Progress)
	// OnPhase is told about every state change.
	OnPhase func(State)

	Logger *slog.Logger
}

type Outcome struct {
	State     State
	Candidate string
	Algorithm string
	Digest    string
	Elements  int
	Total     *big.Int
	Written   uint64
	Processed uint64
	Checks    uint64
	Partial   bool
	// StreamPath is set when the stream was kept on disk.
	StreamPath string
	Duration   time.Duration
}

type Session struct {
	opts      Options
	oracle    *oracle.Oracle
	extractor *extract.Extractor
	logger    *slog.Logger
	state     State
}

// New identifies the algorithm for digest. Unknown and ambiguous digests
// fail here, before any work starts.
func New(digest string, opts Options) (*Session, error) {
	if opts.Catalog == nil {
		opts.Catalog = oracle.Classic()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Registry == nil {
		opts.Registry = &extract.Registry{}
	}

	alg, err := opts.Catalog.Resolve(digest, opts.Algorithm)
	if err != nil {
		return nil, err
	}
	o, err := oracle.New(digest, alg)
	if err != nil {
		return nil, err
	}
	opts.Logger.Debug("dealing with data hashed using", "algorithm", alg.Name)

	return &Session{
		opts:      opts,
		oracle:    o,
		extractor: extract.New(opts.Registry, opts.Logger),
		logger:    opts.Logger,
	}, nil
}

func (s *Session) Oracle() *oracle.Oracle {
	return s.oracle
}

// SetPhaseCallback replaces Options.OnPhase.
func (s *Session) SetPhaseCallback(cb func(State)) {
	s.opts.OnPhase = cb
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Vocabulary() *extract.Vocabulary {
	return s.extractor.Vocabulary()
}

// Feed extracts elements from raw. ErrNoParserFound is returned for the
// caller to skip or abort on; the vocabulary is left as it was.
func (s *Session) Feed(raw string) (int, error) {
	if s.state != Idle {
		return 0, fmt.Errorf("cannot feed a session that is %s", s.state)
	}
	return s.extractor.Feed(raw)
}

func (s *Session) FeedWith(parser, raw string) (int, error) {
	if s.state != Idle {
		return 0, fmt.Errorf("cannot feed a session that is %s", s.state)
	}
	return s.extractor.FeedWith(parser, raw)
}

func (s *Session) generator() *generator.Generator {
	return generator.New(generator.Config{
		Elements:   s.Vocabulary().Elements(),
		Separators: s.opts.Separators,
	})
}

// Total is the number of candidates the current vocabulary produces.
func (s *Session) Total() *big.Int {
	return s.generator().Total()
}

func (s *Session) enter(state State) {
	s.logger.Debug("session state", "from", s.state, "to", state)
	s.state = state
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(state)
	}
}

// Run generates the candidate stream and verifies it. The returned error is
// non-nil for ErrEmptyVocabulary and for GenerationFailed or read failures;
// Cancelled is an outcome, not an error. The stream is released on every
// path: temporary files are removed, a configured working file is kept.
func (s *Session) Run(ctx context.Context) (out Outcome, err error) {
	start := time.Now()
	alg := s.oracle.Algorithm()
	out = Outcome{Algorithm: alg.Name, Digest: s.oracle.Digest(), Elements: s.Vocabulary().Len()}
	defer func() {
		out.State = s.state
		out.Checks = s.oracle.Checks()
		out.Duration = time.Since(start)
	}()

	if s.state != Idle {
		return out, fmt.Errorf("session already ran (%s)", s.state)
	}
	if s.Vocabulary().Len() == 0 {
		return out, ErrEmptyVocabulary
	}

	gen := s.generator()
	gen.SetProgressCallback(s.opts.OnGenerate)
	total := gen.Total()
	out.Total = total
	s.logger.Debug("generating candidates", "total", total, "elements", out.Elements, "separators", len(gen.Separators()))

	st, err := store.Create(store.Options{Path: s.opts.WorkingFile, Codec: s.opts.Codec})
	if err != nil {
		s.enter(GenerationFailed)
		return out, err
	}
	if st.Persistent() {
		out.StreamPath = st.Path()
	}
	defer func() {
		if rerr := st.Release(); rerr != nil {
			s.logger.Warn("releasing candidate stream", "path", st.Path(), "error", rerr)
		}
	}()

	s.enter(Generating)
	written, genErr := gen.Generate(ctx, st.Writer())
	closeErr := st.Writer().Close()
	out.Written = st.Count()
	s.logger.Debug("generation finished", "handed", written, "committed", out.Written, "bytes", st.Size())

	switch {
	case genErr != nil && ctx.Err() != nil:
		s.enter(Cancelled)
		return out, nil
	case genErr == nil && closeErr != nil:
		genErr = closeErr
	}
	if genErr != nil {
		if !errors.Is(genErr, store.ErrStorageExhausted) || !s.opts.ProceedOnPartial || out.Written == 0 {
			s.enter(GenerationFailed)
			return out, fmt.Errorf("generating candidates: %w", genErr)
		}
		s.logger.Warn("proceeding over partial candidate stream", "committed", out.Written, "error", genErr)
		out.Partial = true
		total = new(big.Int).SetUint64(out.Written)
		out.Total = total
	}

	r, err := st.Open()
	if err != nil {
		s.enter(GenerationFailed)
		return out, err
	}
	defer r.Close()

	s.enter(Verifying)
	c := cracker.New(s.oracle, s.opts.Workers)
	c.SetBatchSize(s.opts.BatchSize)
	c.SetProgressCallback(s.opts.OnVerify)
	res := c.Run(ctx, r, total)
	out.Processed = res.Processed

	switch {
	case res.Found:
		out.Candidate = res.Candidate
		s.enter(Found)
	case res.Cancelled:
		s.enter(Cancelled)
	case res.Err != nil:
		s.enter(Exhausted)
		return out, fmt.Errorf("reading candidate stream: %w", res.Err)
	default:
		s.enter(Exhausted)
	}
	return out, nil
}

// Workers reports the pool size Run will use.
func (s *Session) Workers() int {
	if s.opts.Workers > 0 {
		return s.opts.Workers
	}
	return cracker.DefaultWorkers()
}
