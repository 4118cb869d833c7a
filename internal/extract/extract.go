// Package extract turns raw input strings into vocabulary elements through
// an ordered registry of parsers.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrNoParserFound   = errors.New("no parser accepts the input")
	ErrDuplicateParser = errors.New("parser already registered")
	ErrUnknownParser   = errors.New("unknown parser")
)

// Parsed is the output of a parser: a Sequence, a Mapping or a Scalar.
type Parsed interface {
	Elements() []string
}

type Sequence []string

func (s Sequence) Elements() []string {
	return s
}

// Mapping contributes both keys and values.
type Mapping map[string]string

func (m Mapping) Elements() []string {
	out := make([]string, 0, 2*len(m))
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}

type Scalar struct {
	Value any
}

func (s Scalar) Elements() []string {
	return []string{fmt.Sprint(s.Value)}
}

type Parser interface {
	Name() string
	Check(input string) bool
	Parse(input string) (Parsed, error)
}

// Registry keeps parsers in registration order. Names are unique,
// compared case-insensitively; registering a taken name fails.
type Registry struct {
	parsers []Parser
}

func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{}
	for _, p := range parsers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p Parser) error {
	if _, ok := r.Lookup(p.Name()); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParser, p.Name())
	}
	r.parsers = append(r.parsers, p)
	return nil
}

func (r *Registry) Lookup(name string) (Parser, bool) {
	for _, p := range r.parsers {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}

// Select returns the first parser whose Check accepts input.
func (r *Registry) Select(input string) (Parser, error) {
	for _, p := range r.parsers {
		if p.Check(input) {
			return p, nil
		}
	}
	return nil, ErrNoParserFound
}

// Vocabulary is the deduplicated set of elements candidates are built from.
type Vocabulary struct {
	set map[string]struct{}
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{set: make(map[string]struct{})}
}

// Add inserts e and reports whether it was new. Elements that cannot be
// stored as a single UTF-8 line are refused.
func (v *Vocabulary) Add(e string) bool {
	if strings.ContainsRune(e, '\n') || !utf8.ValidString(e) {
		return false
	}
	if _, ok := v.set[e]; ok {
		return false
	}
	v.set[e] = struct{}{}
	return true
}

func (v *Vocabulary) Len() int {
	return len(v.set)
}

func (v *Vocabulary) Contains(e string) bool {
	_, ok := v.set[e]
	return ok
}

// Elements returns the elements sorted, which is the enumeration order.
func (v *Vocabulary) Elements() []string {
	out := make([]string, 0, len(v.set))
	for e := range v.set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Extractor feeds raw inputs through a registry into a vocabulary.
type Extractor struct {
	registry *Registry
	vocab    *Vocabulary
	logger   *slog.Logger
}

func New(registry *Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{registry: registry, vocab: NewVocabulary(), logger: logger}
}

func (x *Extractor) Registry() *Registry {
	return x.registry
}

func (x *Extractor) Vocabulary() *Vocabulary {
	return x.vocab
}

// Feed parses raw with the first accepting parser and returns how many new
// elements it contributed. ErrNoParserFound leaves the vocabulary untouched.
func (x *Extractor) Feed(raw string) (int, error) {
	p, err := x.registry.Select(raw)
	if err != nil {
		return 0, err
	}
	x.logger.Debug("parser agreed to process input", "parser", p.Name(), "input", preview(raw))
	return x.feed(p, raw)
}

// FeedWith bypasses Check and parses raw with the named parser.
func (x *Extractor) FeedWith(name, raw string) (int, error) {
	p, ok := x.registry.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParser, name)
	}
	return x.feed(p, raw)
}

func (x *Extractor) feed(p Parser, raw string) (int, error) {
	parsed, err := p.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", p.Name(), err)
	}
	added := 0
	for _, e := range parsed.Elements() {
		if x.vocab.Add(e) {
			added++
		}
	}
	x.logger.Debug("fed vocabulary", "parser", p.Name(), "new", added, "elements", x.vocab.Len())
	return added, nil
}

func preview(s string) string {
	if len(s) <= 64 {
		return s
	}
	return s[:64] + "..."
}
