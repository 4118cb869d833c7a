package generator

import (
	"context"
	"math"
	"math/big"
	"sort"
	"strings"
)

// DefaultSeparators are tried, in this order, between the elements of every
// permutation.
var DefaultSeparators = []string{"", "+", "|", "."}

type Config struct {
	Elements   []string
	Separators []string
}

// Sink receives candidates in generation order.
type Sink interface {
	Append(candidate string) error
}

type Progress struct {
	Written uint64
	Total   *big.Int
	Percent float64
}

// Permutations is n!/(n-k)!, the number of ordered k-selections of n
// distinct items. It is zero when k > n.
func Permutations(n, k int) *big.Int {
	if k < 0 || k > n {
		return big.NewInt(0)
	}
	p := big.NewInt(1)
	for i := n - k + 1; i <= n; i++ {
		p.Mul(p, big.NewInt(int64(i)))
	}
	return p
}

// Total is m * sum(P(n,k), k=0..n): every permutation of every size,
// including the empty one, joined with each of m separators. An empty
// vocabulary has nothing to search, so n == 0 yields zero.
func Total(n, m int) *big.Int {
	sum := big.NewInt(0)
	if n == 0 {
		return sum
	}
	p := big.NewInt(1)
	// P(n,k) = P(n,k-1) * (n-k+1)
	for k := 0; k <= n; k++ {
		if k > 0 {
			p.Mul(p, big.NewInt(int64(n-k+1)))
		}
		sum.Add(sum, p)
	}
	return sum.Mul(sum, big.NewInt(int64(m)))
}

func EstimateCandidates(config Config) *big.Int {
	seps := config.Separators
	if seps == nil {
		seps = DefaultSeparators
	}
	return Total(len(config.Elements), len(seps))
}

// Generator enumerates candidates deterministically: permutation size k
// ascending; for each k, index tuples over the sorted elements in
// lexicographic order; for each tuple, separators in list order.
type Generator struct {
	elements   []string
	separators []string
	total      *big.Int
	progressCb func(Progress)
}

func New(config Config) *Generator {
	elements := append([]string(nil), config.Elements...)
	sort.Strings(elements)
	seps := config.Separators
	if seps == nil {
		seps = DefaultSeparators
	}
	return &Generator{
		elements:   elements,
		separators: append([]string(nil), seps...),
		total:      Total(len(elements), len(seps)),
	}
}

func (g *Generator) SetProgressCallback(cb func(Progress)) {
	g.progressCb = cb
}

func (g *Generator) Elements() []string {
	return g.elements
}

func (g *Generator) Separators() []string {
	return g.separators
}

// Total returns a copy of the closed-form candidate count.
func (g *Generator) Total() *big.Int {
	return new(big.Int).Set(g.total)
}

const ctxCheckEvery = 1024

// Each calls fn for every candidate until the space is exhausted, fn fails
// or ctx is cancelled.
func (g *Generator) Each(ctx context.Context, fn func(candidate string) error) error {
	n := len(g.elements)
	if n == 0 {
		return nil
	}
	used := make([]bool, n)
	picked := make([]string, 0, n)
	var emitted uint64

	var permute func(k int) error
	permute = func(k int) error {
		if len(picked) == k {
			for _, sep := range g.separators {
				emitted++
				if emitted%ctxCheckEvery == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if err := fn(strings.Join(picked, sep)); err != nil {
					return err
				}
			}
			return nil
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			picked = append(picked, g.elements[i])
			err := permute(k)
			picked = picked[:len(picked)-1]
			used[i] = false
			if err != nil {
				return err
			}
		}
		return nil
	}

	for k := 0; k <= n; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := permute(k); err != nil {
			return err
		}
	}
	return nil
}

// Generate appends every candidate to sink and returns how many were
// handed over. A sink error stops generation at once and is returned as is;
// the sink decides how much of what it accepted is durable.
func (g *Generator) Generate(ctx context.Context, sink Sink) (uint64, error) {
	var written uint64
	step := uint64(math.MaxUint64)
	if g.total.IsUint64() {
		step = max(g.total.Uint64()/100, 1)
	}

	err := g.Each(ctx, func(candidate string) error {
		if err := sink.Append(candidate); err != nil {
			return err
		}
		written++
		if written%step == 0 {
			g.reportProgress(written)
		}
		return nil
	})
	return written, err
}

func (g *Generator) reportProgress(written uint64) {
	if g.progressCb == nil {
		return
	}
	ratio := new(big.Float).Quo(new(big.Float).SetUint64(written), new(big.Float).SetInt(g.total))
	pct, _ := ratio.Mul(ratio, big.NewFloat(100)).Float64()
	g.progressCb(Progress{Written: written, Total: g.total, Percent: pct})
}
