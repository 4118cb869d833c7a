package cracker

import (
	"context"
	"math/big"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	MinBatch         = 5000
	TargetBatchCount = 20000
	// MaxBatch bounds memory when the candidate space is astronomically large.
	MaxBatch = 1 << 20
)

// Checker reports whether a candidate is a preimage of the target.
type Checker interface {
	Check(candidate string) bool
}

// Source yields the candidate stream in order, n records at a time. An
// empty batch with a nil error means the stream is exhausted.
type Source interface {
	ReadBatch(n int) ([]string, error)
}

type Result struct {
	Found     bool
	Cancelled bool
	Candidate string
	Processed uint64
	Attempts  uint64
	Batches   int
	Duration  time.Duration
	Err       error
}

type Progress struct {
	Processed   uint64
	Total       *big.Int
	Percent     float64
	Batches     int
	BatchSize   int
	AvgBatch    float64
	EstBatches  *big.Int
	Rate        float64
	ETA         time.Duration
	ElapsedTime time.Duration
}

type Cracker struct {
	checker    Checker
	workers    int
	batchSize  int
	attempts   atomic.Uint64
	stop       atomic.Bool
	startTime  time.Time
	progressCb func(Progress)
	throttle   rate.Sometimes
}

// DefaultWorkers oversubscribes the CPUs the way the pool always has.
func DefaultWorkers() int {
	return 4 * runtime.GOMAXPROCS(0)
}

func New(checker Checker, workers int) *Cracker {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Cracker{
		checker:  checker,
		workers:  workers,
		throttle: rate.Sometimes{Interval: 500 * time.Millisecond},
	}
}

func (c *Cracker) SetProgressCallback(cb func(Progress)) {
	c.progressCb = cb
}

// SetBatchSize fixes the batch size instead of deriving it from the total.
func (c *Cracker) SetBatchSize(n int) {
	c.batchSize = n
}

func (c *Cracker) Workers() int {
	return c.workers
}

func (c *Cracker) Attempts() uint64 {
	return c.attempts.Load()
}

// BatchSize is max(MinBatch, total/TargetBatchCount), capped at MaxBatch.
func BatchSize(total *big.Int) int {
	if total == nil {
		return MinBatch
	}
	q := new(big.Int).Quo(total, big.NewInt(TargetBatchCount))
	if !q.IsInt64() || q.Int64() > MaxBatch {
		return MaxBatch
	}
	return max(MinBatch, int(q.Int64()))
}

// Run checks the stream batch by batch until a candidate matches, the
// stream runs dry or ctx is cancelled. Cancellation raises the stop flag at
// once; each worker notices it before its next candidate.
func (c *Cracker) Run(ctx context.Context, src Source, total *big.Int) Result {
	c.startTime = time.Now()
	c.attempts.Store(0)
	c.stop.Store(false)

	stopWatch := context.AfterFunc(ctx, func() { c.stop.Store(true) })
	defer stopWatch()

	batchSize := c.batchSize
	if batchSize <= 0 {
		batchSize = BatchSize(total)
	}

	var (
		processed uint64
		batches   int
		avg       float64
	)
	result := func(r Result) Result {
		r.Processed = processed
		r.Attempts = c.attempts.Load()
		r.Batches = batches
		r.Duration = time.Since(c.startTime)
		return r
	}

	for {
		if ctx.Err() != nil {
			return result(Result{Cancelled: true})
		}

		batch, err := src.ReadBatch(batchSize)
		if err != nil {
			return result(Result{Err: err})
		}
		if len(batch) == 0 {
			return result(Result{})
		}

		winner, found := c.checkBatch(ctx, batch)
		if found {
			return result(Result{Found: true, Candidate: winner})
		}
		if ctx.Err() != nil {
			return result(Result{Cancelled: true})
		}

		processed += uint64(len(batch))
		batches++
		avg += (float64(len(batch)) - avg) / float64(batches)
		c.reportProgress(processed, total, batches, batchSize, avg)
	}
}

// checkBatch splits batch into one contiguous chunk per worker. The first
// worker to flip the stop flag owns the only reported winner.
func (c *Cracker) checkBatch(ctx context.Context, batch []string) (string, bool) {
	var winner atomic.Pointer[string]

	chunk := (len(batch) + c.workers - 1) / c.workers
	var g errgroup.Group
	g.SetLimit(c.workers)
	for start := 0; start < len(batch); start += chunk {
		part := batch[start:min(start+chunk, len(batch))]
		g.Go(func() error {
			for _, candidate := range part {
				if c.stop.Load() {
					return nil
				}
				c.attempts.Add(1)
				if c.checker.Check(candidate) {
					if c.stop.CompareAndSwap(false, true) {
						winner.Store(&candidate)
					}
					return nil
				}
			}
			return nil
		})
	}
	g.Wait()

	if w := winner.Load(); w != nil {
		return *w, true
	}
	return "", false
}

func (c *Cracker) reportProgress(processed uint64, total *big.Int, batches, batchSize int, avg float64) {
	if c.progressCb == nil {
		return
	}
	c.throttle.Do(func() {
		elapsed := time.Since(c.startTime)
		p := Progress{
			Processed:   processed,
			Total:       total,
			Batches:     batches,
			BatchSize:   batchSize,
			AvgBatch:    avg,
			ElapsedTime: elapsed,
		}
		if elapsed > 0 {
			p.Rate = float64(processed) / elapsed.Seconds()
		}
		if total != nil && total.Sign() > 0 {
			p.EstBatches = new(big.Int).Quo(total, big.NewInt(int64(batchSize)))
			ratio, _ := new(big.Float).Quo(new(big.Float).SetUint64(processed), new(big.Float).SetInt(total)).Float64()
			p.Percent = ratio * 100
			if ratio > 0 {
				p.ETA = time.Duration(float64(elapsed) * (1 - ratio) / ratio)
			}
		}
		c.progressCb(p)
	})
}
