// Package pipeline runs the per-sequence seed and join stages over a pool of
// workers. Sequences are independent so workers share nothing; a failure in
// one sequence is recorded on its result and the rest carry on.
package pipeline

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/ncbi/vadr-sub003/internal/seed"
)

// Opts are the seed handling settings shared by every sequence.
type Opts struct {
	// Overhang is how far a flank realignment reaches into the seed
	Overhang int

	// Prune floors, Codons is ignored here and set per model
	Prune seed.PruneOpts

	// CodonCheck collapses seeds with a gap inside a start or stop codon
	CodonCheck bool
}

// Runner runs stages with a fixed number of workers.
type Runner struct {
	workers int
	opts    Opts
	logger  *zap.Logger

	// done is called once per finished sequence, from a single goroutine
	done func()
}

// New returns a Runner with workers goroutines. Zero or less means one per CPU.
func New(workers int, opts Opts) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		workers: workers,
		opts:    opts,
		logger:  zap.NewNop(),
		done:    func() {},
	}
}

// SetLogger sets the logger used for per-sequence messages.
func (r *Runner) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r.logger = logger
}

// OnDone sets a callback run after each sequence, e.g. to tick a progress bar.
func (r *Runner) OnDone(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	r.done = fn
}

// indexed carries a job or result with its position in the input.
type indexed[T any] struct {
	i int
	v T
}

// run calls fn on every job across the pool and returns the results in job
// order. It stops handing out jobs when ctx is cancelled.
func run[J, R any](ctx context.Context, workers int, jobs []J, fn func(J) R, done func()) ([]R, error) {
	jobCh := make(chan indexed[J], workers*2)
	resCh := make(chan indexed[R], workers*2)

	// workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-jobCh:
					if !ok {
						return
					}
					select {
					case resCh <- indexed[R]{i: j.i, v: fn(j.v)}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	// collector
	results := make([]R, len(jobs))
	var cwg sync.WaitGroup
	cwg.Add(1)
	go func() {
		defer cwg.Done()
		for res := range resCh {
			results[res.i] = res.v
			done()
		}
	}()

	// feed work
feed:
	for i, j := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case jobCh <- indexed[J]{i: i, v: j}:
		}
	}

	close(jobCh)
	wg.Wait()
	close(resCh)
	cwg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
