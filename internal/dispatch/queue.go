package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

type QueueConfig struct {
	BatchSize   int
	BatchPause  time.Duration
	MaxInFlight int
}

// Queue runs work items in fixed-size batches with bounded concurrency and
// a pause between consecutive batches.
type Queue struct {
	cfg   QueueConfig
	sleep func(ctx context.Context, d time.Duration) error
}

func NewQueue(cfg QueueConfig) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	return &Queue{cfg: cfg, sleep: sleepContext}
}

// Limit caps how many matching items share one batch.
type Limit struct {
	Max   int
	Match func(i int) bool
}

// Run calls fn for every index in [0, n). A batch closes at BatchSize items
// or when the next item would push a Limit past its Max. With MaxInFlight 1
// the calls are strictly sequential in index order. It returns early only if
// ctx is done between batches.
func (q *Queue) Run(ctx context.Context, n int, fn func(ctx context.Context, i int), limits ...Limit) error {
	start := 0
	for _, end := range q.batchEnds(n, limits) {
		if start > 0 && q.cfg.BatchPause > 0 {
			if err := q.sleep(ctx, q.cfg.BatchPause); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var g errgroup.Group
		g.SetLimit(q.cfg.MaxInFlight)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				fn(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
		start = end
	}
	return nil
}

// batchEnds returns the exclusive end index of every batch.
func (q *Queue) batchEnds(n int, limits []Limit) []int {
	var ends []int
	size := 0
	counts := make([]int, len(limits))
	for i := 0; i < n; i++ {
		full := size == q.cfg.BatchSize
		for j, l := range limits {
			if l.Max > 0 && counts[j] == l.Max && l.Match(i) {
				full = true
			}
		}
		if full {
			ends = append(ends, i)
			size = 0
			for j := range counts {
				counts[j] = 0
			}
		}
		size++
		for j, l := range limits {
			if l.Match(i) {
				counts[j]++
			}
		}
	}
	if size > 0 {
		ends = append(ends, n)
	}
	return ends
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
