// Package pipeline provides the generic concurrent batch runner used to
// score structural elements in bulk.  The runner bounds parallelism with a
// semaphore, applies a per-item timeout, and returns results in input order
// so downstream commits stay deterministic.
//
// Retries, circuit breaking, and priority scheduling are deliberately
// absent: an element either scores in one attempt or is reported failed, and
// no per-element state survives a run.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ProcessFunc is the signature for a function that processes a single item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemStatus represents the outcome of a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess   ItemStatus = iota // processing completed successfully
	ItemStatusFailed                      // processing failed with an error
	ItemStatusTimeout                     // processing exceeded its timeout
	ItemStatusCancelled                   // the batch context was cancelled
)

// String returns the human-readable representation of an ItemStatus.
func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ItemResult holds the outcome of processing one item.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates the outcomes of a whole batch.
type BatchResult[R any] struct {
	Results         []*ItemResult[R] `json:"results"`
	TotalCount      int              `json:"total_count"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	TotalDurationMs float64          `json:"total_duration_ms"`
}

type config struct {
	maxConcurrency int
	itemTimeout    time.Duration
}

// Option customises a Runner.
type Option func(*config)

// WithMaxConcurrency bounds the number of items processed in parallel.
// Values below 1 are ignored.
func WithMaxConcurrency(n int) Option {
	return func(c *config) {
		if n >= 1 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout bounds the wall-clock time of one item.  Zero disables
// the per-item timeout.
func WithItemTimeout(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.itemTimeout = d
		}
	}
}

// Runner executes a ProcessFunc across a slice of items with bounded
// concurrency.  A Runner is stateless across Run calls and safe for
// concurrent use.
type Runner[T, R any] struct {
	cfg config
}

// NewRunner constructs a Runner.  Defaults: concurrency GOMAXPROCS, 30s
// per-item timeout.
func NewRunner[T, R any](opts ...Option) *Runner[T, R] {
	cfg := config{
		maxConcurrency: runtime.GOMAXPROCS(0),
		itemTimeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner[T, R]{cfg: cfg}
}

// Run processes every item and returns per-item results indexed by input
// position.  Run itself returns an error only when ctx is cancelled before
// completion; per-item failures are reported in the results.
func (r *Runner[T, R]) Run(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	started := time.Now()
	results := make([]*ItemResult[R], len(items))

	sem := make(chan struct{}, r.cfg.maxConcurrency)
	var wg sync.WaitGroup

loop:
	for i, item := range items {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			r.markCancelled(results, i, len(items))
			break loop
		}

		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = r.processOne(ctx, idx, it, fn)
		}(i, item)
	}
	wg.Wait()

	batch := &BatchResult[R]{
		Results:         results,
		TotalCount:      len(items),
		TotalDurationMs: msSince(started),
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Status == ItemStatusSuccess {
			batch.SuccessCount++
		} else {
			batch.FailureCount++
		}
	}
	if err := ctx.Err(); err != nil {
		return batch, err
	}
	return batch, nil
}

func (r *Runner[T, R]) processOne(ctx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	itemCtx := ctx
	cancel := context.CancelFunc(func() {})
	if r.cfg.itemTimeout > 0 {
		itemCtx, cancel = context.WithTimeout(ctx, r.cfg.itemTimeout)
	}
	defer cancel()

	started := time.Now()
	value, err := fn(itemCtx, item)
	res := &ItemResult[R]{
		Index:      idx,
		Result:     value,
		Error:      err,
		DurationMs: msSince(started),
	}
	switch {
	case err == nil:
		res.Status = ItemStatusSuccess
	case ctx.Err() != nil:
		res.Status = ItemStatusCancelled
	case itemCtx.Err() == context.DeadlineExceeded:
		res.Status = ItemStatusTimeout
	default:
		res.Status = ItemStatusFailed
	}
	return res
}

func (r *Runner[T, R]) markCancelled(results []*ItemResult[R], from, to int) {
	for i := from; i < to; i++ {
		results[i] = &ItemResult[R]{Index: i, Error: context.Canceled, Status: ItemStatusCancelled}
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
