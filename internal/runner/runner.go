// Package runner executes independent tasks with a fixed pool of workers,
// retrying rate-limited failures with exponential backoff and reporting
// progress after every task settles.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/edgard/botmeta/internal/errors"
)

const (
	DefaultConcurrency = 20
	DefaultMaxRetries  = 3
	DefaultBaseDelay   = 500 * time.Millisecond
)

// Task is one keyed unit of work.
type Task[T any] struct {
	Key string
	Run func(ctx context.Context) (T, error)
}

// Result is the terminal outcome of a Task. Exactly one of Value or Err is
// meaningful. Attempts counts every invocation of Run.
type Result[T any] struct {
	Key      string
	Value    T
	Err      error
	Attempts int
}

// ProgressFunc receives (checked, total) after each task settles. Calls are
// serialized and checked strictly increases; implementations must not block.
type ProgressFunc func(checked, total int)

// Options tune a Run.
type Options struct {
	Concurrency int
	MaxRetries  int
	BaseDelay   time.Duration
	IsRetryable func(error) bool
	OnProgress  ProgressFunc
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.IsRetryable == nil {
		o.IsRetryable = apperrors.IsRateLimited
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// DefaultOptions returns the pool size, retry ceiling and backoff used for probing.
func DefaultOptions() Options {
	return Options{
		Concurrency: DefaultConcurrency,
		MaxRetries:  DefaultMaxRetries,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Run executes every task exactly once to a terminal outcome and returns one
// Result per task at the task's input index. Individual failures never abort
// the batch and Run itself never fails.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	opts = opts.withDefaults()
	total := len(tasks)
	results := make([]Result[T], total)
	if total == 0 {
		return results
	}

	workers := min(opts.Concurrency, total)
	log := opts.Logger.With("component", "runner")
	log.DebugContext(ctx, "Starting task batch", "tasks", total, "workers", workers, "max_retries", opts.MaxRetries)

	var (
		cursor    atomic.Int64
		mu        sync.Mutex
		completed int
	)

	settle := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(completed, total)
		}
	}

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for {
				idx := int(cursor.Add(1) - 1)
				if idx >= total {
					return nil
				}
				results[idx] = runTask(ctx, tasks[idx], opts, log)
				settle()
			}
		})
	}
	_ = g.Wait()

	return results
}

func runTask[T any](ctx context.Context, task Task[T], opts Options, log *slog.Logger) Result[T] {
	res := Result[T]{Key: task.Key}

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		res.Attempts++
		value, err := task.Run(ctx)
		if err == nil {
			res.Value = value
			res.Err = nil
			return res
		}
		res.Err = err

		if !opts.IsRetryable(err) || attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay << attempt
		log.DebugContext(ctx, "Task rate limited, backing off",
			"key", task.Key,
			"attempt", attempt+1,
			"max_retries", opts.MaxRetries,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = fmt.Errorf("retry abandoned: %w", ctx.Err())
			return res
		case <-timer.C:
		}
	}

	return res
}
