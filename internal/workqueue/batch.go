// Package workqueue runs a batch of chat imports. Tasks that share a key
// (the chat name) run one after another in submission order; different keys
// run in parallel across a fixed number of shards.
//
// Only failures of local storage are retried. A task that fails validation,
// is rejected by the backend or is cancelled reports its error at once, so
// an upload the backend already accepted is never sent twice.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/memoryvault/memory-vault/internal/metrics"
	"github.com/memoryvault/memory-vault/internal/model"
)

// Task is one unit of a batch. Run receives the 1-based attempt number.
type Task[R any] struct {
	Key string
	Run func(ctx context.Context, attempt int) (R, error)
}

// Outcome is what a Task produced. Attempts is zero for a skipped task.
type Outcome[R any] struct {
	Value    R
	Err      error
	Attempts int
}

// Retryable reports whether a failed attempt may be run again: only local
// storage errors qualify, and never once the caller has given up.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, model.ErrStorage)
}

// Run executes tasks and returns their outcomes in the order of tasks. It
// returns once every task has finished or been skipped.
func Run[R any](ctx context.Context, cfg Config, tasks []Task[R]) []Outcome[R] {
	cfg = cfg.withDefaults()
	out := make([]Outcome[R], len(tasks))
	if len(tasks) == 0 {
		return out
	}

	shards := make([][]int, cfg.Shards)
	for idx, t := range tasks {
		s := shardFor(t.Key, cfg.Shards)
		shards[s] = append(shards[s], idx)
	}

	var wg sync.WaitGroup
	for s, queue := range shards {
		if len(queue) == 0 {
			continue
		}
		label := strconv.Itoa(s)
		metrics.WorkqueueSubmissions.WithLabelValues(label).Add(float64(len(queue)))
		metrics.WorkqueueDepth.WithLabelValues(label).Set(float64(len(queue)))
		wg.Add(1)
		go func(label string, queue []int) {
			defer wg.Done()
			for n, idx := range queue {
				out[idx] = runTask(ctx, cfg, label, tasks[idx])
				metrics.WorkqueueDepth.WithLabelValues(label).Set(float64(len(queue) - n - 1))
			}
		}(label, queue)
	}
	wg.Wait()
	return out
}

func runTask[R any](ctx context.Context, cfg Config, label string, t Task[R]) Outcome[R] {
	var o Outcome[R]
	if err := ctx.Err(); err != nil {
		o.Err = &SkippedError{Key: t.Key, Cause: err}
		metrics.WorkqueueFailures.WithLabelValues(label).Inc()
		return o
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = cfg.MaxInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(cfg.MaxAttempts-1)), ctx)

	op := func() error {
		o.Attempts++
		start := time.Now()
		v, err := safeRun(ctx, t, o.Attempts)
		metrics.WorkqueueRunDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		o.Value = v
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		cfg.Logger.Warn().Err(err).
			Str("key", t.Key).
			Int("attempt", o.Attempts).
			Dur("retry_in", wait).
			Msg("import attempt failed, retrying")
	}
	o.Err = backoff.RetryNotify(op, policy, notify)
	if o.Err != nil {
		metrics.WorkqueueFailures.WithLabelValues(label).Inc()
	}
	return o
}

func safeRun[R any](ctx context.Context, t Task[R], attempt int) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return t.Run(ctx, attempt)
}

func shardFor(key string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}
