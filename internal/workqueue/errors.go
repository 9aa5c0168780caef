package workqueue

import (
	"errors"
	"fmt"
)

// ErrTaskPanicked wraps the value recovered from a panicking task.
var ErrTaskPanicked = errors.New("workqueue: task panicked")

// SkippedError reports a task that never started because the batch was
// cancelled while it waited behind earlier tasks on its shard.
type SkippedError struct {
	Key   string
	Cause error
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("workqueue: %q not started: %v", e.Key, e.Cause)
}

func (e *SkippedError) Unwrap() error { return e.Cause }
