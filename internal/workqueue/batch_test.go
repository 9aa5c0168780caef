package workqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoryvault/memory-vault/internal/model"
)

func fastConfig() Config {
	return Config{Shards: 4, MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRun_RetriesStorageErrorsUntilSuccess(t *testing.T) {
	tasks := []Task[string]{{
		Key: "Ann",
		Run: func(_ context.Context, attempt int) (string, error) {
			if attempt < 3 {
				return "", &model.StorageError{Op: "save chat", Err: errors.New("database is locked")}
			}
			return "chat-1", nil
		},
	}}

	out := Run(context.Background(), fastConfig(), tasks)
	require.Len(t, out, 1)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, "chat-1", out[0].Value)
	assert.Equal(t, 3, out[0].Attempts)
}

func TestRun_StorageErrorGivesUpAfterMaxAttempts(t *testing.T) {
	storageErr := &model.StorageError{Op: "save chat", Err: errors.New("disk full")}
	out := Run(context.Background(), fastConfig(), []Task[int]{{
		Key: "Ann",
		Run: func(context.Context, int) (int, error) { return 0, storageErr },
	}})
	assert.ErrorIs(t, out[0].Err, model.ErrStorage)
	assert.Equal(t, 3, out[0].Attempts)
}

func TestRun_OtherErrorsAreNotRetried(t *testing.T) {
	cases := map[string]error{
		"validation": &model.ValidationError{Field: "file", Reason: "no messages"},
		"backend":    errors.New("upload rejected: 400"),
		"cancelled":  context.Canceled,
	}
	for name, failure := range cases {
		t.Run(name, func(t *testing.T) {
			out := Run(context.Background(), fastConfig(), []Task[int]{{
				Key: "Ann",
				Run: func(context.Context, int) (int, error) { return 0, failure },
			}})
			assert.ErrorIs(t, out[0].Err, failure)
			assert.Equal(t, 1, out[0].Attempts)
		})
	}
}

func TestRun_SameKeyRunsInSubmissionOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	tasks := make([]Task[int], 50)
	for i := range tasks {
		i := i
		tasks[i] = Task[int]{Key: "chat-1", Run: func(context.Context, int) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}}
	}

	out := Run(context.Background(), fastConfig(), tasks)
	require.Len(t, order, 50)
	for i := range order {
		assert.Equal(t, i, order[i])
		assert.Equal(t, i, out[i].Value)
	}
}

func TestRun_OutcomesKeepTaskOrderAcrossKeys(t *testing.T) {
	tasks := make([]Task[string], 20)
	for i := range tasks {
		key := fmt.Sprintf("chat-%d", i)
		tasks[i] = Task[string]{Key: key, Run: func(context.Context, int) (string, error) { return key, nil }}
	}
	out := Run(context.Background(), Config{Shards: 3}, tasks)
	for i := range out {
		assert.Equal(t, fmt.Sprintf("chat-%d", i), out[i].Value)
		assert.Equal(t, 1, out[i].Attempts)
	}
}

func TestRun_CancelledBatchSkipsWaitingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	tasks := []Task[int]{
		{Key: "Ann", Run: func(context.Context, int) (int, error) {
			ran++
			cancel()
			return 1, nil
		}},
		{Key: "Ann", Run: func(context.Context, int) (int, error) {
			ran++
			return 2, nil
		}},
	}

	out := Run(ctx, fastConfig(), tasks)
	assert.Equal(t, 1, ran)
	assert.NoError(t, out[0].Err)

	var skipped *SkippedError
	require.ErrorAs(t, out[1].Err, &skipped)
	assert.Equal(t, "Ann", skipped.Key)
	assert.ErrorIs(t, out[1].Err, context.Canceled)
	assert.Zero(t, out[1].Attempts)
}

func TestRun_PanickingTaskIsReported(t *testing.T) {
	out := Run(context.Background(), fastConfig(), []Task[int]{
		{Key: "Ann", Run: func(context.Context, int) (int, error) { panic("bad export") }},
		{Key: "Ann", Run: func(context.Context, int) (int, error) { return 7, nil }},
	})
	assert.ErrorIs(t, out[0].Err, ErrTaskPanicked)
	assert.Equal(t, 1, out[0].Attempts)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, 7, out[1].Value)
}

func TestRun_EmptyBatch(t *testing.T) {
	assert.Empty(t, Run[int](context.Background(), Config{}, nil))
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("VAULT_WORKQUEUE_SHARDS", "8")
	t.Setenv("VAULT_WORKQUEUE_BASE_BACKOFF", "50ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Shards)
	assert.Equal(t, 50*time.Millisecond, cfg.BaseBackoff)
	assert.Equal(t, 3, cfg.MaxAttempts)
}
