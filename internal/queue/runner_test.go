package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DoubleArturo/hsus-order-status/internal/store"
	"github.com/DoubleArturo/hsus-order-status/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fastOptions() Options {
	return Options{
		TickInterval:  time.Hour, // Tests drive drains directly
		LeaseDuration: time.Minute,
		MaxAttempts:   2,
		RetryBackoff:  time.Nanosecond,
		BatchSize:     10,
	}
}

func TestDrainProcessesTasks(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(s, fastOptions())

	var mu sync.Mutex
	var seen []string
	r.Register("echo", func(ctx context.Context, task types.Task) error {
		mu.Lock()
		seen = append(seen, string(task.Payload))
		mu.Unlock()
		return nil
	})

	_, err := s.Enqueue("echo", "first", 0)
	require.NoError(t, err)
	_, err = s.Enqueue("echo", "second", 0)
	require.NoError(t, err)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{`"first"`, `"second"`}, seen)

	done, err := s.ListTasks(types.TaskDone, 10)
	require.NoError(t, err)
	assert.Len(t, done, 2)
}

func TestDrainRetriesThenFailsOut(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(s, fastOptions())
	r.Register("flaky", func(ctx context.Context, task types.Task) error {
		return errors.New("downstream unavailable")
	})

	task, err := s.Enqueue("flaky", nil, 0)
	require.NoError(t, err)

	// First drain: attempt 1, scheduled for retry.
	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.LastError, "downstream unavailable")

	// Second drain: attempt 2 hits MaxAttempts and fails out.
	time.Sleep(10 * time.Millisecond)
	_, err = r.Drain(context.Background())
	require.NoError(t, err)

	got, err = s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
}

func TestDrainFailsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(s, fastOptions())

	task, err := s.Enqueue("mystery", nil, 0)
	require.NoError(t, err)

	_, err = r.Drain(context.Background())
	require.NoError(t, err)

	got, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.Status)
	assert.Contains(t, got.LastError, "no handler registered")
}

func TestHandlerPanicBecomesError(t *testing.T) {
	s := newTestStore(t)
	opts := fastOptions()
	opts.MaxAttempts = 1
	r := NewRunner(s, opts)
	r.Register("boom", func(ctx context.Context, task types.Task) error {
		panic("unexpected payload shape")
	})

	task, err := s.Enqueue("boom", nil, 0)
	require.NoError(t, err)

	_, err = r.Drain(context.Background())
	require.NoError(t, err)

	got, err := s.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.Status)
	assert.Contains(t, got.LastError, "handler panic")
}

func TestDrainRequeuesStalledLeases(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(s, fastOptions())

	var processed int
	r.Register("slow", func(ctx context.Context, task types.Task) error {
		processed++
		return nil
	})

	_, err := s.Enqueue("slow", nil, 0)
	require.NoError(t, err)

	// Lease with an already-expired lease, as if a previous run died
	// mid-task.
	leased, err := s.LeaseDue(time.Now().UTC(), 1, -time.Second)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, processed)
}

func TestRunnerLoopWithKick(t *testing.T) {
	s := newTestStore(t)
	r := NewRunner(s, fastOptions())

	done := make(chan struct{})
	r.Register("ping", func(ctx context.Context, task types.Task) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	defer r.Stop()

	_, err := s.Enqueue("ping", nil, 0)
	require.NoError(t, err)
	r.Kick()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task was not processed after Kick")
	}
}
