package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"MarketScanner/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runnerFunc func(ctx context.Context, task domain.ScheduledTask) domain.TaskResult

func (f runnerFunc) Run(ctx context.Context, task domain.ScheduledTask) domain.TaskResult {
	return f(ctx, task)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{PollInterval: 5 * time.Millisecond, Backoff: 5 * time.Millisecond, Concurrency: 3}
}

func TestMemoryStoreOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Push(ctx, domain.ScheduledTask{ID: "late", Type: domain.TaskCleanup, ScheduledFor: base.Add(time.Hour)}))
	require.NoError(t, store.Push(ctx, domain.ScheduledTask{ID: "low", Type: domain.TaskCleanup, ScheduledFor: base}))
	require.NoError(t, store.Push(ctx, domain.ScheduledTask{ID: "high", Type: domain.TaskCleanup, ScheduledFor: base, Priority: 5}))
	require.NoError(t, store.Push(ctx, domain.ScheduledTask{ID: "low2", Type: domain.TaskCleanup, ScheduledFor: base}))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"high", "low", "low2", "late"}, ids)

	ready, err := store.TakeReady(ctx, base)
	require.NoError(t, err)
	assert.Len(t, ready, 3)

	rest, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "late", rest[0].ID)
}

func TestMemoryStoreRemoveAndIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Push(ctx, domain.ScheduledTask{Type: domain.TaskCleanup}))
	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)

	removed, err := store.Remove(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove(ctx, pending[0].ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSchedulerRunsDueTasks(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 4)

	runner := runnerFunc(func(_ context.Context, task domain.ScheduledTask) domain.TaskResult {
		mu.Lock()
		seen = append(seen, task.ID)
		mu.Unlock()
		done <- struct{}{}
		return domain.Ok(task, "ok")
	})

	s := New(NewMemoryStore(), runner, fastConfig(), quietLogger())
	ctx := context.Background()

	id, err := s.Schedule(ctx, domain.ScheduledTask{ID: "a", Type: domain.TaskCleanup})
	require.NoError(t, err)
	assert.Equal(t, "a", id)
	_, err = s.Schedule(ctx, domain.ScheduledTask{ID: "future", Type: domain.TaskCleanup, ScheduledFor: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	require.NoError(t, s.Stop(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, seen)

	pending, err := s.store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "future", pending[0].ID)
}

func TestSchedulerRejectsUnknownType(t *testing.T) {
	s := New(NewMemoryStore(), runnerFunc(func(_ context.Context, task domain.ScheduledTask) domain.TaskResult {
		return domain.Ok(task, "")
	}), fastConfig(), quietLogger())

	_, err := s.Schedule(context.Background(), domain.ScheduledTask{Type: "REINDEX"})
	require.Error(t, err)
	require.NoError(t, s.Stop(context.Background()))
}

func TestSchedulerCancel(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryStore(), runnerFunc(func(_ context.Context, task domain.ScheduledTask) domain.TaskResult {
		return domain.Ok(task, "")
	}), fastConfig(), quietLogger())

	id, err := s.Schedule(ctx, domain.ScheduledTask{Type: domain.TaskAutoRerun, ScheduledFor: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	ok, err := s.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Cancel(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Stop(ctx))
}

func TestPollBoundsConcurrencyAndContainsPanics(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := 0; i < 7; i++ {
		require.NoError(t, store.Push(ctx, domain.ScheduledTask{Type: domain.TaskCleanup}))
	}

	var active, peak, calls atomic.Int32
	runner := runnerFunc(func(_ context.Context, task domain.ScheduledTask) domain.TaskResult {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if calls.Add(1) == 2 {
			panic("boom")
		}
		time.Sleep(5 * time.Millisecond)
		return domain.Ok(task, "")
	})

	s := New(store, runner, fastConfig(), quietLogger())
	require.NoError(t, s.poll(ctx))

	assert.EqualValues(t, 7, calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestExecuteConvertsPanicToError(t *testing.T) {
	s := New(NewMemoryStore(), runnerFunc(func(context.Context, domain.ScheduledTask) domain.TaskResult {
		panic("kaput")
	}), fastConfig(), quietLogger())

	res := s.execute(context.Background(), domain.ScheduledTask{ID: "t1", Type: domain.TaskCleanup})
	require.False(t, res.OK())
	assert.Equal(t, "t1", res.TaskID)
	assert.Contains(t, res.Err.Error(), "kaput")
}

type failingStore struct {
	*MemoryStore
	calls atomic.Int32
}

func (f *failingStore) TakeReady(context.Context, time.Time) ([]domain.ScheduledTask, error) {
	f.calls.Add(1)
	return nil, errors.New("queue unavailable")
}

func TestLoopSurvivesStoreErrors(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	s := New(store, runnerFunc(func(_ context.Context, task domain.ScheduledTask) domain.TaskResult {
		return domain.Ok(task, "")
	}), fastConfig(), quietLogger())

	s.Start(context.Background())
	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduleDuringStopDoesNotRestartLoop(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	ran := make(chan string, 2)

	var s *Scheduler
	runner := runnerFunc(func(taskCtx context.Context, task domain.ScheduledTask) domain.TaskResult {
		ran <- task.ID
		if task.ID != "first" {
			return domain.Ok(task, "ok")
		}
		close(started)
		<-taskCtx.Done()
		if _, err := s.Schedule(taskCtx, domain.ScheduledTask{ID: "followup", Type: domain.TaskCleanup}); err != nil {
			return domain.Err(task, err)
		}
		return domain.Ok(task, "rescheduled")
	})
	s = New(NewMemoryStore(), runner, fastConfig(), quietLogger())

	_, err := s.Schedule(ctx, domain.ScheduledTask{ID: "first", Type: domain.TaskCleanup})
	require.NoError(t, err)
	<-started

	require.NoError(t, s.Stop(ctx))
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	assert.False(t, running)

	pending, err := s.store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "followup", pending[0].ID)

	time.Sleep(4 * fastConfig().PollInterval)
	assert.Equal(t, "first", <-ran)
	assert.Empty(t, ran)

	s.Start(ctx)
	select {
	case id := <-ran:
		assert.Equal(t, "followup", id)
	case <-time.After(2 * time.Second):
		t.Fatal("queued task did not run after Start")
	}
	require.NoError(t, s.Stop(ctx))
}
