package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScanner/internal/domain"
)

type fakeExecutor struct {
	mu   sync.Mutex
	runs []string
}

func (f *fakeExecutor) Run(_ context.Context, runID string) (RunOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runID)
	return RunOutcome{}, nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []domain.ScheduledTask
}

func (f *fakeScheduler) Schedule(_ context.Context, task domain.ScheduledTask) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return "t", nil
}

func (f *fakeScheduler) Cancel(context.Context, string) (bool, error) { return false, nil }

func newTaskFixture(t *testing.T, project domain.ProjectProfile) (*TaskHandler, *fakeExecutor, *fakeScheduler, domain.ProjectProfile) {
	t.Helper()
	store := newTestStore(t)
	saved, err := store.SaveProject(context.Background(), project)
	require.NoError(t, err)

	exec := &fakeExecutor{}
	sched := &fakeScheduler{}
	h := NewTaskHandler(store, exec, TaskConfig{}, discardLogger())
	h.UseScheduler(sched)
	return h, exec, sched, saved
}

func TestAutoRerunStartsRunAndReschedules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, exec, sched, project := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly", OwnerID: "u1", AutoRerunDays: 14})
	require.NoError(t, h.store.SetCredits(ctx, "u1", 2))

	res := h.Run(ctx, domain.ScheduledTask{ID: "t1", Type: domain.TaskAutoRerun, ProjectID: project.ID})
	require.True(t, res.OK(), "result: %v", res.Err)
	h.Wait()

	require.Len(t, exec.runs, 1)
	run, err := h.store.GetRun(ctx, exec.runs[0])
	require.NoError(t, err)
	assert.Equal(t, project.ID, run.ProjectID)

	balance, err := h.store.CreditBalance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	require.Len(t, sched.tasks, 1)
	next := sched.tasks[0]
	assert.Equal(t, domain.TaskAutoRerun, next.Type)
	assert.Equal(t, project.ID, next.ProjectID)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), next.ScheduledFor, time.Minute)
}

func TestAutoRerunRequiresCredits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, exec, _, project := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly", OwnerID: "u1"})

	res := h.Run(ctx, domain.ScheduledTask{Type: domain.TaskAutoRerun, ProjectID: project.ID})
	assert.ErrorIs(t, res.Err, domain.ErrInsufficientCredits)
	h.Wait()
	assert.Empty(t, exec.runs)
}

func TestAutoRerunRespectsSpacing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, exec, sched, project := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly", AutoRerunDays: 7})

	_, err := h.store.CreateRun(ctx, project.ID)
	require.NoError(t, err)

	res := h.Run(ctx, domain.ScheduledTask{Type: domain.TaskAutoRerun, ProjectID: project.ID})
	assert.ErrorIs(t, res.Err, domain.ErrRerunTooSoon)
	h.Wait()
	assert.Empty(t, exec.runs)
	assert.Len(t, sched.tasks, 1, "the next rerun is still scheduled")

	h.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	res = h.Run(ctx, domain.ScheduledTask{Type: domain.TaskAutoRerun, ProjectID: project.ID})
	require.True(t, res.OK(), "result: %v", res.Err)
	h.Wait()
	assert.Len(t, exec.runs, 1)
}

func TestAutoRerunUnknownProject(t *testing.T) {
	t.Parallel()
	h, _, sched, _ := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly"})

	res := h.Run(context.Background(), domain.ScheduledTask{Type: domain.TaskAutoRerun, ProjectID: "missing"})
	assert.ErrorIs(t, res.Err, domain.ErrProjectNotFound)
	assert.Empty(t, sched.tasks)
}

func TestCleanupDeletesOldLogsAndReschedules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h, _, sched, _ := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly"})

	now := time.Now()
	require.NoError(t, h.store.AppendRunLog(ctx, domain.RunLogLine{RunID: "r1", Level: domain.LogInfo, Message: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, h.store.AppendRunLog(ctx, domain.RunLogLine{RunID: "r1", Level: domain.LogInfo, Message: "new", CreatedAt: now}))

	res := h.Run(ctx, domain.ScheduledTask{ID: "c1", Type: domain.TaskCleanup, Priority: 2})
	require.True(t, res.OK())
	assert.Equal(t, "deleted 1 run log lines", res.Note)

	logs, err := h.store.RunLogs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "new", logs[0].Message)

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, domain.TaskCleanup, sched.tasks[0].Type)
	assert.Equal(t, 2, sched.tasks[0].Priority)
}

func TestEmailNotificationAndUnknownTasks(t *testing.T) {
	t.Parallel()
	h, _, _, _ := newTaskFixture(t, domain.ProjectProfile{Name: "Ledgerly"})

	res := h.Run(context.Background(), domain.ScheduledTask{ID: "e1", Type: domain.TaskEmailNotification})
	assert.True(t, res.OK())
	assert.Equal(t, "e1", res.TaskID)

	res = h.Run(context.Background(), domain.ScheduledTask{ID: "x", Type: "BOGUS"})
	assert.Error(t, res.Err)
}
