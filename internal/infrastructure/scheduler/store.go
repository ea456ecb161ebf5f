package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"MarketScanner/internal/domain"
	"MarketScanner/internal/ports"
)

// MemoryStore keeps tasks ordered by ScheduledFor, then by descending
// Priority. Pending tasks are lost when the process exits.
type MemoryStore struct {
	mu    sync.Mutex
	tasks []domain.ScheduledTask
}

var _ ports.TaskStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty queue.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Push inserts task at its ordered position, assigning an id when empty.
func (m *MemoryStore) Push(_ context.Context, task domain.ScheduledTask) error {
	if task.ID == "" {
		task.ID = newTaskID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.tasks), func(i int) bool { return before(task, m.tasks[i]) })
	m.tasks = append(m.tasks, domain.ScheduledTask{})
	copy(m.tasks[i+1:], m.tasks[i:])
	m.tasks[i] = task
	return nil
}

// Remove drops a pending task by id.
func (m *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// TakeReady removes and returns every task due at now, in queue order.
func (m *MemoryStore) TakeReady(_ context.Context, now time.Time) ([]domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for n < len(m.tasks) && m.tasks[n].Ready(now) {
		n++
	}
	if n == 0 {
		return nil, nil
	}
	ready := append([]domain.ScheduledTask(nil), m.tasks[:n]...)
	m.tasks = append(m.tasks[:0], m.tasks[n:]...)
	return ready, nil
}

// Pending returns a snapshot of the queue.
func (m *MemoryStore) Pending(context.Context) ([]domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ScheduledTask(nil), m.tasks...), nil
}

// before orders by time, then higher priority first; equal keys keep insertion order.
func before(a, b domain.ScheduledTask) bool {
	if !a.ScheduledFor.Equal(b.ScheduledFor) {
		return a.ScheduledFor.Before(b.ScheduledFor)
	}
	return a.Priority > b.Priority
}

func newTaskID() string {
	return uuid.NewString()
}
