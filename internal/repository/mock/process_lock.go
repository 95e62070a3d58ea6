package mock

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/GitRadiation/template-filler/internal/repository"
)

var _ repository.ProcessLock = (*ProcessLock)(nil)

// ProcessLock is an in-memory mock of the per-job processing lock.
type ProcessLock struct {
	mu    sync.Mutex
	held  map[uuid.UUID]bool
	calls []uuid.UUID

	AcquireFunc func(ctx context.Context, jobID uuid.UUID) (bool, error)
	ReleaseFunc func(ctx context.Context, jobID uuid.UUID) error
}

// NewProcessLock creates a new mock lock.
func NewProcessLock() *ProcessLock {
	return &ProcessLock{held: make(map[uuid.UUID]bool)}
}

func (m *ProcessLock) Acquire(ctx context.Context, jobID uuid.UUID) (bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, jobID)
	if m.held[jobID] {
		return false, nil
	}
	m.held[jobID] = true
	return true, nil
}

func (m *ProcessLock) Release(ctx context.Context, jobID uuid.UUID) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, jobID)
	return nil
}

// AcquireCalls returns the job IDs passed to Acquire.
func (m *ProcessLock) AcquireCalls() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.calls...)
}
