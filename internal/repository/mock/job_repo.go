package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/repository"
)

// Ensure JobRepository implements repository.JobRepository.
var _ repository.JobRepository = (*JobRepository)(nil)

// TransitionRecord captures one successful Transition call for assertions.
type TransitionRecord struct {
	JobID  uuid.UUID
	From   domain.JobStatus
	To     domain.JobStatus
	Update repository.TransitionUpdate
}

// JobRepository is an in-memory mock of the job repository for testing.
// Transition implements the same compare-and-swap semantics as the
// PostgreSQL store, including domain.ErrConflict on a failed check.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job

	Transitions []TransitionRecord

	// Hook functions for injecting errors
	CreateFunc     func(ctx context.Context, job *domain.Job) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	TransitionFunc func(ctx context.Context, id uuid.UUID, from, to domain.JobStatus, upd repository.TransitionUpdate) error
}

// NewJobRepository creates a new mock repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[uuid.UUID]*domain.Job),
	}
}

func (m *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	m.jobs[job.ID] = job
	return nil
}

func (m *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *JobRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.JobStatus, upd repository.TransitionUpdate) error {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, from, to, upd)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.Status != from {
		return domain.ErrConflict
	}

	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	if upd.ClearResult {
		job.OutputRef = nil
		job.ErrorMessage = nil
		job.StartedAt = nil
		job.CompletedAt = nil
	} else {
		if upd.StartedAt != nil {
			job.StartedAt = upd.StartedAt
		}
		if upd.CompletedAt != nil {
			job.CompletedAt = upd.CompletedAt
		}
		if upd.OutputRef != nil {
			job.OutputRef = upd.OutputRef
		}
		if upd.ErrorMessage != nil {
			job.ErrorMessage = upd.ErrorMessage
		}
		if upd.Attempts != nil {
			job.Attempts = *upd.Attempts
		}
	}

	m.Transitions = append(m.Transitions, TransitionRecord{JobID: id, From: from, To: to, Update: upd})
	return nil
}

func (m *JobRepository) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.Job
	for _, j := range m.jobs {
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.Template != nil && j.TemplateName != *filter.Template {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *JobRepository) ListFailedSince(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.Job
	for _, j := range m.jobs {
		if j.Status != domain.StatusFailed || j.UpdatedAt.Before(cutoff) {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Put seeds a job directly, bypassing Create bookkeeping (for test setup).
func (m *JobRepository) Put(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
		job.UpdatedAt = job.CreatedAt
	}
	m.jobs[job.ID] = job
}

// GetAll returns all stored jobs (for test assertions).
func (m *JobRepository) GetAll() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		result = append(result, &cp)
	}
	return result
}
