package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GitRadiation/template-filler/internal/domain"
)

// TransitionUpdate carries the fields applied alongside a status transition.
// Nil pointers leave the corresponding column untouched.
type TransitionUpdate struct {
	StartedAt    *time.Time
	CompletedAt  *time.Time
	OutputRef    *string
	ErrorMessage *string
	Attempts     *int

	// ClearResult resets output_ref, error_message, started_at and
	// completed_at to NULL. Used by the failed→pending retry transition so a
	// re-run starts from a clean record.
	ClearResult bool
}

// ListFilter narrows and bounds List results.
type ListFilter struct {
	Status   *domain.JobStatus
	Template *domain.TemplateName
	Limit    int
}

// JobRepository defines the interface for job persistence operations.
// Implementations must be safe for concurrent use.
type JobRepository interface {
	// Create inserts a new job into the data store.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID. Returns domain.ErrJobNotFound
	// when no such job exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Transition atomically moves a job from one status to another,
	// applying upd in the same statement. It fails with domain.ErrConflict
	// when the job is not currently in the `from` status, and with
	// domain.ErrJobNotFound when the job does not exist. This
	// compare-and-swap is the only synchronization the store provides and
	// the only one the task runner needs.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.JobStatus, upd TransitionUpdate) error

	// List returns jobs ordered newest-first, bounded by the filter limit.
	List(ctx context.Context, filter ListFilter) ([]*domain.Job, error)

	// ListFailedSince returns failed jobs updated at or after cutoff,
	// newest-first, capped at limit. Used by the retry CLI.
	ListFailedSince(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Job, error)
}

// ProcessLock is a distributed deduplication lock taken before a worker
// starts a job. It is a cheap guard against broker redelivery; the CAS
// transition remains the correctness mechanism.
type ProcessLock interface {
	// Acquire attempts to take the per-job processing lock. Returns true if
	// acquired (first delivery), false if already held (duplicate).
	Acquire(ctx context.Context, jobID uuid.UUID) (bool, error)

	// Release removes the lock once the job's terminal state is recorded.
	// Required for operator-driven retries: a re-enqueued job must not be
	// classified as a duplicate of its previous run. The CAS transition
	// remains the guard against true concurrent deliveries.
	Release(ctx context.Context, jobID uuid.UUID) error
}
