package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/publisher"
	"github.com/GitRadiation/template-filler/internal/repository"
)

// RetryResult records the outcome for one job in a retry batch.
type RetryResult struct {
	JobID uuid.UUID
	Err   error
}

// RetryFailedUsecase performs the operator-driven failed→pending transition
// and re-enqueues the job. This is the only path back from a terminal state;
// it is never triggered automatically.
type RetryFailedUsecase struct {
	repo      repository.JobRepository
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewRetryFailedUsecase creates a new RetryFailedUsecase.
func NewRetryFailedUsecase(repo repository.JobRepository, pub publisher.Publisher, logger *zap.Logger) *RetryFailedUsecase {
	return &RetryFailedUsecase{
		repo:      repo,
		publisher: pub,
		logger:    logger,
	}
}

// Execute selects the newest `limit` failed jobs updated within the window
// and, per job, resets it to pending (clearing the previous result) and
// publishes exactly one new render task. A job whose re-enqueue fails is
// put back to failed immediately.
func (uc *RetryFailedUsecase) Execute(ctx context.Context, limit int, window time.Duration) ([]RetryResult, error) {
	cutoff := time.Now().UTC().Add(-window)
	jobs, err := uc.repo.ListFailedSince(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}

	results := make([]RetryResult, 0, len(jobs))
	for _, job := range jobs {
		results = append(results, RetryResult{JobID: job.ID, Err: uc.retryOne(ctx, job.ID)})
	}
	return results, nil
}

func (uc *RetryFailedUsecase) retryOne(ctx context.Context, jobID uuid.UUID) error {
	err := uc.repo.Transition(ctx, jobID, domain.StatusFailed, domain.StatusPending, repository.TransitionUpdate{
		ClearResult: true,
	})
	if err != nil {
		return fmt.Errorf("reset job: %w", err)
	}

	if err := uc.publisher.Publish(ctx, jobID); err != nil {
		uc.logger.Error("Failed to re-enqueue job", zap.Error(err), zap.String("job_id", jobID.String()))
		msg := "retry enqueue failed: " + err.Error()
		now := time.Now().UTC()
		_ = uc.repo.Transition(ctx, jobID, domain.StatusPending, domain.StatusFailed, repository.TransitionUpdate{
			ErrorMessage: &msg,
			CompletedAt:  &now,
		})
		return domain.ErrPublishFailed
	}

	uc.logger.Info("Job re-enqueued", zap.String("job_id", jobID.String()))
	return nil
}
