package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/metrics"
	"github.com/GitRadiation/template-filler/internal/registry"
	"github.com/GitRadiation/template-filler/internal/renderer"
	"github.com/GitRadiation/template-filler/internal/repository"
	"github.com/GitRadiation/template-filler/internal/storage"
	"github.com/GitRadiation/template-filler/internal/task"
)

// RenderJobUsecase drives one job through its execution state machine:
// pending → running → completed/failed. All faults inside an execution are
// caught and recorded on the job; nothing escapes without an error_message.
type RenderJobUsecase struct {
	repo     repository.JobRepository
	lock     repository.ProcessLock
	registry *registry.Registry
	renderer *renderer.Renderer
	store    storage.ObjectStore
	policy   task.RetryPolicy

	softLimit time.Duration
	hardLimit time.Duration

	logger *zap.Logger
}

// NewRenderJobUsecase creates a new RenderJobUsecase. softLimit is the
// advisory render budget per attempt; hardLimit caps the whole execution and
// fails the job when exceeded.
func NewRenderJobUsecase(
	repo repository.JobRepository,
	lock repository.ProcessLock,
	reg *registry.Registry,
	rend *renderer.Renderer,
	store storage.ObjectStore,
	policy task.RetryPolicy,
	softLimit, hardLimit time.Duration,
	logger *zap.Logger,
) *RenderJobUsecase {
	return &RenderJobUsecase{
		repo:      repo,
		lock:      lock,
		registry:  reg,
		renderer:  rend,
		store:     store,
		policy:    policy,
		softLimit: softLimit,
		hardLimit: hardLimit,
		logger:    logger,
	}
}

// Execute processes a single dequeued task. Returns (skipped, error):
// skipped is true for duplicate deliveries and CAS conflicts, which the
// caller should ACK without further work. A non-nil error means the job
// state could not be recorded and the delivery should be NACKed.
func (uc *RenderJobUsecase) Execute(ctx context.Context, jobID uuid.UUID) (bool, error) {
	// Step 1: redelivery dedup
	acquired, err := uc.lock.Acquire(ctx, jobID)
	if err != nil {
		uc.logger.Error("Failed to acquire processing lock", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, err
	}
	if !acquired {
		uc.logger.Info("Duplicate delivery detected, skipping", zap.String("job_id", jobID.String()))
		return true, nil
	}

	// Step 2: load the immutable job record
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		uc.logger.Error("Failed to load job", zap.Error(err), zap.String("job_id", jobID.String()))
		return false, err
	}

	// Step 3: claim the job. A failed CAS means another execution owns it
	// (or it is already terminal) — abort silently.
	now := time.Now().UTC()
	err = uc.repo.Transition(ctx, jobID, domain.StatusPending, domain.StatusRunning, repository.TransitionUpdate{
		StartedAt: &now,
	})
	if errors.Is(err, domain.ErrConflict) {
		uc.logger.Info("Job already claimed or terminal, skipping",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
		return true, nil
	}
	if err != nil {
		return false, err
	}

	start := time.Now()
	ref, attempts, rerr := uc.renderWithRetry(ctx, job)
	elapsed := time.Since(start).Seconds()
	metrics.RenderDuration.WithLabelValues(string(job.TemplateName)).Observe(elapsed)

	if rerr != nil {
		metrics.RendersTotal.WithLabelValues(string(job.TemplateName), string(domain.StatusFailed)).Inc()
		if err := uc.markFailed(ctx, jobID, attempts, rerr); err != nil {
			return false, err
		}
		uc.logger.Warn("Job failed",
			zap.String("job_id", jobID.String()),
			zap.Int("attempts", attempts),
			zap.Error(rerr),
		)
		_ = uc.lock.Release(ctx, jobID)
		return false, nil
	}

	completedAt := time.Now().UTC()
	err = uc.repo.Transition(ctx, jobID, domain.StatusRunning, domain.StatusCompleted, repository.TransitionUpdate{
		OutputRef:   &ref,
		CompletedAt: &completedAt,
		Attempts:    &attempts,
	})
	if errors.Is(err, domain.ErrConflict) {
		// Should not happen while we hold the lock; record and move on.
		uc.logger.Error("Completion CAS conflict", zap.String("job_id", jobID.String()), zap.Error(err))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	metrics.RendersTotal.WithLabelValues(string(job.TemplateName), string(domain.StatusCompleted)).Inc()
	uc.logger.Info("Job completed",
		zap.String("job_id", jobID.String()),
		zap.String("output_ref", ref),
		zap.Int("attempts", attempts),
	)

	_ = uc.lock.Release(ctx, jobID)
	return false, nil
}

// renderWithRetry runs the bounded attempt loop under the hard time budget.
// Returns the output reference, the number of attempts consumed and the
// final error if all attempts failed.
func (uc *RenderJobUsecase) renderWithRetry(ctx context.Context, job *domain.Job) (string, int, error) {
	hardCtx, cancel := context.WithTimeout(ctx, uc.hardLimit)
	defer cancel()

	entry, err := uc.registry.Resolve(job.TemplateName)
	if err != nil {
		// Unknown template on an already persisted job: permanent.
		return "", 1, err
	}

	for attempt := 1; ; attempt++ {
		ref, aerr := uc.attempt(hardCtx, entry, job)
		if aerr == nil {
			return ref, attempt, nil
		}

		if hardCtx.Err() != nil {
			return "", attempt, fmt.Errorf("render exceeded hard time budget (%s): %w", uc.hardLimit, aerr)
		}
		if !uc.policy.ShouldRetry(aerr, attempt) {
			return "", attempt, aerr
		}

		metrics.RetriesTotal.WithLabelValues(string(job.TemplateName)).Inc()
		uc.logger.Warn("Transient render failure, retrying",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", uc.policy.Delay),
			zap.Error(aerr),
		)
		if werr := uc.policy.Wait(hardCtx); werr != nil {
			return "", attempt, fmt.Errorf("render exceeded hard time budget (%s): %w", uc.hardLimit, aerr)
		}
	}
}

// attempt performs one render plus output upload under the soft budget.
func (uc *RenderJobUsecase) attempt(hardCtx context.Context, entry *registry.Entry, job *domain.Job) (string, error) {
	softCtx, cancel := context.WithTimeout(hardCtx, uc.softLimit)
	defer cancel()

	out, err := uc.renderer.Render(softCtx, entry, job.OutputFormat, job.InputData)
	if err != nil {
		if softCtx.Err() != nil && hardCtx.Err() == nil {
			uc.logger.Warn("Soft time budget exceeded",
				zap.String("job_id", job.ID.String()),
				zap.Duration("soft_limit", uc.softLimit),
			)
		}
		return "", err
	}

	ref := fmt.Sprintf("generated/%s.%s", job.ID, job.OutputFormat.Ext())
	if err := uc.store.Put(hardCtx, ref, out.Bytes, out.ContentType); err != nil {
		return "", domain.Transient(fmt.Errorf("store output: %w", err))
	}
	return ref, nil
}

func (uc *RenderJobUsecase) markFailed(ctx context.Context, jobID uuid.UUID, attempts int, cause error) error {
	msg := cause.Error()
	now := time.Now().UTC()
	err := uc.repo.Transition(ctx, jobID, domain.StatusRunning, domain.StatusFailed, repository.TransitionUpdate{
		ErrorMessage: &msg,
		CompletedAt:  &now,
		Attempts:     &attempts,
	})
	if errors.Is(err, domain.ErrConflict) {
		uc.logger.Error("Failure CAS conflict", zap.String("job_id", jobID.String()), zap.Error(err))
		return nil
	}
	return err
}
