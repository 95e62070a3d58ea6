package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/metrics"
	"github.com/GitRadiation/template-filler/internal/publisher"
	"github.com/GitRadiation/template-filler/internal/registry"
	"github.com/GitRadiation/template-filler/internal/repository"
)

const maxInputSize = 5 << 20 // 5 MiB

// SubmitRequest is one incoming document generation request.
type SubmitRequest struct {
	TemplateName domain.TemplateName
	OutputFormat domain.OutputFormat
	RawData      []byte
}

// SubmitJobUsecase handles the business logic for submitting document jobs.
type SubmitJobUsecase struct {
	repo      repository.JobRepository
	registry  *registry.Registry
	publisher publisher.Publisher
	logger    *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(repo repository.JobRepository, reg *registry.Registry, pub publisher.Publisher, logger *zap.Logger) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		repo:      repo,
		registry:  reg,
		publisher: pub,
		logger:    logger,
	}
}

// Execute validates the submission, creates a pending job and enqueues
// exactly one render task for it. If the enqueue fails the job is immediately
// marked failed so it is never left pending with no task behind it.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, req *SubmitRequest) (*domain.Job, error) {
	// Parse the payload
	input := map[string]any{}
	if len(req.RawData) > 0 {
		if len(req.RawData) > maxInputSize {
			return nil, fmt.Errorf("%w: payload exceeds %d bytes", domain.ErrMalformedInput, maxInputSize)
		}
		if err := json.Unmarshal(req.RawData, &input); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
		}
	}

	// Validate the template against the registry
	if _, err := uc.registry.Resolve(req.TemplateName); err != nil {
		return nil, err
	}

	// Apply the default format
	format := req.OutputFormat
	if format == "" {
		format = domain.FormatPDF
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}

	// Generate UUIDv7 (time-ordered)
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.Job{
		ID:           jobID,
		TemplateName: req.TemplateName,
		OutputFormat: format,
		Status:       domain.StatusPending,
		InputData:    input,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job in database", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := uc.publisher.Publish(ctx, jobID); err != nil {
		uc.logger.Error("Failed to publish render task", zap.Error(err), zap.String("job_id", jobID.String()))
		metrics.PublishFailuresTotal.Inc()
		// The job must never stay pending without an enqueued task.
		msg := "enqueue failed: " + err.Error()
		now := time.Now().UTC()
		if terr := uc.repo.Transition(ctx, jobID, domain.StatusPending, domain.StatusFailed, repository.TransitionUpdate{
			ErrorMessage: &msg,
			CompletedAt:  &now,
		}); terr != nil {
			uc.logger.Error("Failed to mark unpublished job failed", zap.Error(terr), zap.String("job_id", jobID.String()))
		}
		return nil, domain.ErrPublishFailed
	}

	metrics.JobsSubmittedTotal.WithLabelValues(string(req.TemplateName)).Inc()
	uc.logger.Info("Job submitted successfully",
		zap.String("job_id", jobID.String()),
		zap.String("template", string(req.TemplateName)),
		zap.String("format", string(format)),
	)

	return job, nil
}
