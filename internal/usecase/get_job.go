package usecase

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/repository"
	"github.com/GitRadiation/template-filler/internal/storage"
)

// GetJobUsecase handles fetching job status and streaming results.
type GetJobUsecase struct {
	repo   repository.JobRepository
	store  storage.ObjectStore
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(repo repository.JobRepository, store storage.ObjectStore, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// Status retrieves the read-only status projection of a job.
func (uc *GetJobUsecase) Status(ctx context.Context, id uuid.UUID) (*domain.JobView, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			uc.logger.Debug("Job not found", zap.String("job_id", id.String()))
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	view := job.View()
	return &view, nil
}

// Download opens the generated document for streaming. Gated on completion:
// anything short of completed fails with ErrNotReady, and a completed job
// whose bytes are gone fails with ErrOutputMissing.
func (uc *GetJobUsecase) Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, storage.ObjectInfo, error) {
	job, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	if job.Status != domain.StatusCompleted {
		return nil, storage.ObjectInfo{}, domain.ErrNotReady
	}
	if job.OutputRef == nil {
		return nil, storage.ObjectInfo{}, domain.ErrOutputMissing
	}

	rc, info, err := uc.store.Get(ctx, *job.OutputRef)
	if err != nil {
		uc.logger.Error("Output object unavailable",
			zap.String("job_id", id.String()),
			zap.String("output_ref", *job.OutputRef),
			zap.Error(err),
		)
		return nil, storage.ObjectInfo{}, domain.ErrOutputMissing
	}
	if info.ContentType == "" {
		info.ContentType = job.OutputFormat.ContentType()
	}
	return rc, info, nil
}
