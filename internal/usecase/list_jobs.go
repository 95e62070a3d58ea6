package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListJobsUsecase returns recent jobs with optional filters.
type ListJobsUsecase struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

// NewListJobsUsecase creates a new ListJobsUsecase.
func NewListJobsUsecase(repo repository.JobRepository, logger *zap.Logger) *ListJobsUsecase {
	return &ListJobsUsecase{repo: repo, logger: logger}
}

// Execute lists jobs newest-first. An empty status/template filter matches
// everything; the limit defaults to 50 and is capped to bound response size.
func (uc *ListJobsUsecase) Execute(ctx context.Context, status, template string, limit int) ([]domain.JobView, error) {
	filter := repository.ListFilter{Limit: limit}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	if status != "" {
		s := domain.JobStatus(status)
		if !s.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrMalformedInput, status)
		}
		filter.Status = &s
	}
	if template != "" {
		t := domain.TemplateName(template)
		filter.Template = &t
	}

	jobs, err := uc.repo.List(ctx, filter)
	if err != nil {
		uc.logger.Error("Failed to list jobs", zap.Error(err))
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	views := make([]domain.JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, j.View())
	}
	return views, nil
}
