package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/repository"
)

// Ensure pgJobRepo implements repository.JobRepository.
var _ repository.JobRepository = (*pgJobRepo)(nil)

type pgJobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new PostgreSQL-backed job repository.
func NewJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &pgJobRepo{pool: pool}
}

const jobColumns = `id, template_name, output_format, status, input_data,
	       output_ref, error_message, attempts, created_at, updated_at,
	       started_at, completed_at`

func (r *pgJobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO document_jobs (id, template_name, output_format, status, input_data, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.TemplateName, job.OutputFormat, job.Status,
		job.InputData, job.Attempts, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (r *pgJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM document_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	return job, nil
}

func (r *pgJobRepo) Transition(ctx context.Context, id uuid.UUID, from, to domain.JobStatus, upd repository.TransitionUpdate) error {
	var (
		query string
		args  []any
	)
	now := time.Now().UTC()

	if upd.ClearResult {
		query = `
			UPDATE document_jobs
			SET status = $3, updated_at = $4,
			    output_ref = NULL, error_message = NULL,
			    started_at = NULL, completed_at = NULL
			WHERE id = $1 AND status = $2`
		args = []any{id, from, to, now}
	} else {
		query = `
			UPDATE document_jobs
			SET status = $3, updated_at = $4,
			    started_at = COALESCE($5, started_at),
			    completed_at = COALESCE($6, completed_at),
			    output_ref = COALESCE($7, output_ref),
			    error_message = COALESCE($8, error_message),
			    attempts = COALESCE($9, attempts)
			WHERE id = $1 AND status = $2`
		args = []any{id, from, to, now, upd.StartedAt, upd.CompletedAt, upd.OutputRef, upd.ErrorMessage, upd.Attempts}
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: transition job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: the job is either missing or in a different status.
	var current domain.JobStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM document_jobs WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: transition status check: %w", err)
	}
	return fmt.Errorf("%w: job %s is %q, expected %q", domain.ErrConflict, id, current, from)
}

func (r *pgJobRepo) List(ctx context.Context, filter repository.ListFilter) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM document_jobs WHERE 1=1`
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Template != nil {
		args = append(args, *filter.Template)
		query += fmt.Sprintf(" AND template_name = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *pgJobRepo) ListFailedSince(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM document_jobs
		WHERE status = $1 AND updated_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusFailed, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list failed jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*domain.Job, error) {
	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	job := &domain.Job{}
	err := row.Scan(
		&job.ID, &job.TemplateName, &job.OutputFormat, &job.Status,
		&job.InputData, &job.OutputRef, &job.ErrorMessage, &job.Attempts,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
