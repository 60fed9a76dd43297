package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/backoffice-api/internal/models"
)

const exportJobColumns = `id, type, format, status, requested_by, file_path, download_token, download_url, error, attempts, created_at, updated_at, completed_at, expires_at`

// ExportJobRepository persists asynchronous export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.ExportStatusQueued
	}

	const query = `INSERT INTO export_jobs
		(id, type, format, status, requested_by, file_path, download_token, download_url, error, attempts, created_at, updated_at, completed_at, expires_at)
		VALUES (:id, :type, :format, :status, :requested_by, :file_path, :download_token, :download_url, :error, :attempts, :created_at, :updated_at, :completed_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// GetByID fetches one job.
func (r *ExportJobRepository) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE id = $1", exportJobColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job: %w", err)
	}
	return &job, nil
}

// GetByToken resolves a download token back to its job.
func (r *ExportJobRepository) GetByToken(ctx context.Context, token string) (*models.ExportJob, error) {
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE download_token = $1", exportJobColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job by token: %w", err)
	}
	return &job, nil
}

// ListByRequester returns a user's jobs, newest first.
func (r *ExportJobRepository) ListByRequester(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf("SELECT %s FROM export_jobs WHERE requested_by = $1 ORDER BY created_at DESC LIMIT %d",
		exportJobColumns, limit)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a queued job into PROCESSING and bumps the attempt
// counter. Guarded so a job cannot be picked up twice.
func (r *ExportJobRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE export_jobs SET status = 'PROCESSING', attempts = attempts + 1, updated_at = $2
		WHERE id = $1 AND status IN ('QUEUED', 'FAILED')`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check export rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkCompleted records the artifact location and signed download details.
func (r *ExportJobRepository) MarkCompleted(ctx context.Context, id, filePath, token, url string, expiresAt time.Time) error {
	now := time.Now().UTC()
	const query = `UPDATE export_jobs SET status = 'COMPLETED', file_path = $2, download_token = $3,
		download_url = $4, error = NULL, completed_at = $5, expires_at = $6, updated_at = $5
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filePath, token, url, now, expiresAt); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	return nil
}

// MarkFailed records a failure reason.
func (r *ExportJobRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE export_jobs SET status = 'FAILED', error = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark export failed: %w", err)
	}
	return nil
}

// DeleteExpired removes completed jobs whose download window has lapsed and
// returns their file paths so the caller can unlink the artifacts.
func (r *ExportJobRepository) DeleteExpired(ctx context.Context, now time.Time) ([]string, error) {
	const query = `DELETE FROM export_jobs
		WHERE status = 'COMPLETED' AND file_path IS NOT NULL AND expires_at IS NOT NULL AND expires_at < $1
		RETURNING file_path`
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query, now); err != nil {
		return nil, fmt.Errorf("delete expired exports: %w", err)
	}
	return paths, nil
}
