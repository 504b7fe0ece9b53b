package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const exportJobColumns = `id, type, params, status, progress, attempts, result_url, file_path, created_by, created_at, finished_at, error_message`

// ExportJobRepository persists background export jobs.
type ExportJobRepository struct {
	db *sqlx.DB
}

// NewExportJobRepository constructs the repository.
func NewExportJobRepository(db *sqlx.DB) *ExportJobRepository {
	return &ExportJobRepository{db: db}
}

// Create inserts a queued job, filling id and timestamps when unset.
func (r *ExportJobRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.ExportQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO export_jobs (id, type, params, status, progress, attempts, created_by, created_at)
VALUES (:id, :type, :params, :status, :progress, :attempts, :created_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, job); err != nil {
		return fmt.Errorf("create export job: %w", translate(err))
	}
	return nil
}

// FindByID returns sql.ErrNoRows when the job does not exist.
func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE id = $1`
	var job models.ExportJob
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update writes the supplied columns.
func (r *ExportJobRepository) Update(ctx context.Context, id string, upd models.ExportJobUpdate) error {
	b := newSetBuilder()
	setIf(b, "status", upd.Status)
	setIf(b, "progress", upd.Progress)
	setIf(b, "attempts", upd.Attempts)
	setIf(b, "result_url", upd.ResultURL)
	setIf(b, "file_path", upd.FilePath)
	setIf(b, "error_message", upd.ErrorMessage)
	setIf(b, "finished_at", upd.FinishedAt)
	if b.empty() {
		return nil
	}
	query, args := b.build("export_jobs", id)
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update export job: %w", translate(err))
	}
	return requireAffected(res)
}

// ListQueued returns the oldest queued jobs, used to replay work after a restart.
func (r *ExportJobRepository) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs WHERE status IN ('queued', 'processing') ORDER BY created_at ASC LIMIT $1`
	jobs := []models.ExportJob{}
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued export jobs: %w", translate(err))
	}
	return jobs, nil
}

// ListFinishedBefore returns finished jobs whose files are due for removal.
func (r *ExportJobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + exportJobColumns + ` FROM export_jobs
WHERE status = 'finished' AND file_path IS NOT NULL AND finished_at < $1 ORDER BY finished_at ASC LIMIT $2`
	jobs := []models.ExportJob{}
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &jobs, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list finished export jobs: %w", translate(err))
	}
	return jobs, nil
}
