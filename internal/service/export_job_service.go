package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
	"github.com/noah-isme/school-mgmt-api/pkg/jobs"
	"github.com/noah-isme/school-mgmt-api/pkg/storage"
)

const (
	msgExportJobNotFound = "export job not found"
	cleanupBatchSize     = 100
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, upd models.ExportJobUpdate) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type taskQueue interface {
	Enqueue(task jobs.Task) error
}

type exportFiles interface {
	ParseToken(token string) (*storage.DownloadClaims, error)
	Open(filePath string) (*os.File, error)
	Delete(filePath string) error
	Sweep() ([]string, error)
}

// ExportJobConfig governs retention of finished exports.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// CreateExportJobRequest is the payload of a background export request.
type CreateExportJobRequest struct {
	Type         string `json:"type" validate:"required,oneof=attendance_summary assessment_grades"`
	Format       string `json:"format" validate:"omitempty,oneof=csv pdf"`
	StartDate    string `json:"start_date" validate:"required_if=Type attendance_summary"`
	EndDate      string `json:"end_date" validate:"required_if=Type attendance_summary"`
	ClassID      string `json:"class_id"`
	SectionID    string `json:"section_id"`
	AssessmentID string `json:"assessment_id" validate:"required_if=Type assessment_grades"`
}

// ExportDownload is an opened export file ready to stream.
type ExportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ExportJobService manages the lifecycle of background exports.
type ExportJobService struct {
	repo        exportJobRepository
	queue       taskQueue
	files       exportFiles
	assessments assessmentGetter
	validator   *validator.Validate
	cfg         ExportJobConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportJobService constructs the export job service.
func NewExportJobService(repo exportJobRepository, queue taskQueue, files exportFiles, assessments assessmentGetter, validate *validator.Validate, cfg ExportJobConfig, logger *zap.Logger) *ExportJobService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportJobService{
		repo:        repo,
		queue:       queue,
		files:       files,
		assessments: assessments,
		validator:   withDomainValidations(validate),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateJob validates and persists an export request and hands it to the queue.
func (s *ExportJobService) CreateJob(ctx context.Context, actor *models.Actor, req CreateExportJobRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid export payload")
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return nil, appErrors.Validation(err, err.Error())
	}
	if err := s.authorize(ctx, actor, req); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Type: models.ExportType(req.Type),
		Params: models.ExportJobParams{
			Format:       string(format),
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			ClassID:      req.ClassID,
			SectionID:    req.SectionID,
			AssessmentID: req.AssessmentID,
		},
		Status:    models.ExportQueued,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Internal(err, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Task{ID: job.ID, Kind: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "export queue unavailable")
		return nil, appErrors.Internal(err, "failed to enqueue export job")
	}
	s.logger.Info("export job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("user_id", actor.UserID),
	)
	return job, nil
}

// Get returns a job to its creator or an administrator.
func (s *ExportJobService) Get(ctx context.Context, actor *models.Actor, id string) (*models.ExportJob, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil || (job.CreatedBy != actor.UserID && !actor.IsAdmin()) {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// ResolveDownload checks a signed token against its job and opens the file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	claims, err := s.files.ParseToken(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	job, err := s.load(ctx, claims.JobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.ExportFinished:
	case models.ExportExpired:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export has expired")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	if job.FilePath == nil || *job.FilePath != claims.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	file, err := s.files.Open(claims.Path)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	format, _ := export.ParseFormat(job.Params.Format)
	return &ExportDownload{
		File:        file,
		Filename:    path.Base(claims.Path),
		ContentType: export.RendererFor(format).ContentType(),
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// RecoverPendingJobs requeues jobs left queued or processing by a previous process.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 0)
	if err != nil {
		s.logger.Warn("failed to list pending export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		task := jobs.Task{ID: job.ID, Kind: string(job.Type), Attempt: job.Attempts}
		if err := s.queue.Enqueue(task); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered export jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup expires finished exports every CleanupInterval until ctx ends.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes files of exports older than ResultTTL and marks their jobs expired.
func (s *ExportJobService) CleanupExpired(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	expired := 0
	for {
		batch, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Warn("export cleanup listing failed", zap.Error(err))
			return expired
		}
		for _, job := range batch {
			if job.FilePath != nil {
				if err := s.files.Delete(*job.FilePath); err != nil {
					s.logger.Warn("export cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
					continue
				}
			}
			status := models.ExportExpired
			if err := s.repo.Update(ctx, job.ID, models.ExportJobUpdate{Status: &status}); err != nil {
				s.logger.Warn("export cleanup update failed", zap.String("job_id", job.ID), zap.Error(err))
				continue
			}
			expired++
		}
		if len(batch) < cleanupBatchSize {
			break
		}
	}
	if removed, err := s.files.Sweep(); err != nil {
		s.logger.Warn("export directory sweep failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("removed orphaned export files", zap.Int("count", len(removed)))
	}
	return expired
}

func (s *ExportJobService) authorize(ctx context.Context, actor *models.Actor, req CreateExportJobRequest) error {
	switch models.ExportType(req.Type) {
	case models.ExportAttendanceSummary:
		if !actor.Can(models.CapViewAttendanceReports) {
			return appErrors.ErrForbidden
		}
		from, err := parseDate("start_date", req.StartDate)
		if err != nil {
			return err
		}
		to, err := parseDate("end_date", req.EndDate)
		if err != nil {
			return err
		}
		if to.Before(from) {
			return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
		}
	case models.ExportAssessmentGrades:
		if !actor.Can(models.CapViewAssessmentGrades) {
			return appErrors.ErrForbidden
		}
		if _, err := s.assessments.Get(ctx, req.AssessmentID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExportJobService) load(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgExportJobNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load export job")
	}
	return job, nil
}

func (s *ExportJobService) markFailed(ctx context.Context, id, reason string) {
	failed := models.ExportFailed
	progress := 100
	now := s.now().UTC()
	if err := s.repo.Update(ctx, id, models.ExportJobUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &reason,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.String("job_id", id), zap.Error(err))
	}
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

// ExportWorker runs queued export jobs.
type ExportWorker struct {
	repo      exportJobRepository
	generator exportGenerator
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobRepository, generator exportGenerator, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{repo: repo, generator: generator, metrics: metrics, logger: logger, now: time.Now}
}

// Handle renders one job. Errors leave the job queued for the next attempt.
func (w *ExportWorker) Handle(ctx context.Context, task jobs.Task) error {
	job, err := w.repo.FindByID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("export job vanished", zap.String("job_id", task.ID))
			return nil
		}
		return err
	}
	if job.Status != models.ExportQueued && job.Status != models.ExportProcessing {
		return nil
	}

	processing := models.ExportProcessing
	progress := 10
	attempts := task.Attempt + 1
	if err := w.repo.Update(ctx, job.ID, models.ExportJobUpdate{
		Status:   &processing,
		Progress: &progress,
		Attempts: &attempts,
	}); err != nil {
		return err
	}

	result, err := w.generator.Generate(ctx, job)
	if err != nil {
		queued := models.ExportQueued
		reset := 0
		msg := err.Error()
		if updErr := w.repo.Update(ctx, job.ID, models.ExportJobUpdate{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updErr != nil {
			w.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(updErr))
		}
		w.metrics.RecordExport(string(job.Type), "retried")
		return err
	}

	finished := models.ExportFinished
	progress = 100
	now := w.now().UTC()
	cleared := ""
	if err := w.repo.Update(ctx, job.ID, models.ExportJobUpdate{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &result.URL,
		FilePath:     &result.FilePath,
		ErrorMessage: &cleared,
		FinishedAt:   &now,
	}); err != nil {
		return err
	}
	w.metrics.RecordExport(string(job.Type), "finished")
	w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.Int("attempts", attempts))
	return nil
}

// Fail marks a job whose retries ran out as failed.
func (w *ExportWorker) Fail(ctx context.Context, task jobs.Task, cause error) {
	failed := models.ExportFailed
	progress := 100
	now := w.now().UTC()
	msg := cause.Error()
	if err := w.repo.Update(ctx, task.ID, models.ExportJobUpdate{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark export job failed", zap.String("job_id", task.ID), zap.Error(err))
	}
	w.metrics.RecordExport(task.Kind, "failed")
}
