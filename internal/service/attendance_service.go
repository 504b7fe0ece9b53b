package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

const (
	msgAttendanceDuplicate = "Attendance already marked for this date and period"
	msgAttendanceNotFound  = "attendance record not found"
	msgStudentNotFound     = "student not found"
)

type attendanceRepository interface {
	Insert(ctx context.Context, att *models.Attendance) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Attendance, error)
	ListByDate(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error)
	StatusCounts(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceStatusCount, error)
	Summary(ctx context.Context, from, to time.Time, filter models.AttendanceFilter) ([]models.AttendanceSummaryRow, error)
	Update(ctx context.Context, id string, patch models.AttendancePatch) error
	Delete(ctx context.Context, id string) error
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AttendanceService coordinates attendance workflows.
type AttendanceService struct {
	repo      attendanceRepository
	students  studentLookup
	links     models.StudentLinker
	tx        transactor
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, students studentLookup, links models.StudentLinker, tx transactor, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		students:  students,
		links:     links,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: withDomainValidations(validate),
		logger:    logger,
		now:       time.Now,
	}
}

// MarkAttendanceRequest describes payload for marking a single attendance.
type MarkAttendanceRequest struct {
	StudentID    string     `json:"student_id" validate:"required"`
	Date         string     `json:"date" validate:"required"`
	Status       string     `json:"status" validate:"required,attendance_status"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	Remarks      *string    `json:"remarks"`
	PeriodNumber *int       `json:"period_number" validate:"omitempty,min=1"`
	SubjectID    *string    `json:"subject_id"`
}

// BulkAttendanceItem is one student entry of a bulk mark.
type BulkAttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Remarks   *string `json:"remarks"`
}

// BulkAttendanceRequest marks a roster for one date and period.
type BulkAttendanceRequest struct {
	Date         string               `json:"date" validate:"required"`
	PeriodNumber *int                 `json:"period_number" validate:"omitempty,min=1"`
	SubjectID    *string              `json:"subject_id"`
	Records      []BulkAttendanceItem `json:"attendance_records" validate:"required,min=1,dive"`
}

// BulkResult summarises a bulk write.
type BulkResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
}

// UpdateAttendanceRequest carries the fields of a partial update.
type UpdateAttendanceRequest struct {
	Status       *string    `json:"status" validate:"omitempty,attendance_status"`
	Remarks      *string    `json:"remarks"`
	CheckInTime  *time.Time `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
}

// AttendanceSummaryRequest bounds a summary.
type AttendanceSummaryRequest struct {
	StartDate string `json:"start_date" validate:"required"`
	EndDate   string `json:"end_date" validate:"required"`
	ClassID   string `json:"class_id"`
	SectionID string `json:"section_id"`
}

// Mark records one attendance mark.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.Actor, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid attendance payload")
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	checkIn := req.CheckInTime
	if checkIn == nil {
		now := s.now().UTC()
		checkIn = &now
	}
	att := &models.Attendance{
		StudentID:    req.StudentID,
		Date:         date,
		Status:       models.AttendanceStatus(req.Status),
		CheckInTime:  checkIn,
		CheckOutTime: req.CheckOutTime,
		Remarks:      req.Remarks,
		MarkedBy:     markedBy(actor),
		PeriodNumber: req.PeriodNumber,
		SubjectID:    req.SubjectID,
	}
	inserted, err := s.repo.Insert(ctx, att)
	if err != nil {
		return nil, referenceOr(err, "failed to mark attendance")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, msgAttendanceDuplicate)
	}

	s.afterWrite(ctx)
	s.metrics.RecordAttendance("single", 1)
	s.logger.Info("attendance marked",
		zap.String("attendance_id", att.ID),
		zap.String("student_id", att.StudentID),
		zap.String("date", req.Date),
	)
	return att, nil
}

// BulkMark records a roster in one transaction. Students already marked for
// the date and period are skipped.
func (s *AttendanceService) BulkMark(ctx context.Context, actor *models.Actor, req BulkAttendanceRequest) (*BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid bulk attendance payload")
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	now := s.now().UTC()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, item := range req.Records {
			if err := s.ensureStudent(ctx, item.StudentID); err != nil {
				return err
			}
			checkIn := now
			inserted, err := s.repo.Insert(ctx, &models.Attendance{
				StudentID:    item.StudentID,
				Date:         date,
				Status:       models.AttendanceStatus(item.Status),
				CheckInTime:  &checkIn,
				Remarks:      item.Remarks,
				MarkedBy:     markedBy(actor),
				PeriodNumber: req.PeriodNumber,
				SubjectID:    req.SubjectID,
			})
			if err != nil {
				return referenceOr(err, "failed to mark attendance")
			}
			if inserted {
				result.Created++
			} else {
				result.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Message = fmt.Sprintf("Attendance marked for %d students", result.Created)
	s.afterWrite(ctx)
	s.metrics.RecordAttendance("bulk", result.Created)
	s.logger.Info("bulk attendance marked",
		zap.String("date", req.Date),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ByDate lists the marks of a date.
func (s *AttendanceService) ByDate(ctx context.Context, rawDate string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	date, err := parseDate("date", rawDate)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListByDate(ctx, date, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list attendance")
	}
	return records, nil
}

// ByStudent lists a student's marks, newest first. Students may only read
// their own history and parents that of linked students.
func (s *AttendanceService) ByStudent(ctx context.Context, actor *models.Actor, studentID string, startDate, endDate *string) ([]models.Attendance, error) {
	if err := authorizeStudentView(ctx, actor, studentID, s.links); err != nil {
		return nil, err
	}
	from, err := parseOptionalDate("start_date", startDate)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate("end_date", endDate)
	if err != nil {
		return nil, err
	}
	marks, err := s.repo.ListByStudent(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list student attendance")
	}
	return marks, nil
}

// Stats tallies a date's marks by status. The bool reports a cache hit.
func (s *AttendanceService) Stats(ctx context.Context, rawDate string, filter models.AttendanceFilter) (*models.AttendanceStats, bool, error) {
	date, err := parseDate("date", rawDate)
	if err != nil {
		return nil, false, err
	}

	key := cacheKey("attendance", "stats", rawDate, filter.ClassID, filter.SectionID)
	var cached models.AttendanceStats
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	counts, err := s.repo.StatusCounts(ctx, date, filter)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compute attendance stats")
	}
	stats := tallyStats(rawDate, counts)
	s.cache.Set(ctx, key, stats, 0)
	return stats, false, nil
}

// Summary tallies each in-scope student's marks over a date range. The bool reports a cache hit.
func (s *AttendanceService) Summary(ctx context.Context, req AttendanceSummaryRequest) ([]models.StudentAttendanceSummary, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Validation(err, "invalid summary payload")
	}
	from, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, false, err
	}
	to, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, false, err
	}
	if to.Before(from) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}

	key := cacheKey("attendance", "summary", req.StartDate, req.EndDate, req.ClassID, req.SectionID)
	var cached []models.StudentAttendanceSummary
	if s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	rows, err := s.repo.Summary(ctx, from, to, models.AttendanceFilter{ClassID: req.ClassID, SectionID: req.SectionID})
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to summarise attendance")
	}
	summary := make([]models.StudentAttendanceSummary, 0, len(rows))
	for _, row := range rows {
		summary = append(summary, models.StudentAttendanceSummary{
			StudentID:            row.StudentID,
			StudentName:          models.FullName(row.FirstName, row.LastName),
			AdmissionNumber:      row.AdmissionNumber,
			TotalDays:            row.TotalDays,
			PresentDays:          row.PresentDays,
			AbsentDays:           row.AbsentDays,
			LateDays:             row.LateDays,
			AttendancePercentage: percentage(row.PresentDays, row.TotalDays),
		})
	}
	s.cache.Set(ctx, key, summary, 0)
	return summary, false, nil
}

// ExportSummary renders the summary as CSV or PDF.
func (s *AttendanceService) ExportSummary(ctx context.Context, req AttendanceSummaryRequest, rawFormat string) (*export.Document, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Validation(err, err.Error())
	}
	summary, _, err := s.Summary(ctx, req)
	if err != nil {
		return nil, err
	}

	doc, err := export.Build(format, attendanceSummaryFilename(req), attendanceSummaryDataset(req, summary))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render attendance summary")
	}
	return doc, nil
}

// Update applies a partial update and returns the stored record.
func (s *AttendanceService) Update(ctx context.Context, id string, req UpdateAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid attendance payload")
	}
	patch := models.AttendancePatch{
		Remarks:      req.Remarks,
		CheckInTime:  req.CheckInTime,
		CheckOutTime: req.CheckOutTime,
	}
	if req.Status != nil {
		status := models.AttendanceStatus(*req.Status)
		patch.Status = &status
	}

	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgAttendanceNotFound)
		}
		return nil, referenceOr(err, "failed to update attendance")
	}
	att, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgAttendanceNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	if !patch.Empty() {
		s.afterWrite(ctx)
	}
	return att, nil
}

// Delete removes an attendance mark.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgAttendanceNotFound)
		}
		return appErrors.Internal(err, "failed to delete attendance")
	}
	s.afterWrite(ctx)
	s.logger.Info("attendance deleted", zap.String("attendance_id", id))
	return nil
}

func (s *AttendanceService) ensureStudent(ctx context.Context, studentID string) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
		}
		return appErrors.Internal(err, "failed to load student")
	}
	return nil
}

func (s *AttendanceService) afterWrite(ctx context.Context) {
	s.cache.Invalidate(ctx, AttendanceCachePattern)
}

func markedBy(actor *models.Actor) *string {
	if actor == nil || actor.Role != models.RoleTeacher || actor.TeacherID == "" {
		return nil
	}
	id := actor.TeacherID
	return &id
}

func tallyStats(date string, counts []models.AttendanceStatusCount) *models.AttendanceStats {
	stats := &models.AttendanceStats{Date: date}
	for _, c := range counts {
		stats.TotalStudents += c.Count
		switch c.Status {
		case models.AttendanceStatusPresent:
			stats.Present = c.Count
		case models.AttendanceStatusAbsent:
			stats.Absent = c.Count
		case models.AttendanceStatusLate:
			stats.Late = c.Count
		case models.AttendanceStatusSickLeave:
			stats.SickLeave = c.Count
		case models.AttendanceStatusExcused:
			stats.Excused = c.Count
		case models.AttendanceStatusHalfDay:
			stats.HalfDay = c.Count
		}
	}
	stats.AttendancePercentage = percentage(stats.Present, stats.TotalStudents)
	return stats
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return models.Round2(float64(part) / float64(total) * 100)
}

// authorizeStudentView rejects callers that may not read the student's records.
func authorizeStudentView(ctx context.Context, actor *models.Actor, studentID string, links models.StudentLinker) error {
	ok, err := actor.CanViewStudent(ctx, studentID, links)
	if err != nil {
		return appErrors.Internal(err, "failed to check student access")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student's records")
	}
	return nil
}
