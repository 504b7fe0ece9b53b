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
)

const (
	msgGradeDuplicate = "Grade already exists for this student and assessment"
	msgGradeNotFound  = "grade not found"
)

type gradeRepository interface {
	Insert(ctx context.Context, grade *models.Grade) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	ListByStudent(ctx context.Context, studentID, subjectID string) ([]models.GradeRecord, error)
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error)
	Save(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
}

type assessmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
}

// GradeService records and reads assessment results.
type GradeService struct {
	repo        gradeRepository
	assessments assessmentLookup
	students    studentLookup
	links       models.StudentLinker
	tx          transactor
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewGradeService constructs the grade service.
func NewGradeService(repo gradeRepository, assessments assessmentLookup, students studentLookup, links models.StudentLinker, tx transactor, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		repo:        repo,
		assessments: assessments,
		students:    students,
		links:       links,
		tx:          tx,
		metrics:     metrics,
		validator:   withDomainValidations(validate),
		logger:      logger,
	}
}

// CreateGradeRequest records one student's result.
type CreateGradeRequest struct {
	StudentID     string     `json:"student_id" validate:"required"`
	AssessmentID  string     `json:"assessment_id" validate:"required"`
	SubjectID     string     `json:"subject_id"`
	TeacherID     string     `json:"teacher_id"`
	MarksObtained *float64   `json:"marks_obtained" validate:"omitempty,gte=0"`
	IsAbsent      bool       `json:"is_absent"`
	Remarks       *string    `json:"remarks"`
	Feedback      *string    `json:"feedback"`
	SubmittedOn   *time.Time `json:"submitted_on"`
}

// BulkGradeItem is one student entry of a bulk grade request.
type BulkGradeItem struct {
	StudentID     string   `json:"student_id" validate:"required"`
	MarksObtained *float64 `json:"marks_obtained" validate:"omitempty,gte=0"`
	IsAbsent      bool     `json:"is_absent"`
	Remarks       *string  `json:"remarks"`
}

// BulkGradeRequest records results for many students on one assessment.
type BulkGradeRequest struct {
	AssessmentID string          `json:"assessment_id" validate:"required"`
	SubjectID    string          `json:"subject_id"`
	TeacherID    string          `json:"teacher_id"`
	Grades       []BulkGradeItem `json:"grades" validate:"required,min=1,dive"`
}

// UpdateGradeRequest carries the fields of a partial update.
type UpdateGradeRequest struct {
	MarksObtained *float64 `json:"marks_obtained" validate:"omitempty,gte=0"`
	IsAbsent      *bool    `json:"is_absent"`
	Remarks       *string  `json:"remarks"`
	Feedback      *string  `json:"feedback"`
}

// Create records a grade. Percentage and letter grade derive from the marks.
func (s *GradeService) Create(ctx context.Context, actor *models.Actor, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid grade payload")
	}
	assessment, err := s.loadAssessment(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}
	if err := checkMarks(req.MarksObtained, assessment.TotalMarks); err != nil {
		return nil, err
	}

	grade := &models.Grade{
		StudentID:     req.StudentID,
		AssessmentID:  assessment.ID,
		SubjectID:     firstNonEmpty(req.SubjectID, assessment.SubjectID),
		TeacherID:     gradingTeacher(actor, req.TeacherID, assessment),
		MarksObtained: req.MarksObtained,
		IsAbsent:      req.IsAbsent,
		Remarks:       req.Remarks,
		Feedback:      req.Feedback,
		SubmittedOn:   req.SubmittedOn,
	}
	grade.Rescore(assessment.TotalMarks)

	inserted, err := s.repo.Insert(ctx, grade)
	if err != nil {
		return nil, referenceOr(err, "failed to record grade")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrDuplicate, msgGradeDuplicate)
	}
	s.metrics.RecordGrades("single", 1)
	s.logger.Info("grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("student_id", grade.StudentID),
		zap.String("assessment_id", grade.AssessmentID),
	)
	return grade, nil
}

// BulkCreate records grades in one transaction, skipping students already graded.
func (s *GradeService) BulkCreate(ctx context.Context, actor *models.Actor, req BulkGradeRequest) (*BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid bulk grade payload")
	}
	assessment, err := s.loadAssessment(ctx, req.AssessmentID)
	if err != nil {
		return nil, err
	}
	for i, item := range req.Grades {
		if err := checkMarks(item.MarksObtained, assessment.TotalMarks); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grades[%d]: %s", i, appErrors.FromError(err).Message))
		}
	}

	subjectID := firstNonEmpty(req.SubjectID, assessment.SubjectID)
	teacherID := gradingTeacher(actor, req.TeacherID, assessment)
	result := &BulkResult{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, item := range req.Grades {
			if err := s.ensureStudent(ctx, item.StudentID); err != nil {
				return err
			}
			grade := &models.Grade{
				StudentID:     item.StudentID,
				AssessmentID:  assessment.ID,
				SubjectID:     subjectID,
				TeacherID:     teacherID,
				MarksObtained: item.MarksObtained,
				IsAbsent:      item.IsAbsent,
				Remarks:       item.Remarks,
			}
			grade.Rescore(assessment.TotalMarks)
			inserted, err := s.repo.Insert(ctx, grade)
			if err != nil {
				return referenceOr(err, "failed to record grade")
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

	result.Message = fmt.Sprintf("Grades recorded for %d students", result.Created)
	s.metrics.RecordGrades("bulk", result.Created)
	s.logger.Info("bulk grades recorded",
		zap.String("assessment_id", assessment.ID),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ByStudent lists a student's grades, optionally for one subject.
func (s *GradeService) ByStudent(ctx context.Context, actor *models.Actor, studentID, subjectID string) ([]models.GradeRecord, error) {
	if err := authorizeStudentView(ctx, actor, studentID, s.links); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByStudent(ctx, studentID, subjectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list student grades")
	}
	return grades, nil
}

// ByAssessment lists every grade of an assessment.
func (s *GradeService) ByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error) {
	if _, err := s.loadAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assessment grades")
	}
	return grades, nil
}

// Update applies a partial update and recomputes the derived fields from the
// final state. Teachers may only update grades they recorded.
func (s *GradeService) Update(ctx context.Context, actor *models.Actor, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid grade payload")
	}
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgGradeNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load grade")
	}
	if !actor.OwnsTeacherRecord(grade.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only modify grades you recorded")
	}
	assessment, err := s.loadAssessment(ctx, grade.AssessmentID)
	if err != nil {
		return nil, err
	}

	if req.MarksObtained != nil {
		grade.MarksObtained = req.MarksObtained
	}
	if req.IsAbsent != nil {
		grade.IsAbsent = *req.IsAbsent
	}
	if req.Remarks != nil {
		grade.Remarks = req.Remarks
	}
	if req.Feedback != nil {
		grade.Feedback = req.Feedback
	}
	if err := checkMarks(grade.MarksObtained, assessment.TotalMarks); err != nil {
		return nil, err
	}
	grade.Rescore(assessment.TotalMarks)

	if err := s.repo.Save(ctx, grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgGradeNotFound)
		}
		return nil, appErrors.Internal(err, "failed to update grade")
	}
	s.logger.Info("grade updated", zap.String("grade_id", id))
	return grade, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgGradeNotFound)
		}
		return appErrors.Internal(err, "failed to delete grade")
	}
	s.logger.Info("grade deleted", zap.String("grade_id", id))
	return nil
}

func (s *GradeService) loadAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.assessments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgAssessmentNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load assessment")
	}
	return assessment, nil
}

func (s *GradeService) ensureStudent(ctx context.Context, studentID string) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
		}
		return appErrors.Internal(err, "failed to load student")
	}
	return nil
}

func checkMarks(marks *float64, total float64) error {
	if marks != nil && *marks > total {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("marks_obtained cannot exceed total_marks (%g)", total))
	}
	return nil
}

// gradingTeacher prefers the calling teacher, then an explicit id, then the assessment owner.
func gradingTeacher(actor *models.Actor, explicit string, assessment *models.Assessment) string {
	if actor != nil && actor.Role == models.RoleTeacher && actor.TeacherID != "" {
		return actor.TeacherID
	}
	return firstNonEmpty(explicit, assessment.TeacherID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
