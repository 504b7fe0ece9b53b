package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

const msgAssessmentNotFound = "assessment not found"

type assessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	FindByID(ctx context.Context, id string) (*models.Assessment, error)
	List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, int, error)
	Update(ctx context.Context, id string, patch models.AssessmentPatch) error
	Delete(ctx context.Context, id string) error
}

type gradeRescorer interface {
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error)
	SaveScore(ctx context.Context, grade *models.Grade) error
}

type subjectChecker interface {
	SubjectExists(ctx context.Context, id string) (bool, error)
}

type teacherChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// AssessmentService manages assessments.
type AssessmentService struct {
	repo      assessmentRepository
	grades    gradeRescorer
	subjects  subjectChecker
	teachers  teacherChecker
	tx        transactor
	paging    Paging
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs the assessment service.
func NewAssessmentService(repo assessmentRepository, grades gradeRescorer, subjects subjectChecker, teachers teacherChecker, tx transactor, paging Paging, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		repo:      repo,
		grades:    grades,
		subjects:  subjects,
		teachers:  teachers,
		tx:        tx,
		paging:    paging,
		validator: withDomainValidations(validate),
		logger:    logger,
	}
}

// CreateAssessmentRequest is the payload for a new assessment.
type CreateAssessmentRequest struct {
	Title           string   `json:"title" validate:"required,max=255"`
	Description     *string  `json:"description"`
	SubjectID       string   `json:"subject_id" validate:"required"`
	TeacherID       string   `json:"teacher_id"`
	AssessmentType  string   `json:"assessment_type" validate:"required,assessment_type"`
	TotalMarks      float64  `json:"total_marks" validate:"gt=0"`
	PassingMarks    *float64 `json:"passing_marks" validate:"omitempty,gte=0"`
	Weightage       *float64 `json:"weightage" validate:"omitempty,gte=0,lte=10"`
	Date            string   `json:"date" validate:"required"`
	DueDate         *string  `json:"due_date"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gt=0"`
	Instructions    *string  `json:"instructions"`
	IsPublished     bool     `json:"is_published"`
}

// UpdateAssessmentRequest carries the fields of a partial update.
type UpdateAssessmentRequest struct {
	Title           *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Description     *string  `json:"description"`
	AssessmentType  *string  `json:"assessment_type" validate:"omitempty,assessment_type"`
	TotalMarks      *float64 `json:"total_marks" validate:"omitempty,gt=0"`
	PassingMarks    *float64 `json:"passing_marks" validate:"omitempty,gte=0"`
	Weightage       *float64 `json:"weightage" validate:"omitempty,gte=0,lte=10"`
	Date            *string  `json:"date"`
	DueDate         *string  `json:"due_date"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gt=0"`
	Instructions    *string  `json:"instructions"`
	IsPublished     *bool    `json:"is_published"`
}

// AssessmentListRequest holds listing query values.
type AssessmentListRequest struct {
	Skip           *int
	Limit          *int
	SubjectID      string
	AssessmentType string
	IsPublished    *bool
}

// Create stores an assessment owned by the acting teacher.
func (s *AssessmentService) Create(ctx context.Context, actor *models.Actor, req CreateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid assessment payload")
	}
	if req.PassingMarks != nil && *req.PassingMarks > req.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passing_marks cannot exceed total_marks")
	}
	teacherID, err := actor.ActingTeacherID(req.TeacherID)
	if err != nil {
		return nil, actingTeacherError(err)
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseOptionalDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.SubjectID, teacherID, actor); err != nil {
		return nil, err
	}

	weightage := 1.0
	if req.Weightage != nil {
		weightage = *req.Weightage
	}
	assessment := &models.Assessment{
		Title:           req.Title,
		Description:     req.Description,
		SubjectID:       req.SubjectID,
		TeacherID:       teacherID,
		AssessmentType:  models.AssessmentType(req.AssessmentType),
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		Weightage:       weightage,
		Date:            date,
		DueDate:         dueDate,
		DurationMinutes: req.DurationMinutes,
		Instructions:    req.Instructions,
		IsPublished:     req.IsPublished,
	}
	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, referenceOr(err, "failed to create assessment")
	}
	s.logger.Info("assessment created", zap.String("assessment_id", assessment.ID), zap.String("teacher_id", teacherID))
	return assessment, nil
}

// List returns assessments newest first. Teachers only see their own.
func (s *AssessmentService) List(ctx context.Context, actor *models.Actor, req AssessmentListRequest) ([]models.Assessment, *models.Pagination, error) {
	skip, limit, err := s.paging.Resolve(req.Skip, req.Limit)
	if err != nil {
		return nil, nil, err
	}
	if req.AssessmentType != "" && !models.AssessmentType(req.AssessmentType).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid assessment_type")
	}
	filter := models.AssessmentFilter{
		SubjectID:      req.SubjectID,
		AssessmentType: models.AssessmentType(req.AssessmentType),
		IsPublished:    req.IsPublished,
		Skip:           skip,
		Limit:          limit,
	}
	if actor != nil && actor.Role == models.RoleTeacher {
		filter.TeacherID = actor.TeacherID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list assessments")
	}
	return items, &models.Pagination{Skip: skip, Limit: limit, TotalCount: total}, nil
}

// Get returns one assessment.
func (s *AssessmentService) Get(ctx context.Context, id string) (*models.Assessment, error) {
	assessment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgAssessmentNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load assessment")
	}
	return assessment, nil
}

// Update applies a partial update. Teachers may only edit their own assessments.
func (s *AssessmentService) Update(ctx context.Context, actor *models.Actor, id string, req UpdateAssessmentRequest) (*models.Assessment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid assessment payload")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsTeacherRecord(current.TeacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only modify your own assessments")
	}

	patch := models.AssessmentPatch{
		Title:           req.Title,
		Description:     req.Description,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		Weightage:       req.Weightage,
		DurationMinutes: req.DurationMinutes,
		Instructions:    req.Instructions,
		IsPublished:     req.IsPublished,
	}
	if req.AssessmentType != nil {
		t := models.AssessmentType(*req.AssessmentType)
		patch.AssessmentType = &t
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			return nil, err
		}
		patch.Date = &date
	}
	if patch.DueDate, err = parseOptionalDate("due_date", req.DueDate); err != nil {
		return nil, err
	}

	total := current.TotalMarks
	if patch.TotalMarks != nil {
		total = *patch.TotalMarks
	}
	passing := current.PassingMarks
	if patch.PassingMarks != nil {
		passing = patch.PassingMarks
	}
	if passing != nil && *passing > total {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passing_marks cannot exceed total_marks")
	}

	rescore := patch.TotalMarks != nil && *patch.TotalMarks != current.TotalMarks
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var grades []models.GradeRecord
		if rescore {
			loaded, err := s.grades.ListByAssessment(ctx, id)
			if err != nil {
				return appErrors.Internal(err, "failed to load grades")
			}
			grades = loaded
			for _, g := range grades {
				if !g.IsAbsent && g.MarksObtained != nil && *g.MarksObtained > total {
					return appErrors.Clone(appErrors.ErrValidation, "total_marks cannot be below marks already recorded")
				}
			}
		}
		if err := s.repo.Update(ctx, id, patch); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, msgAssessmentNotFound)
			}
			return referenceOr(err, "failed to update assessment")
		}
		for i := range grades {
			grade := grades[i].Grade
			grade.Rescore(total)
			if err := s.grades.SaveScore(ctx, &grade); err != nil {
				return appErrors.Internal(err, "failed to rescore grades")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rescore {
		s.logger.Info("assessment grades rescored", zap.String("assessment_id", id), zap.Float64("total_marks", total))
	}
	return s.Get(ctx, id)
}

// Delete removes an assessment and its grades.
func (s *AssessmentService) Delete(ctx context.Context, actor *models.Actor, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.OwnsTeacherRecord(current.TeacherID) {
		return appErrors.Clone(appErrors.ErrForbidden, "you can only delete your own assessments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, msgAssessmentNotFound)
		}
		return appErrors.Internal(err, "failed to delete assessment")
	}
	s.logger.Info("assessment deleted", zap.String("assessment_id", id))
	return nil
}

func (s *AssessmentService) ensureReferences(ctx context.Context, subjectID, teacherID string, actor *models.Actor) error {
	ok, err := s.subjects.SubjectExists(ctx, subjectID)
	if err != nil {
		return appErrors.Internal(err, "failed to check subject")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if actor.Role == models.RoleTeacher {
		return nil
	}
	ok, err = s.teachers.Exists(ctx, teacherID)
	if err != nil {
		return appErrors.Internal(err, "failed to check teacher")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return nil
}

// actingTeacherError maps actor resolution failures onto API errors.
func actingTeacherError(err error) error {
	switch {
	case errors.Is(err, models.ErrActingTeacherRequired):
		return appErrors.Validation(err, err.Error())
	case errors.Is(err, models.ErrNoTeacherProfile):
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "teacher profile not found")
	default:
		return appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "only teachers and administrators can do this")
	}
}
