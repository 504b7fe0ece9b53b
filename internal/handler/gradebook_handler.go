package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type assessmentService interface {
	Create(ctx context.Context, actor *models.Actor, req service.CreateAssessmentRequest) (*models.Assessment, error)
	List(ctx context.Context, actor *models.Actor, req service.AssessmentListRequest) ([]models.Assessment, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Assessment, error)
	Update(ctx context.Context, actor *models.Actor, id string, req service.UpdateAssessmentRequest) (*models.Assessment, error)
	Delete(ctx context.Context, actor *models.Actor, id string) error
}

type gradeService interface {
	Create(ctx context.Context, actor *models.Actor, req service.CreateGradeRequest) (*models.Grade, error)
	BulkCreate(ctx context.Context, actor *models.Actor, req service.BulkGradeRequest) (*service.BulkResult, error)
	ByStudent(ctx context.Context, actor *models.Actor, studentID, subjectID string) ([]models.GradeRecord, error)
	ByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error)
	Update(ctx context.Context, actor *models.Actor, id string, req service.UpdateGradeRequest) (*models.Grade, error)
	Delete(ctx context.Context, id string) error
}

// GradebookHandler exposes assessments and grades.
type GradebookHandler struct {
	assessments assessmentService
	grades      gradeService
}

// NewGradebookHandler constructs GradebookHandler.
func NewGradebookHandler(assessments assessmentService, grades gradeService) *GradebookHandler {
	return &GradebookHandler{assessments: assessments, grades: grades}
}

// CreateAssessment godoc
// @Summary Create an assessment
// @Tags Gradebook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAssessmentRequest true "Assessment"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /gradebook/assessments [post]
func (h *GradebookHandler) CreateAssessment(c *gin.Context) {
	var req service.CreateAssessmentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	assessment, err := h.assessments.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assessment)
}

// ListAssessments godoc
// @Summary List assessments
// @Tags Gradebook
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Param subject_id query string false "Subject"
// @Param assessment_type query string false "Type"
// @Param is_published query bool false "Published state"
// @Success 200 {object} response.Envelope
// @Router /gradebook/assessments [get]
func (h *GradebookHandler) ListAssessments(c *gin.Context) {
	req := service.AssessmentListRequest{
		SubjectID:      c.Query("subject_id"),
		AssessmentType: c.Query("assessment_type"),
	}
	var err error
	if req.Skip, err = optionalInt(c, "skip"); err != nil {
		response.Error(c, err)
		return
	}
	if req.Limit, err = optionalInt(c, "limit"); err != nil {
		response.Error(c, err)
		return
	}
	if req.IsPublished, err = optionalBool(c, "is_published"); err != nil {
		response.Error(c, err)
		return
	}

	items, pagination, err := h.assessments.List(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// GetAssessment godoc
// @Summary Get an assessment
// @Tags Gradebook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/assessments/{id} [get]
func (h *GradebookHandler) GetAssessment(c *gin.Context) {
	assessment, err := h.assessments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// UpdateAssessment godoc
// @Summary Update an assessment
// @Tags Gradebook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Param payload body service.UpdateAssessmentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/assessments/{id} [put]
func (h *GradebookHandler) UpdateAssessment(c *gin.Context) {
	var req service.UpdateAssessmentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	assessment, err := h.assessments.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assessment, nil)
}

// DeleteAssessment godoc
// @Summary Delete an assessment and its grades
// @Tags Gradebook
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/assessments/{id} [delete]
func (h *GradebookHandler) DeleteAssessment(c *gin.Context) {
	if err := h.assessments.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CreateGrade godoc
// @Summary Record a grade
// @Tags Gradebook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateGradeRequest true "Grade"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/grades [post]
func (h *GradebookHandler) CreateGrade(c *gin.Context) {
	var req service.CreateGradeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	grade, err := h.grades.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// BulkCreateGrades godoc
// @Summary Record grades for many students
// @Tags Gradebook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkGradeRequest true "Grades"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /gradebook/grades/bulk [post]
func (h *GradebookHandler) BulkCreateGrades(c *gin.Context) {
	var req service.BulkGradeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.grades.BulkCreate(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// StudentGrades godoc
// @Summary Grades of a student
// @Tags Gradebook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param subject_id query string false "Subject"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /gradebook/grades/student/{id} [get]
func (h *GradebookHandler) StudentGrades(c *gin.Context) {
	grades, err := h.grades.ByStudent(c.Request.Context(), actorFromContext(c), c.Param("id"), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nonNilGrades(grades), nil)
}

// AssessmentGrades godoc
// @Summary Grades of an assessment
// @Tags Gradebook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Assessment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/grades/assessment/{id} [get]
func (h *GradebookHandler) AssessmentGrades(c *gin.Context) {
	grades, err := h.grades.ByAssessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nonNilGrades(grades), nil)
}

// UpdateGrade godoc
// @Summary Update a grade
// @Tags Gradebook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /gradebook/grades/{id} [put]
func (h *GradebookHandler) UpdateGrade(c *gin.Context) {
	var req service.UpdateGradeRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	grade, err := h.grades.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// DeleteGrade godoc
// @Summary Delete a grade
// @Tags Gradebook
// @Security BearerAuth
// @Param id path string true "Grade ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /gradebook/grades/{id} [delete]
func (h *GradebookHandler) DeleteGrade(c *gin.Context) {
	if err := h.grades.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func nonNilGrades(grades []models.GradeRecord) []models.GradeRecord {
	if grades == nil {
		return []models.GradeRecord{}
	}
	return grades
}
