package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type studentService interface {
	Create(ctx context.Context, req service.CreateStudentRequest) (*models.StudentDetail, error)
	List(ctx context.Context, req service.StudentListRequest) ([]models.StudentListItem, *models.Pagination, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.StudentDetail, error)
	Update(ctx context.Context, actor *models.Actor, id string, req service.UpdateStudentRequest) (*models.StudentDetail, error)
	Delete(ctx context.Context, id string) error
	ReportCards(ctx context.Context, actor *models.Actor, id string) ([]models.ReportCard, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// Create godoc
// @Summary Create a student with its login account
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateStudentRequest true "Student"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.CreateStudentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Offset"
// @Param limit query int false "Page size"
// @Param class_id query string false "Class"
// @Param section_id query string false "Section"
// @Param status query string false "Status (default active)"
// @Param search query string false "Name, admission number or email"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	req := service.StudentListRequest{
		ClassID:   c.Query("class_id"),
		SectionID: c.Query("section_id"),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
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

	students, pagination, err := h.students.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Update godoc
// @Summary Update a student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete a student
// @Tags Students
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReportCards godoc
// @Summary Stored report cards of a student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/report-cards [get]
func (h *StudentHandler) ReportCards(c *gin.Context) {
	cards, err := h.students.ReportCards(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cards, nil)
}
