package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type academicService interface {
	Classes(ctx context.Context) ([]models.ClassOverview, error)
	Sections(ctx context.Context, classID string) ([]models.Section, error)
	Subjects(ctx context.Context, classID string) ([]models.Subject, error)
}

// AcademicHandler serves the class structure.
type AcademicHandler struct {
	service academicService
}

// NewAcademicHandler constructs AcademicHandler.
func NewAcademicHandler(svc academicService) *AcademicHandler {
	return &AcademicHandler{service: svc}
}

// Classes godoc
// @Summary List classes
// @Tags Academic
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *AcademicHandler) Classes(c *gin.Context) {
	classes, err := h.service.Classes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Sections godoc
// @Summary Sections of a class
// @Tags Academic
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/sections [get]
func (h *AcademicHandler) Sections(c *gin.Context) {
	sections, err := h.service.Sections(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// Subjects godoc
// @Summary Subjects of a class
// @Tags Academic
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/subjects [get]
func (h *AcademicHandler) Subjects(c *gin.Context) {
	subjects, err := h.service.Subjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}
