package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, actor *models.Actor, req service.MarkAttendanceRequest) (*models.Attendance, error)
	BulkMark(ctx context.Context, actor *models.Actor, req service.BulkAttendanceRequest) (*service.BulkResult, error)
	ByDate(ctx context.Context, rawDate string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	ByStudent(ctx context.Context, actor *models.Actor, studentID string, startDate, endDate *string) ([]models.Attendance, error)
	Stats(ctx context.Context, rawDate string, filter models.AttendanceFilter) (*models.AttendanceStats, bool, error)
	Summary(ctx context.Context, req service.AttendanceSummaryRequest) ([]models.StudentAttendanceSummary, bool, error)
	ExportSummary(ctx context.Context, req service.AttendanceSummaryRequest, rawFormat string) (*export.Document, error)
	Update(ctx context.Context, id string, req service.UpdateAttendanceRequest) (*models.Attendance, error)
	Delete(ctx context.Context, id string) error
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance for one student
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.MarkAttendanceRequest true "Attendance mark"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	att, err := h.service.Mark(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// BulkMark godoc
// @Summary Mark attendance for many students
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkAttendanceRequest true "Bulk attendance"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkAttendanceRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.BulkMark(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ByDate godoc
// @Summary Attendance records for a date
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param class_id query string false "Class"
// @Param section_id query string false "Section"
// @Success 200 {object} response.Envelope
// @Router /attendance/date/{date} [get]
func (h *AttendanceHandler) ByDate(c *gin.Context) {
	records, err := h.service.ByDate(c.Request.Context(), c.Param("date"), scopeFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// ByStudent godoc
// @Summary Attendance history of a student
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param start_date query string false "From (YYYY-MM-DD)"
// @Param end_date query string false "To (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attendance/student/{id} [get]
func (h *AttendanceHandler) ByStudent(c *gin.Context) {
	records, err := h.service.ByStudent(c.Request.Context(), actorFromContext(c), c.Param("id"),
		optionalString(c, "start_date"), optionalString(c, "end_date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Stats godoc
// @Summary Attendance counts for a date
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param class_id query string false "Class"
// @Param section_id query string false "Section"
// @Success 200 {object} response.Envelope
// @Router /attendance/stats/{date} [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context(), c.Param("date"), scopeFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Summary godoc
// @Summary Per-student attendance summary for a range
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AttendanceSummaryRequest true "Range and scope"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/summary [post]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	var req service.AttendanceSummaryRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	rows, hit, err := h.service.Summary(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, rows, nil, middleware.ExtractMeta(c))
}

// ExportSummary godoc
// @Summary Download the attendance summary
// @Tags Attendance
// @Accept json
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Param payload body service.AttendanceSummaryRequest true "Range and scope"
// @Success 200 {file} file
// @Failure 422 {object} response.Envelope
// @Router /attendance/summary/export [post]
func (h *AttendanceHandler) ExportSummary(c *gin.Context) {
	var req service.AttendanceSummaryRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.service.ExportSummary(c.Request.Context(), req, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}

// Update godoc
// @Summary Update an attendance mark
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Param payload body service.UpdateAttendanceRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Update(c *gin.Context) {
	var req service.UpdateAttendanceRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	att, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, att, nil)
}

// Delete godoc
// @Summary Delete an attendance mark
// @Tags Attendance
// @Security BearerAuth
// @Param id path string true "Attendance ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func scopeFilter(c *gin.Context) models.AttendanceFilter {
	return models.AttendanceFilter{ClassID: c.Query("class_id"), SectionID: c.Query("section_id")}
}
