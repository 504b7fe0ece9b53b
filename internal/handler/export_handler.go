package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type exportJobService interface {
	CreateJob(ctx context.Context, actor *models.Actor, req service.CreateExportJobRequest) (*models.ExportJob, error)
	Get(ctx context.Context, actor *models.Actor, id string) (*models.ExportJob, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes background export jobs.
type ExportHandler struct {
	exports exportJobService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports exportJobService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create godoc
// @Summary Queue a background export
// @Tags Exports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateExportJobRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /exports/jobs [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req service.CreateExportJobRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/jobs/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	job, err := h.exports.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download godoc
// @Summary Download a finished export through its signed link
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	download, err := h.exports.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read export file"))
		return
	}
	response.Stream(c, download.Filename, download.ContentType, info.Size(), download.File)
}
