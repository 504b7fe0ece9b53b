package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type fakeExportSrv struct {
	lastReq   service.CreateExportJobRequest
	lastActor *models.Actor
	jobs      map[string]*models.ExportJob
	file      string
}

func (f *fakeExportSrv) CreateJob(ctx context.Context, actor *models.Actor, req service.CreateExportJobRequest) (*models.ExportJob, error) {
	f.lastReq = req
	f.lastActor = actor
	return &models.ExportJob{ID: "job-1", Type: models.ExportType(req.Type), Status: models.ExportQueued, CreatedBy: actor.UserID}, nil
}

func (f *fakeExportSrv) Get(ctx context.Context, actor *models.Actor, id string) (*models.ExportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	if job.CreatedBy != actor.UserID && !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

func (f *fakeExportSrv) ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := os.Open(f.file)
	if err != nil {
		return nil, err
	}
	return &service.ExportDownload{File: file, Filename: "summary.csv", ContentType: "text/csv", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func newExportRouter(t *testing.T, actor *models.Actor) (*fakeExportSrv, *gin.Engine) {
	t.Helper()
	file := filepath.Join(t.TempDir(), "summary.csv")
	require.NoError(t, os.WriteFile(file, []byte("a,b\n1,2\n"), 0o644))

	srv := &fakeExportSrv{
		file: file,
		jobs: map[string]*models.ExportJob{"job-9": {ID: "job-9", Status: models.ExportFinished, CreatedBy: "u-t1"}},
	}
	h := NewExportHandler(srv)
	router := newTestRouter(actor)
	router.POST("/exports/jobs", h.Create)
	router.GET("/exports/jobs/:id", h.Get)
	router.GET("/exports/download/:token", h.Download)
	return srv, router
}

func TestExportHandlerCreate(t *testing.T) {
	srv, router := newExportRouter(t, testTeacher)

	rec, env := perform(t, router, http.MethodPost, "/exports/jobs", map[string]string{
		"type":       "attendance_summary",
		"format":     "pdf",
		"start_date": "2024-03-01",
		"end_date":   "2024-03-31",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var job models.ExportJob
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, models.ExportQueued, job.Status)
	assert.Equal(t, "pdf", srv.lastReq.Format)
	assert.Equal(t, "u-t1", srv.lastActor.UserID)

	rec, env = perform(t, router, http.MethodPost, "/exports/jobs", "{bad json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestExportHandlerGet(t *testing.T) {
	_, router := newExportRouter(t, testTeacher)

	rec, env := perform(t, router, http.MethodGet, "/exports/jobs/job-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"finished"`)
	assert.NotContains(t, string(env.Data), "file_path")

	rec, _ = perform(t, router, http.MethodGet, "/exports/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, other := newExportRouter(t, &models.Actor{UserID: "u-t2", Role: models.RoleTeacher})
	rec, _ = perform(t, other, http.MethodGet, "/exports/jobs/job-9", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	_, router := newExportRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/exports/download/good", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="summary.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n1,2\n", rec.Body.String())

	rec, env := perform(t, router, http.MethodGet, "/exports/download/forged", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid download link", env.Error.Message)
}
