package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
)

type fakeAttendanceSrv struct {
	markErr     error
	lastActor   *models.Actor
	lastMark    service.MarkAttendanceRequest
	lastFilter  models.AttendanceFilter
	lastRange   [2]*string
	statsHit    bool
	lastFormat  string
	deleteErr   error
	lastDeleted string
}

func (f *fakeAttendanceSrv) Mark(ctx context.Context, actor *models.Actor, req service.MarkAttendanceRequest) (*models.Attendance, error) {
	f.lastActor = actor
	f.lastMark = req
	if f.markErr != nil {
		return nil, f.markErr
	}
	return &models.Attendance{ID: "att-1", StudentID: req.StudentID, Status: models.AttendanceStatus(req.Status)}, nil
}

func (f *fakeAttendanceSrv) BulkMark(ctx context.Context, actor *models.Actor, req service.BulkAttendanceRequest) (*service.BulkResult, error) {
	return &service.BulkResult{Message: "Attendance marked for 2 students", Created: 2, Skipped: len(req.Records) - 2}, nil
}

func (f *fakeAttendanceSrv) ByDate(ctx context.Context, rawDate string, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	f.lastFilter = filter
	return []models.AttendanceRecord{}, nil
}

func (f *fakeAttendanceSrv) ByStudent(ctx context.Context, actor *models.Actor, studentID string, startDate, endDate *string) ([]models.Attendance, error) {
	f.lastRange = [2]*string{startDate, endDate}
	return []models.Attendance{}, nil
}

func (f *fakeAttendanceSrv) Stats(ctx context.Context, rawDate string, filter models.AttendanceFilter) (*models.AttendanceStats, bool, error) {
	f.lastFilter = filter
	return &models.AttendanceStats{Date: rawDate, TotalStudents: 10, Present: 7, AttendancePercentage: 70}, f.statsHit, nil
}

func (f *fakeAttendanceSrv) Summary(ctx context.Context, req service.AttendanceSummaryRequest) ([]models.StudentAttendanceSummary, bool, error) {
	return []models.StudentAttendanceSummary{}, false, nil
}

func (f *fakeAttendanceSrv) ExportSummary(ctx context.Context, req service.AttendanceSummaryRequest, rawFormat string) (*export.Document, error) {
	f.lastFormat = rawFormat
	if rawFormat == "xml" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &export.Document{Filename: "attendance-summary.csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

func (f *fakeAttendanceSrv) Update(ctx context.Context, id string, req service.UpdateAttendanceRequest) (*models.Attendance, error) {
	return &models.Attendance{ID: id}, nil
}

func (f *fakeAttendanceSrv) Delete(ctx context.Context, id string) error {
	f.lastDeleted = id
	return f.deleteErr
}

func newAttendanceRouter(srv *fakeAttendanceSrv, actor *models.Actor) *gin.Engine {
	h := NewAttendanceHandler(srv)
	router := newTestRouter(actor)
	router.POST("/attendance", h.Mark)
	router.POST("/attendance/bulk", h.BulkMark)
	router.GET("/attendance/date/:date", h.ByDate)
	router.GET("/attendance/student/:id", h.ByStudent)
	router.GET("/attendance/stats/:date", h.Stats)
	router.POST("/attendance/summary", h.Summary)
	router.POST("/attendance/summary/export", h.ExportSummary)
	router.PUT("/attendance/:id", h.Update)
	router.DELETE("/attendance/:id", h.Delete)
	return router
}

func TestAttendanceHandlerMark(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	router := newTestRouter(testTeacher)
	h := NewAttendanceHandler(srv)
	router.POST("/attendance", h.Mark)

	rec, env := perform(t, router, http.MethodPost, "/attendance", map[string]interface{}{
		"student_id": "s-1", "date": "2024-03-04", "status": "present",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var att models.Attendance
	require.NoError(t, json.Unmarshal(env.Data, &att))
	assert.Equal(t, "att-1", att.ID)
	assert.Equal(t, "t-1", srv.lastActor.TeacherID)

	srv.markErr = appErrors.Clone(appErrors.ErrDuplicate, "Attendance already marked for this date and period")
	rec, env = perform(t, router, http.MethodPost, "/attendance", map[string]interface{}{
		"student_id": "s-1", "date": "2024-03-04", "status": "present",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Attendance already marked for this date and period", env.Error.Message)

	rec, _ = perform(t, router, http.MethodPost, "/attendance", "{not json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAttendanceHandlerStatsSetsCacheMeta(t *testing.T) {
	srv := &fakeAttendanceSrv{statsHit: true}
	router := newTestRouter(testAdmin)
	h := NewAttendanceHandler(srv)
	router.GET("/attendance/stats/:date", h.Stats)

	rec, env := perform(t, router, http.MethodGet, "/attendance/stats/2024-03-04?class_id=c-1&section_id=sec-a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Equal(t, models.AttendanceFilter{ClassID: "c-1", SectionID: "sec-a"}, srv.lastFilter)
}

func TestAttendanceHandlerRoutes(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	router := newAttendanceRouter(srv, testAdmin)

	rec, env := perform(t, router, http.MethodPost, "/attendance/bulk", map[string]interface{}{
		"date": "2024-03-04",
		"attendance_records": []map[string]string{
			{"student_id": "s-1", "status": "present"},
			{"student_id": "s-2", "status": "absent"},
			{"student_id": "s-3", "status": "late"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var result service.BulkResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)

	rec, _ = perform(t, router, http.MethodGet, "/attendance/student/s-1?start_date=2024-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastRange[0])
	assert.Equal(t, "2024-03-01", *srv.lastRange[0])
	assert.Nil(t, srv.lastRange[1])

	rec, _ = perform(t, router, http.MethodDelete, "/attendance/att-9", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "att-9", srv.lastDeleted)

	srv.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
	rec, _ = perform(t, router, http.MethodDelete, "/attendance/att-9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAttendanceHandlerExport(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	router := newAttendanceRouter(srv, testAdmin)
	body := map[string]string{"start_date": "2024-03-01", "end_date": "2024-03-31"}

	rec, _ := perform(t, router, http.MethodPost, "/attendance/summary/export?format=csv", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance-summary.csv")
	assert.Equal(t, "csv", srv.lastFormat)

	rec, _ = perform(t, router, http.MethodPost, "/attendance/summary/export?format=xml", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
