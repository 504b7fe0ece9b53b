package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/repository"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type attendanceRepoStub struct {
	marks        map[string]*models.Attendance
	counts       []models.AttendanceStatusCount
	summaryRows  []models.AttendanceSummaryRow
	countCalls   int
	summaryCalls int
	insertErr    error
}

func newAttendanceRepoStub() *attendanceRepoStub {
	return &attendanceRepoStub{marks: map[string]*models.Attendance{}}
}

func periodKey(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func (r *attendanceRepoStub) Insert(ctx context.Context, att *models.Attendance) (bool, error) {
	if r.insertErr != nil {
		return false, r.insertErr
	}
	for _, existing := range r.marks {
		if existing.StudentID == att.StudentID && existing.Date.Equal(att.Date) && periodKey(existing.PeriodNumber) == periodKey(att.PeriodNumber) {
			return false, nil
		}
	}
	if att.ID == "" {
		att.ID = fmt.Sprintf("a%d", len(r.marks)+1)
	}
	copied := *att
	r.marks[att.ID] = &copied
	return true, nil
}

func (r *attendanceRepoStub) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	if att, ok := r.marks[id]; ok {
		copied := *att
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *attendanceRepoStub) ListByDate(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	var out []models.AttendanceRecord
	for _, att := range r.marks {
		if att.Date.Equal(date) {
			out = append(out, models.AttendanceRecord{Attendance: *att})
		}
	}
	return out, nil
}

func (r *attendanceRepoStub) ListByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, att := range r.marks {
		if att.StudentID == studentID {
			out = append(out, *att)
		}
	}
	return out, nil
}

func (r *attendanceRepoStub) StatusCounts(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceStatusCount, error) {
	r.countCalls++
	return r.counts, nil
}

func (r *attendanceRepoStub) Summary(ctx context.Context, from, to time.Time, filter models.AttendanceFilter) ([]models.AttendanceSummaryRow, error) {
	r.summaryCalls++
	return r.summaryRows, nil
}

func (r *attendanceRepoStub) Update(ctx context.Context, id string, patch models.AttendancePatch) error {
	att, ok := r.marks[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Status != nil {
		att.Status = *patch.Status
	}
	if patch.Remarks != nil {
		att.Remarks = patch.Remarks
	}
	if patch.CheckInTime != nil {
		att.CheckInTime = patch.CheckInTime
	}
	if patch.CheckOutTime != nil {
		att.CheckOutTime = patch.CheckOutTime
	}
	return nil
}

func (r *attendanceRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.marks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.marks, id)
	return nil
}

type attendanceFixture struct {
	svc   *AttendanceService
	repo  *attendanceRepoStub
	cache *memoryCache
	tx    *txStub
}

func newAttendanceFixture(students ...string) attendanceFixture {
	repo := newAttendanceRepoStub()
	cache := newMemoryCache()
	tx := &txStub{}
	cacheSvc := NewCacheService(cache, nil, time.Minute, zap.NewNop(), true)
	links := parentLinkStub{"p-1": {"s-1"}}
	svc := NewAttendanceService(repo, activeStudents(students...), links, tx, cacheSvc, NewMetricsService(), nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 8, 5, 0, 0, time.UTC) }
	return attendanceFixture{svc: svc, repo: repo, cache: cache, tx: tx}
}

func TestAttendanceMarkDefaultsAndDuplicate(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	ctx := context.Background()

	att, err := fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "present"})
	require.NoError(t, err)
	require.NotNil(t, att.CheckInTime)
	assert.Equal(t, 8, att.CheckInTime.Hour())
	require.NotNil(t, att.MarkedBy)
	assert.Equal(t, "t-1", *att.MarkedBy)
	assert.Contains(t, fx.cache.deletes, AttendanceCachePattern)

	_, err = fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "absent"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, msgAttendanceDuplicate, appErr.Message)

	_, err = fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "present", PeriodNumber: intPtr(2)})
	assert.NoError(t, err, "a different period is a separate mark")
}

func TestAttendanceMarkRejectsInvalidInput(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	ctx := context.Background()

	_, err := fx.svc.Mark(ctx, adminActor(), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "on_holiday"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = fx.svc.Mark(ctx, adminActor(), MarkAttendanceRequest{StudentID: "s-1", Date: "04/03/2024", Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = fx.svc.Mark(ctx, adminActor(), MarkAttendanceRequest{StudentID: "ghost", Date: "2024-03-04", Status: "present"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceMarkUnknownSubjectIsNotFound(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	fx.repo.insertErr = fmt.Errorf("insert attendance: %w", &repository.ReferenceError{Constraint: "attendance_subject_id_fkey"})

	_, err := fx.svc.Mark(context.Background(), adminActor(), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "present", SubjectID: strPtr("sub-404")})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "referenced record not found", appErr.Message)
}

func TestAttendanceMarkByAdminLeavesMarkedByEmpty(t *testing.T) {
	fx := newAttendanceFixture("s-1")

	att, err := fx.svc.Mark(context.Background(), adminActor(), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "late"})
	require.NoError(t, err)
	assert.Nil(t, att.MarkedBy)
}

func TestAttendanceBulkSkipsExisting(t *testing.T) {
	fx := newAttendanceFixture("s-1", "s-2", "s-3")
	ctx := context.Background()

	_, err := fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-2", Date: "2024-03-04", Status: "present"})
	require.NoError(t, err)

	res, err := fx.svc.BulkMark(ctx, teacherActor("t-1"), BulkAttendanceRequest{
		Date: "2024-03-04",
		Records: []BulkAttendanceItem{
			{StudentID: "s-1", Status: "present"},
			{StudentID: "s-2", Status: "absent"},
			{StudentID: "s-3", Status: "late"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "Attendance marked for 2 students", res.Message)
	assert.Equal(t, 1, fx.tx.committed)
	assert.Len(t, fx.repo.marks, 3)
}

func TestAttendanceBulkUnknownStudentAborts(t *testing.T) {
	fx := newAttendanceFixture("s-1")

	_, err := fx.svc.BulkMark(context.Background(), teacherActor("t-1"), BulkAttendanceRequest{
		Date:    "2024-03-04",
		Records: []BulkAttendanceItem{{StudentID: "s-1", Status: "present"}, {StudentID: "ghost", Status: "present"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 0, fx.tx.committed)
}

func TestAttendanceStatsPercentageAndCache(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.counts = []models.AttendanceStatusCount{
		{Status: models.AttendanceStatusPresent, Count: 7},
		{Status: models.AttendanceStatusAbsent, Count: 2},
		{Status: models.AttendanceStatusLate, Count: 1},
	}
	ctx := context.Background()

	stats, hit, err := fx.svc.Stats(ctx, "2024-03-04", models.AttendanceFilter{ClassID: "c-1"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 10, stats.TotalStudents)
	assert.Equal(t, 7, stats.Present)
	assert.Equal(t, 2, stats.Absent)
	assert.Equal(t, 1, stats.Late)
	assert.Equal(t, 70.0, stats.AttendancePercentage)

	again, hit, err := fx.svc.Stats(ctx, "2024-03-04", models.AttendanceFilter{ClassID: "c-1"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, stats, again)
	assert.Equal(t, 1, fx.repo.countCalls)
}

func TestAttendanceStatsEmptyDay(t *testing.T) {
	fx := newAttendanceFixture()

	stats, _, err := fx.svc.Stats(context.Background(), "2024-03-09", models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalStudents)
	assert.Equal(t, 0.0, stats.AttendancePercentage)
}

func TestAttendanceWriteInvalidatesStats(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	ctx := context.Background()

	_, _, err := fx.svc.Stats(ctx, "2024-03-04", models.AttendanceFilter{})
	require.NoError(t, err)
	_, err = fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "present"})
	require.NoError(t, err)
	_, hit, err := fx.svc.Stats(ctx, "2024-03-04", models.AttendanceFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, fx.repo.countCalls)
}

func TestAttendanceSummary(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.summaryRows = []models.AttendanceSummaryRow{
		{StudentID: "s-1", AdmissionNumber: "ADM-001", FirstName: "Asha", LastName: "Rao", TotalDays: 3, PresentDays: 2, AbsentDays: 1},
		{StudentID: "s-2", AdmissionNumber: "ADM-002", FirstName: "Ben", LastName: "Das"},
	}

	summary, _, err := fx.svc.Summary(context.Background(), AttendanceSummaryRequest{StartDate: "2024-03-01", EndDate: "2024-03-31"})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Asha Rao", summary[0].StudentName)
	assert.Equal(t, 66.67, summary[0].AttendancePercentage)
	assert.Equal(t, 0.0, summary[1].AttendancePercentage)
}

func TestAttendanceSummaryRejectsInvertedRange(t *testing.T) {
	fx := newAttendanceFixture()

	_, _, err := fx.svc.Summary(context.Background(), AttendanceSummaryRequest{StartDate: "2024-03-31", EndDate: "2024-03-01"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, 0, fx.repo.summaryCalls)
}

func TestAttendanceExportSummary(t *testing.T) {
	fx := newAttendanceFixture()
	fx.repo.summaryRows = []models.AttendanceSummaryRow{
		{StudentID: "s-1", AdmissionNumber: "ADM-001", FirstName: "Asha", LastName: "Rao", TotalDays: 4, PresentDays: 3, LateDays: 1},
	}
	req := AttendanceSummaryRequest{StartDate: "2024-03-01", EndDate: "2024-03-31"}

	doc, err := fx.svc.ExportSummary(context.Background(), req, "csv")
	require.NoError(t, err)
	assert.Equal(t, "attendance-summary-2024-03-01-2024-03-31.csv", doc.Filename)
	assert.Contains(t, string(doc.Body), "ADM-001")
	assert.Contains(t, string(doc.Body), "75.00")

	_, err = fx.svc.ExportSummary(context.Background(), req, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceByStudentAccess(t *testing.T) {
	fx := newAttendanceFixture("s-1", "s-2")
	ctx := context.Background()

	_, err := fx.svc.ByStudent(ctx, &models.Actor{Role: models.RoleStudent, StudentID: "s-2"}, "s-1", nil, nil)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = fx.svc.ByStudent(ctx, &models.Actor{Role: models.RoleStudent, StudentID: "s-1"}, "s-1", nil, nil)
	assert.NoError(t, err)

	_, err = fx.svc.ByStudent(ctx, &models.Actor{Role: models.RoleParent, ParentID: "p-1"}, "s-1", nil, nil)
	assert.NoError(t, err)

	_, err = fx.svc.ByStudent(ctx, &models.Actor{Role: models.RoleParent, ParentID: "p-1"}, "s-2", nil, nil)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = fx.svc.ByStudent(ctx, teacherActor("t-1"), "s-1", strPtr("bad"), nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAttendanceUpdateRemarksOnly(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	ctx := context.Background()

	att, err := fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "absent"})
	require.NoError(t, err)

	updated, err := fx.svc.Update(ctx, att.ID, UpdateAttendanceRequest{Remarks: strPtr("fever")})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusAbsent, updated.Status)
	require.NotNil(t, updated.Remarks)
	assert.Equal(t, "fever", *updated.Remarks)

	_, err = fx.svc.Update(ctx, "missing", UpdateAttendanceRequest{Status: strPtr("present")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAttendanceDelete(t *testing.T) {
	fx := newAttendanceFixture("s-1")
	ctx := context.Background()

	att, err := fx.svc.Mark(ctx, teacherActor("t-1"), MarkAttendanceRequest{StudentID: "s-1", Date: "2024-03-04", Status: "present"})
	require.NoError(t, err)
	require.NoError(t, fx.svc.Delete(ctx, att.ID))
	assert.ErrorIs(t, fx.svc.Delete(ctx, att.ID), appErrors.ErrNotFound)
}
