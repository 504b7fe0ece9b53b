package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
)

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, date, (COALESCE(period_number, -1))) DO NOTHING RETURNING id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a1"))

	att := &models.Attendance{StudentID: "s1", Date: date, Status: models.AttendanceStatusPresent}
	inserted, err := repo.Insert(context.Background(), att)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEmpty(t, att.ID)
	assert.False(t, att.MarkedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery("INSERT INTO attendance").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.Insert(context.Background(), &models.Attendance{StudentID: "s1", Date: time.Now(), Status: models.AttendanceStatusAbsent})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStatusCountsScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("present", 7).
		AddRow("absent", 2).
		AddRow("late", 1)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.date = $1 AND s.class_id = $2 AND s.section_id = $3 GROUP BY a.status")).
		WithArgs(date, "c1", "sec1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), date, models.AttendanceFilter{ClassID: "c1", SectionID: "sec1"})
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, models.AttendanceStatusPresent, counts[0].Status)
	assert.Equal(t, 7, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"student_id", "admission_number", "first_name", "last_name", "total_days", "present_days", "absent_days", "late_days"}).
		AddRow("s1", "ADM-001", "Asha", "Rao", 20, 18, 1, 1).
		AddRow("s2", "ADM-002", "Ben", "Das", 0, 0, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN attendance a ON a.student_id = s.id AND a.date BETWEEN $1 AND $2 WHERE s.class_id = $3 GROUP BY")).
		WithArgs(from, to, "c1").
		WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), from, to, models.AttendanceFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, 18, summary[0].PresentDays)
	assert.Equal(t, 0, summary[1].TotalDays)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummaryIncludesEveryStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`a\.date BETWEEN \$1 AND \$2\s+GROUP BY s\.id`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "admission_number", "first_name", "last_name", "total_days", "present_days", "absent_days", "late_days"}).
			AddRow("s9", "ADM-009", "Gita", "Nair", 4, 4, 0, 0))

	summary, err := repo.Summary(context.Background(), from, to, models.AttendanceFilter{})
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "s9", summary[0].StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByStudentRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE a.student_id = $1 AND a.date >= $2 ORDER BY a.date DESC")).
		WithArgs("s1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "date", "status", "check_in_time", "check_out_time", "remarks", "marked_by", "marked_at", "period_number", "subject_id"}).
			AddRow("a2", "s1", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), "late", nil, nil, nil, nil, time.Now(), nil, nil).
			AddRow("a1", "s1", time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), "present", nil, nil, nil, nil, time.Now(), nil, nil))

	marks, err := repo.ListByStudent(context.Background(), "s1", &from, nil)
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, "a2", marks[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryUpdateRemarksOnly(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	remarks := "doctor's note"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance SET remarks = $1 WHERE id = $2")).
		WithArgs(remarks, "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "a1", models.AttendancePatch{Remarks: &remarks}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance WHERE id = $1")).
		WithArgs("nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
