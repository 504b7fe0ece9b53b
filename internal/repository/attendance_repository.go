package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const attendanceColumns = `a.id, a.student_id, a.date, a.status, a.check_in_time, a.check_out_time, a.remarks,
        a.marked_by, a.marked_at, a.period_number, a.subject_id`

// AttendanceRepository persists attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert stores the mark unless one already exists for the same student, date
// and period. inserted is false when the unique key absorbed the write.
func (r *AttendanceRepository) Insert(ctx context.Context, att *models.Attendance) (bool, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.MarkedAt.IsZero() {
		att.MarkedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, student_id, date, status, check_in_time, check_out_time, remarks,
        marked_by, marked_at, period_number, subject_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (student_id, date, (COALESCE(period_number, -1))) DO NOTHING
        RETURNING id`
	var id string
	err := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		att.ID, att.StudentID, att.Date, att.Status, att.CheckInTime, att.CheckOutTime, att.Remarks,
		att.MarkedBy, att.MarkedAt, att.PeriodNumber, att.SubjectID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert attendance: %w", translate(err))
	}
	return true, nil
}

// FindByID returns one attendance mark.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendance a WHERE a.id = $1`
	var att models.Attendance
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &att, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", translate(err))
	}
	return &att, nil
}

// ListByDate returns the marks of a date with student identity, scoped to a class or section.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	conditions, args := scopeConditions([]string{"a.date = $1"}, []interface{}{date}, filter)
	query := `SELECT ` + attendanceColumns + `,
        CONCAT_WS(' ', u.first_name, u.last_name) AS student_name, s.admission_number, s.class_id, s.section_id
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN users u ON u.id = s.user_id
        WHERE ` + strings.Join(conditions, " AND ") + `
        ORDER BY s.admission_number ASC, a.period_number ASC NULLS FIRST`
	var records []models.AttendanceRecord
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &records, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", translate(err))
	}
	return records, nil
}

// ListByStudent returns a student's marks newest first, optionally bounded by date.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string, from, to *time.Time) ([]models.Attendance, error) {
	conditions := []string{"a.student_id = $1"}
	args := []interface{}{studentID}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)))
	}
	query := `SELECT ` + attendanceColumns + ` FROM attendance a WHERE ` + strings.Join(conditions, " AND ") +
		` ORDER BY a.date DESC, a.period_number ASC NULLS FIRST`
	var marks []models.Attendance
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &marks, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance by student: %w", translate(err))
	}
	return marks, nil
}

// StatusCounts tallies the marks of a date per status.
func (r *AttendanceRepository) StatusCounts(ctx context.Context, date time.Time, filter models.AttendanceFilter) ([]models.AttendanceStatusCount, error) {
	conditions, args := scopeConditions([]string{"a.date = $1"}, []interface{}{date}, filter)
	query := `SELECT a.status, COUNT(*) AS count
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        WHERE ` + strings.Join(conditions, " AND ") + `
        GROUP BY a.status`
	var counts []models.AttendanceStatusCount
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count attendance by status: %w", translate(err))
	}
	return counts, nil
}

// Summary tallies marks per active student in scope over an inclusive date range.
// Students without marks appear with zero counts.
func (r *AttendanceRepository) Summary(ctx context.Context, from, to time.Time, filter models.AttendanceFilter) ([]models.AttendanceSummaryRow, error) {
	conditions, args := scopeConditions(nil, []interface{}{from, to}, filter)
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := `SELECT s.id AS student_id, s.admission_number, u.first_name, u.last_name,
        COUNT(a.id) AS total_days,
        COUNT(a.id) FILTER (WHERE a.status = 'present') AS present_days,
        COUNT(a.id) FILTER (WHERE a.status = 'absent') AS absent_days,
        COUNT(a.id) FILTER (WHERE a.status = 'late') AS late_days
        FROM students s
        JOIN users u ON u.id = s.user_id
        LEFT JOIN attendance a ON a.student_id = s.id AND a.date BETWEEN $1 AND $2
        ` + where + `
        GROUP BY s.id, s.admission_number, u.first_name, u.last_name
        ORDER BY s.admission_number ASC`
	var rows []models.AttendanceSummaryRow
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("summarise attendance: %w", translate(err))
	}
	return rows, nil
}

// TotalsForStudent counts all marks of a student and how many were present.
func (r *AttendanceRepository) TotalsForStudent(ctx context.Context, studentID string) (models.AttendanceTotals, error) {
	const query = `SELECT COUNT(*) AS total_days, COUNT(*) FILTER (WHERE status = 'present') AS present_days
        FROM attendance WHERE student_id = $1`
	var totals models.AttendanceTotals
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &totals, query, studentID); err != nil {
		return totals, fmt.Errorf("attendance totals: %w", translate(err))
	}
	return totals, nil
}

// Update writes the supplied fields. It returns sql.ErrNoRows when the id does not resolve.
func (r *AttendanceRepository) Update(ctx context.Context, id string, patch models.AttendancePatch) error {
	set := newSetBuilder()
	setIf(set, "status", patch.Status)
	setIf(set, "remarks", patch.Remarks)
	setIf(set, "check_in_time", patch.CheckInTime)
	setIf(set, "check_out_time", patch.CheckOutTime)
	if set.empty() {
		_, err := r.FindByID(ctx, id)
		return err
	}

	query, args := set.build("attendance", id)
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update attendance: %w", translate(err))
	}
	return requireAffected(res)
}

// Delete removes an attendance mark.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", translate(err))
	}
	return requireAffected(res)
}

// scopeConditions appends class and section restrictions on the students alias s.
func scopeConditions(conditions []string, args []interface{}, filter models.AttendanceFilter) ([]string, []interface{}) {
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		conditions = append(conditions, fmt.Sprintf("s.section_id = $%d", len(args)))
	}
	return conditions, args
}
