package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const gradeColumns = `g.id, g.student_id, g.assessment_id, g.subject_id, g.teacher_id, g.marks_obtained, g.grade,
        g.percentage, g.is_absent, g.remarks, g.feedback, g.submitted_on, g.graded_on`

const gradeRecordQuery = `SELECT ` + gradeColumns + `,
        a.title AS assessment_title, a.assessment_type, a.total_marks, sub.name AS subject_name,
        CONCAT_WS(' ', u.first_name, u.last_name) AS student_name, s.admission_number
        FROM grades g
        JOIN assessments a ON a.id = g.assessment_id
        JOIN subjects sub ON sub.id = g.subject_id
        JOIN students s ON s.id = g.student_id
        JOIN users u ON u.id = s.user_id`

// GradeRepository persists assessment results.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Insert stores the grade unless the student already has one for the
// assessment. inserted is false when the unique key absorbed the write.
func (r *GradeRepository) Insert(ctx context.Context, grade *models.Grade) (bool, error) {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.GradedOn.IsZero() {
		grade.GradedOn = time.Now().UTC()
	}
	const query = `INSERT INTO grades (id, student_id, assessment_id, subject_id, teacher_id, marks_obtained, grade,
        percentage, is_absent, remarks, feedback, submitted_on, graded_on)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (student_id, assessment_id) DO NOTHING
        RETURNING id`
	var id string
	err := database.Executor(ctx, r.db).QueryRowxContext(ctx, query,
		grade.ID, grade.StudentID, grade.AssessmentID, grade.SubjectID, grade.TeacherID, grade.MarksObtained, grade.Grade,
		grade.Percentage, grade.IsAbsent, grade.Remarks, grade.Feedback, grade.SubmittedOn, grade.GradedOn,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert grade: %w", translate(err))
	}
	return true, nil
}

// FindByID returns a grade.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades g WHERE g.id = $1`
	var grade models.Grade
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &grade, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", translate(err))
	}
	return &grade, nil
}

// ListByStudent returns a student's grades, most recently graded first,
// optionally restricted to one subject.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID, subjectID string) ([]models.GradeRecord, error) {
	query := gradeRecordQuery + ` WHERE g.student_id = $1`
	args := []interface{}{studentID}
	if subjectID != "" {
		query += ` AND g.subject_id = $2`
		args = append(args, subjectID)
	}
	query += ` ORDER BY g.graded_on DESC`
	var grades []models.GradeRecord
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades by student: %w", translate(err))
	}
	return grades, nil
}

// ListByAssessment returns every grade of an assessment ordered by admission number.
func (r *GradeRepository) ListByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error) {
	query := gradeRecordQuery + ` WHERE g.assessment_id = $1 ORDER BY s.admission_number ASC`
	var grades []models.GradeRecord
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &grades, query, assessmentID); err != nil {
		return nil, fmt.Errorf("list grades by assessment: %w", translate(err))
	}
	return grades, nil
}

// Save overwrites the mutable fields of a grade, including the derived
// percentage and letter grade.
func (r *GradeRepository) Save(ctx context.Context, grade *models.Grade) error {
	grade.GradedOn = time.Now().UTC()
	const query = `UPDATE grades SET marks_obtained = :marks_obtained, is_absent = :is_absent, remarks = :remarks,
        feedback = :feedback, percentage = :percentage, grade = :grade, graded_on = :graded_on
        WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, grade)
	if err != nil {
		return fmt.Errorf("update grade: %w", translate(err))
	}
	return requireAffected(res)
}

// SaveScore writes only the derived percentage and letter grade.
func (r *GradeRepository) SaveScore(ctx context.Context, grade *models.Grade) error {
	res, err := database.Executor(ctx, r.db).ExecContext(ctx,
		`UPDATE grades SET percentage = $1, grade = $2 WHERE id = $3`, grade.Percentage, grade.Grade, grade.ID)
	if err != nil {
		return fmt.Errorf("rescore grade: %w", translate(err))
	}
	return requireAffected(res)
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", translate(err))
	}
	return requireAffected(res)
}
