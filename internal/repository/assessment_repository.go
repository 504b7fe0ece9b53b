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

const assessmentColumns = `id, title, description, subject_id, teacher_id, assessment_type, total_marks, passing_marks,
        weightage, date, due_date, duration_minutes, instructions, is_published, created_at, updated_at`

// AssessmentRepository persists assessments.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository constructs an AssessmentRepository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts an assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assessment.CreatedAt = now
	assessment.UpdatedAt = now
	const query = `INSERT INTO assessments (id, title, description, subject_id, teacher_id, assessment_type, total_marks,
        passing_marks, weightage, date, due_date, duration_minutes, instructions, is_published, created_at, updated_at)
        VALUES (:id, :title, :description, :subject_id, :teacher_id, :assessment_type, :total_marks,
        :passing_marks, :weightage, :date, :due_date, :duration_minutes, :instructions, :is_published, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, assessment); err != nil {
		return fmt.Errorf("create assessment: %w", translate(err))
	}
	return nil
}

// FindByID returns an assessment.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &assessment, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assessment: %w", translate(err))
	}
	return &assessment, nil
}

// List returns assessments matching the filter, newest first, with the total match count.
func (r *AssessmentRepository) List(ctx context.Context, filter models.AssessmentFilter) ([]models.Assessment, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.AssessmentType != "" {
		args = append(args, filter.AssessmentType)
		conditions = append(conditions, fmt.Sprintf("assessment_type = $%d", len(args)))
	}
	if filter.IsPublished != nil {
		args = append(args, *filter.IsPublished)
		conditions = append(conditions, fmt.Sprintf("is_published = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	exec := database.Executor(ctx, r.db)
	query := fmt.Sprintf(`SELECT %s FROM assessments WHERE %s ORDER BY date DESC, created_at DESC LIMIT %d OFFSET %d`,
		assessmentColumns, where, filter.Limit, filter.Skip)
	var assessments []models.Assessment
	if err := sqlx.SelectContext(ctx, exec, &assessments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assessments: %w", translate(err))
	}

	var total int
	if err := sqlx.GetContext(ctx, exec, &total, `SELECT COUNT(*) FROM assessments WHERE `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assessments: %w", translate(err))
	}
	return assessments, total, nil
}

// Update writes the supplied fields. It returns sql.ErrNoRows when the id does not resolve.
func (r *AssessmentRepository) Update(ctx context.Context, id string, patch models.AssessmentPatch) error {
	set := newSetBuilder()
	setIf(set, "title", patch.Title)
	setIf(set, "description", patch.Description)
	setIf(set, "assessment_type", patch.AssessmentType)
	setIf(set, "total_marks", patch.TotalMarks)
	setIf(set, "passing_marks", patch.PassingMarks)
	setIf(set, "weightage", patch.Weightage)
	setIf(set, "date", patch.Date)
	setIf(set, "due_date", patch.DueDate)
	setIf(set, "duration_minutes", patch.DurationMinutes)
	setIf(set, "instructions", patch.Instructions)
	setIf(set, "is_published", patch.IsPublished)
	set.add("updated_at", time.Now().UTC())

	query, args := set.build("assessments", id)
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update assessment: %w", translate(err))
	}
	return requireAffected(res)
}

// Delete removes an assessment; its grades cascade.
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	res, err := database.Executor(ctx, r.db).ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", translate(err))
	}
	return requireAffected(res)
}
