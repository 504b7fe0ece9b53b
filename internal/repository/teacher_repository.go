package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

const teacherColumns = `id, user_id, employee_id, qualification, specialization, joining_date, created_at, updated_at`

// TeacherRepository reads teacher profiles.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByUserID returns the teacher profile of a user account.
func (r *TeacherRepository) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	query := `SELECT ` + teacherColumns + ` FROM teachers WHERE user_id = $1`
	var teacher models.Teacher
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &teacher, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find teacher by user: %w", translate(err))
	}
	return &teacher, nil
}

// Exists reports whether a teacher id resolves.
func (r *TeacherRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM teachers WHERE id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &exists, query, id); err != nil {
		return existsResult(false, fmt.Errorf("check teacher: %w", translate(err)))
	}
	return exists, nil
}
