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

// ParentRepository reads parent profiles and their student links.
type ParentRepository struct {
	db *sqlx.DB
}

// NewParentRepository constructs a ParentRepository.
func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

// FindByUserID returns the parent profile of a user account.
func (r *ParentRepository) FindByUserID(ctx context.Context, userID string) (*models.Parent, error) {
	const query = `SELECT id, user_id, occupation, created_at FROM parents WHERE user_id = $1`
	var parent models.Parent
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &parent, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find parent by user: %w", translate(err))
	}
	return &parent, nil
}

// IsLinked reports whether the parent is linked to the student.
func (r *ParentRepository) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM parent_students WHERE parent_id = $1 AND student_id = $2)`
	var linked bool
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &linked, query, parentID, studentID); err != nil {
		return existsResult(false, fmt.Errorf("check parent link: %w", translate(err)))
	}
	return linked, nil
}
