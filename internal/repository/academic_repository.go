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

// AcademicRepository reads the class, section and subject structure.
type AcademicRepository struct {
	db *sqlx.DB
}

// NewAcademicRepository constructs an AcademicRepository.
func NewAcademicRepository(db *sqlx.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

// ListClasses returns every class with its section and active student counts.
func (r *AcademicRepository) ListClasses(ctx context.Context) ([]models.ClassOverview, error) {
	const query = `SELECT c.id, c.name, c.level, c.academic_year_id, c.class_teacher_id, c.max_students, c.created_at,
        (SELECT COUNT(*) FROM sections sec WHERE sec.class_id = c.id) AS section_count,
        (SELECT COUNT(*) FROM students s WHERE s.class_id = c.id AND s.status = 'active') AS student_count
        FROM classes c
        ORDER BY c.level ASC, c.name ASC`
	var classes []models.ClassOverview
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &classes, query); err != nil {
		return nil, fmt.Errorf("list classes: %w", translate(err))
	}
	return classes, nil
}

// FindClass returns a class.
func (r *AcademicRepository) FindClass(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, level, academic_year_id, class_teacher_id, max_students, created_at FROM classes WHERE id = $1`
	var class models.Class
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", translate(err))
	}
	return &class, nil
}

// FindSection returns a section.
func (r *AcademicRepository) FindSection(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, name, class_id, max_students, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &section, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find section: %w", translate(err))
	}
	return &section, nil
}

// ListSections returns the sections of a class.
func (r *AcademicRepository) ListSections(ctx context.Context, classID string) ([]models.Section, error) {
	const query = `SELECT id, name, class_id, max_students, created_at FROM sections WHERE class_id = $1 ORDER BY name ASC`
	var sections []models.Section
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &sections, query, classID); err != nil {
		return nil, fmt.Errorf("list sections: %w", translate(err))
	}
	return sections, nil
}

// ListSubjects returns the subjects taught in a class.
func (r *AcademicRepository) ListSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	const query = `SELECT id, name, code, class_id, description, credits, created_at FROM subjects WHERE class_id = $1 ORDER BY name ASC`
	var subjects []models.Subject
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", translate(err))
	}
	return subjects, nil
}

// SubjectExists reports whether a subject id resolves.
func (r *AcademicRepository) SubjectExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, database.Executor(ctx, r.db), &exists, `SELECT EXISTS(SELECT 1 FROM subjects WHERE id = $1)`, id); err != nil {
		return existsResult(false, fmt.Errorf("check subject: %w", translate(err)))
	}
	return exists, nil
}
