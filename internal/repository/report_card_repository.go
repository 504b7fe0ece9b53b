package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/database"
)

// ReportCardRepository reads stored report cards.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs a ReportCardRepository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

// ListByStudent returns a student's report cards, latest academic year first.
func (r *ReportCardRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	const query = `SELECT rc.id, rc.student_id, rc.class_id, rc.academic_year_id, rc.term, rc.total_marks, rc.marks_obtained,
        rc.percentage, rc.grade, rc.rank, rc.attendance_percentage, rc.total_days, rc.present_days, rc.conduct_grade,
        rc.teacher_remarks, rc.principal_remarks, rc.is_published, rc.published_date, rc.created_at, rc.updated_at,
        ay.year AS year_label
        FROM report_cards rc
        JOIN academic_years ay ON ay.id = rc.academic_year_id
        WHERE rc.student_id = $1
        ORDER BY ay.start_date DESC, rc.term ASC`
	var cards []models.ReportCard
	if err := sqlx.SelectContext(ctx, database.Executor(ctx, r.db), &cards, query, studentID); err != nil {
		return nil, fmt.Errorf("list report cards: %w", translate(err))
	}
	return cards, nil
}
