package models

import "time"

// ReportCard is a stored term summary for a student.
type ReportCard struct {
	ID                   string     `db:"id" json:"id"`
	StudentID            string     `db:"student_id" json:"student_id"`
	ClassID              string     `db:"class_id" json:"class_id"`
	AcademicYearID       string     `db:"academic_year_id" json:"academic_year_id"`
	Term                 string     `db:"term" json:"term"`
	TotalMarks           *float64   `db:"total_marks" json:"total_marks,omitempty"`
	MarksObtained        *float64   `db:"marks_obtained" json:"marks_obtained,omitempty"`
	Percentage           *float64   `db:"percentage" json:"percentage,omitempty"`
	Grade                *string    `db:"grade" json:"grade,omitempty"`
	Rank                 *int       `db:"rank" json:"rank,omitempty"`
	AttendancePercentage *float64   `db:"attendance_percentage" json:"attendance_percentage,omitempty"`
	TotalDays            *int       `db:"total_days" json:"total_days,omitempty"`
	PresentDays          *int       `db:"present_days" json:"present_days,omitempty"`
	ConductGrade         *string    `db:"conduct_grade" json:"conduct_grade,omitempty"`
	TeacherRemarks       *string    `db:"teacher_remarks" json:"teacher_remarks,omitempty"`
	PrincipalRemarks     *string    `db:"principal_remarks" json:"principal_remarks,omitempty"`
	IsPublished          bool       `db:"is_published" json:"is_published"`
	PublishedDate        *time.Time `db:"published_date" json:"published_date,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
	YearLabel            string     `db:"year_label" json:"year_label"`
}
