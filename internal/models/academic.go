package models

import "time"

// AcademicYear groups classes for a school year.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Year      string    `db:"year" json:"year"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsCurrent bool      `db:"is_current" json:"is_current"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Class is a grade level within an academic year.
type Class struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Level          int       `db:"level" json:"level"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	ClassTeacherID *string   `db:"class_teacher_id" json:"class_teacher_id,omitempty"`
	MaxStudents    int       `db:"max_students" json:"max_students"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Section divides a class.
type Section struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ClassID     string    `db:"class_id" json:"class_id"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Subject is taught within a class.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Description *string   `db:"description" json:"description,omitempty"`
	Credits     int       `db:"credits" json:"credits"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SubjectTeacher assigns a teacher to a subject, optionally per section.
type SubjectTeacher struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SectionID *string   `db:"section_id" json:"section_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassOverview is a class with its section and student counts.
type ClassOverview struct {
	Class
	SectionCount int `db:"section_count" json:"section_count"`
	StudentCount int `db:"student_count" json:"student_count"`
}
