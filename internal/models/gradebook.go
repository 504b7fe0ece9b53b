package models

import (
	"math"
	"time"
)

// AssessmentType classifies an assessment.
type AssessmentType string

const (
	AssessmentAssignment   AssessmentType = "assignment"
	AssessmentQuiz         AssessmentType = "quiz"
	AssessmentTest         AssessmentType = "test"
	AssessmentMidTerm      AssessmentType = "mid_term"
	AssessmentFinalExam    AssessmentType = "final_exam"
	AssessmentProject      AssessmentType = "project"
	AssessmentPractical    AssessmentType = "practical"
	AssessmentPresentation AssessmentType = "presentation"
	AssessmentHomework     AssessmentType = "homework"
)

// Valid reports whether the type is known.
func (t AssessmentType) Valid() bool {
	switch t {
	case AssessmentAssignment, AssessmentQuiz, AssessmentTest, AssessmentMidTerm, AssessmentFinalExam,
		AssessmentProject, AssessmentPractical, AssessmentPresentation, AssessmentHomework:
		return true
	default:
		return false
	}
}

// LetterGrade is a discretised grade band.
type LetterGrade string

const (
	GradeAPlus LetterGrade = "A+"
	GradeA     LetterGrade = "A"
	GradeBPlus LetterGrade = "B+"
	GradeB     LetterGrade = "B"
	GradeCPlus LetterGrade = "C+"
	GradeC     LetterGrade = "C"
	GradeD     LetterGrade = "D"
	GradeF     LetterGrade = "F"
)

var gradeBands = []struct {
	min   float64
	grade LetterGrade
}{
	{90, GradeAPlus},
	{80, GradeA},
	{70, GradeBPlus},
	{60, GradeB},
	{50, GradeCPlus},
	{40, GradeC},
	{33, GradeD},
}

// LetterGradeFor maps a percentage to its band; first matching threshold wins.
func LetterGradeFor(percentage float64) LetterGrade {
	for _, band := range gradeBands {
		if percentage >= band.min {
			return band.grade
		}
	}
	return GradeF
}

// ScoreGrade derives percentage and letter grade from marks. Both are nil
// when the student was absent or no marks were recorded.
func ScoreGrade(marks *float64, isAbsent bool, totalMarks float64) (*float64, *LetterGrade) {
	if marks == nil || isAbsent || totalMarks <= 0 {
		return nil, nil
	}
	pct := *marks / totalMarks * 100
	letter := LetterGradeFor(pct)
	return &pct, &letter
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Assessment is a gradable unit of work owned by a teacher.
type Assessment struct {
	ID              string         `db:"id" json:"id"`
	Title           string         `db:"title" json:"title"`
	Description     *string        `db:"description" json:"description,omitempty"`
	SubjectID       string         `db:"subject_id" json:"subject_id"`
	TeacherID       string         `db:"teacher_id" json:"teacher_id"`
	AssessmentType  AssessmentType `db:"assessment_type" json:"assessment_type"`
	TotalMarks      float64        `db:"total_marks" json:"total_marks"`
	PassingMarks    *float64       `db:"passing_marks" json:"passing_marks,omitempty"`
	Weightage       float64        `db:"weightage" json:"weightage"`
	Date            time.Time      `db:"date" json:"date"`
	DueDate         *time.Time     `db:"due_date" json:"due_date,omitempty"`
	DurationMinutes *int           `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Instructions    *string        `db:"instructions" json:"instructions,omitempty"`
	IsPublished     bool           `db:"is_published" json:"is_published"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// AssessmentFilter captures listing criteria.
type AssessmentFilter struct {
	SubjectID      string
	TeacherID      string
	AssessmentType AssessmentType
	IsPublished    *bool
	Skip           int
	Limit          int
}

// AssessmentPatch carries the supplied fields of a partial assessment update.
type AssessmentPatch struct {
	Title           *string
	Description     *string
	AssessmentType  *AssessmentType
	TotalMarks      *float64
	PassingMarks    *float64
	Weightage       *float64
	Date            *time.Time
	DueDate         *time.Time
	DurationMinutes *int
	Instructions    *string
	IsPublished     *bool
}

// Grade is a student's result on an assessment.
type Grade struct {
	ID            string       `db:"id" json:"id"`
	StudentID     string       `db:"student_id" json:"student_id"`
	AssessmentID  string       `db:"assessment_id" json:"assessment_id"`
	SubjectID     string       `db:"subject_id" json:"subject_id"`
	TeacherID     string       `db:"teacher_id" json:"teacher_id"`
	MarksObtained *float64     `db:"marks_obtained" json:"marks_obtained,omitempty"`
	Grade         *LetterGrade `db:"grade" json:"grade,omitempty"`
	Percentage    *float64     `db:"percentage" json:"percentage,omitempty"`
	IsAbsent      bool         `db:"is_absent" json:"is_absent"`
	Remarks       *string      `db:"remarks" json:"remarks,omitempty"`
	Feedback      *string      `db:"feedback" json:"feedback,omitempty"`
	SubmittedOn   *time.Time   `db:"submitted_on" json:"submitted_on,omitempty"`
	GradedOn      time.Time    `db:"graded_on" json:"graded_on"`
}

// Rescore recomputes the derived fields against the assessment total.
func (g *Grade) Rescore(totalMarks float64) {
	g.Percentage, g.Grade = ScoreGrade(g.MarksObtained, g.IsAbsent, totalMarks)
}

// GradeRecord is a grade joined with assessment and student context.
type GradeRecord struct {
	Grade
	AssessmentTitle string         `db:"assessment_title" json:"assessment_title"`
	AssessmentType  AssessmentType `db:"assessment_type" json:"assessment_type"`
	TotalMarks      float64        `db:"total_marks" json:"total_marks"`
	SubjectName     string         `db:"subject_name" json:"subject_name"`
	StudentName     string         `db:"student_name" json:"student_name"`
	AdmissionNumber string         `db:"admission_number" json:"admission_number"`
}

// GradePatch carries the supplied fields of a partial grade update.
type GradePatch struct {
	MarksObtained *float64
	IsAbsent      *bool
	Remarks       *string
	Feedback      *string
}
