package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent   AttendanceStatus = "present"
	AttendanceStatusAbsent    AttendanceStatus = "absent"
	AttendanceStatusLate      AttendanceStatus = "late"
	AttendanceStatusHalfDay   AttendanceStatus = "half_day"
	AttendanceStatusSickLeave AttendanceStatus = "sick_leave"
	AttendanceStatusExcused   AttendanceStatus = "excused"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate,
		AttendanceStatusHalfDay, AttendanceStatusSickLeave, AttendanceStatusExcused:
		return true
	default:
		return false
	}
}

// Attendance is one attendance mark for a student on a date, optionally per period.
type Attendance struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Date         time.Time        `db:"date" json:"date"`
	Status       AttendanceStatus `db:"status" json:"status"`
	CheckInTime  *time.Time       `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckOutTime *time.Time       `db:"check_out_time" json:"check_out_time,omitempty"`
	Remarks      *string          `db:"remarks" json:"remarks,omitempty"`
	MarkedBy     *string          `db:"marked_by" json:"marked_by,omitempty"`
	MarkedAt     time.Time        `db:"marked_at" json:"marked_at"`
	PeriodNumber *int             `db:"period_number" json:"period_number,omitempty"`
	SubjectID    *string          `db:"subject_id" json:"subject_id,omitempty"`
}

// AttendanceRecord is an attendance row with student identity attached.
type AttendanceRecord struct {
	Attendance
	StudentName     string  `db:"student_name" json:"student_name"`
	AdmissionNumber string  `db:"admission_number" json:"admission_number"`
	ClassID         *string `db:"class_id" json:"class_id,omitempty"`
	SectionID       *string `db:"section_id" json:"section_id,omitempty"`
}

// AttendanceFilter scopes date and roster queries.
type AttendanceFilter struct {
	ClassID   string
	SectionID string
}

// AttendanceStatusCount is one group of a per-status tally.
type AttendanceStatusCount struct {
	Status AttendanceStatus `db:"status"`
	Count  int              `db:"count"`
}

// AttendanceStats tallies a date's attendance by status.
type AttendanceStats struct {
	Date                 string  `json:"date"`
	TotalStudents        int     `json:"total_students"`
	Present              int     `json:"present"`
	Absent               int     `json:"absent"`
	Late                 int     `json:"late"`
	SickLeave            int     `json:"sick_leave"`
	Excused              int     `json:"excused"`
	HalfDay              int     `json:"half_day"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// AttendanceSummaryRow is the raw per-student tally over a date range.
type AttendanceSummaryRow struct {
	StudentID       string `db:"student_id"`
	AdmissionNumber string `db:"admission_number"`
	FirstName       string `db:"first_name"`
	LastName        string `db:"last_name"`
	TotalDays       int    `db:"total_days"`
	PresentDays     int    `db:"present_days"`
	AbsentDays      int    `db:"absent_days"`
	LateDays        int    `db:"late_days"`
}

// StudentAttendanceSummary is the per-student summary over a date range.
type StudentAttendanceSummary struct {
	StudentID            string  `json:"student_id"`
	StudentName          string  `json:"student_name"`
	AdmissionNumber      string  `json:"admission_number"`
	TotalDays            int     `json:"total_days"`
	PresentDays          int     `json:"present_days"`
	AbsentDays           int     `json:"absent_days"`
	LateDays             int     `json:"late_days"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// AttendancePatch carries the supplied fields of a partial update.
type AttendancePatch struct {
	Status       *AttendanceStatus
	Remarks      *string
	CheckInTime  *time.Time
	CheckOutTime *time.Time
}

// Empty reports whether no field was supplied.
func (p AttendancePatch) Empty() bool {
	return p.Status == nil && p.Remarks == nil && p.CheckInTime == nil && p.CheckOutTime == nil
}
