package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Gender values accepted for students.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// StudentStatusActive is the default enrolment status.
const StudentStatusActive = "active"

// Student is the student profile of a user.
type Student struct {
	ID                string             `db:"id" json:"id"`
	UserID            string             `db:"user_id" json:"user_id"`
	AdmissionNumber   string             `db:"admission_number" json:"admission_number"`
	RollNumber        *string            `db:"roll_number" json:"roll_number,omitempty"`
	DateOfBirth       time.Time          `db:"date_of_birth" json:"date_of_birth"`
	Gender            string             `db:"gender" json:"gender"`
	BloodGroup        *string            `db:"blood_group" json:"blood_group,omitempty"`
	Nationality       string             `db:"nationality" json:"nationality"`
	Religion          *string            `db:"religion" json:"religion,omitempty"`
	Category          *string            `db:"category" json:"category,omitempty"`
	AddressLine1      *string            `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2      *string            `db:"address_line2" json:"address_line2,omitempty"`
	City              *string            `db:"city" json:"city,omitempty"`
	State             *string            `db:"state" json:"state,omitempty"`
	Pincode           *string            `db:"pincode" json:"pincode,omitempty"`
	Country           string             `db:"country" json:"country"`
	MedicalConditions *string            `db:"medical_conditions" json:"medical_conditions,omitempty"`
	Allergies         *string            `db:"allergies" json:"allergies,omitempty"`
	Medications       *string            `db:"medications" json:"medications,omitempty"`
	EmergencyContacts types.NullJSONText `db:"emergency_contacts" json:"emergency_contacts"`
	ClassID           *string            `db:"class_id" json:"class_id,omitempty"`
	SectionID         *string            `db:"section_id" json:"section_id,omitempty"`
	AdmissionDate     time.Time          `db:"admission_date" json:"admission_date"`
	PreviousSchool    *string            `db:"previous_school" json:"previous_school,omitempty"`
	Status            string             `db:"status" json:"status"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// StudentListItem is the row projection returned by the student listing.
type StudentListItem struct {
	ID              string  `db:"id" json:"id"`
	UserID          string  `db:"user_id" json:"user_id"`
	AdmissionNumber string  `db:"admission_number" json:"admission_number"`
	RollNumber      *string `db:"roll_number" json:"roll_number,omitempty"`
	FirstName       string  `db:"first_name" json:"first_name"`
	LastName        string  `db:"last_name" json:"last_name"`
	Email           string  `db:"email" json:"email"`
	ClassName       *string `db:"class_name" json:"class_name,omitempty"`
	SectionName     *string `db:"section_name" json:"section_name,omitempty"`
	Status          string  `db:"status" json:"status"`
}

// StudentDetail joins the profile with its user account and placement.
type StudentDetail struct {
	Student
	Email                string   `db:"email" json:"email"`
	Username             string   `db:"username" json:"username"`
	FirstName            string   `db:"first_name" json:"first_name"`
	LastName             string   `db:"last_name" json:"last_name"`
	Phone                *string  `db:"phone" json:"phone,omitempty"`
	ClassName            *string  `db:"class_name" json:"class_name,omitempty"`
	SectionName          *string  `db:"section_name" json:"section_name,omitempty"`
	AttendancePercentage *float64 `db:"-" json:"attendance_percentage,omitempty"`
	TotalAttendanceDays  *int     `db:"-" json:"total_attendance_days,omitempty"`
	PresentDays          *int     `db:"-" json:"present_days,omitempty"`
}

// StudentFilter captures listing criteria.
type StudentFilter struct {
	ClassID   string
	SectionID string
	Status    string
	Search    string
	Skip      int
	Limit     int
}

// AttendanceTotals counts a student's attendance marks.
type AttendanceTotals struct {
	TotalDays   int `db:"total_days" json:"total_days"`
	PresentDays int `db:"present_days" json:"present_days"`
}

// StudentPatch carries the supplied fields of a partial student update.
type StudentPatch struct {
	RollNumber        *string
	BloodGroup        *string
	Religion          *string
	Category          *string
	AddressLine1      *string
	AddressLine2      *string
	City              *string
	State             *string
	Pincode           *string
	MedicalConditions *string
	Allergies         *string
	Medications       *string
	EmergencyContacts *types.JSONText
	ClassID           *string
	SectionID         *string
	Status            *string
}
