package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportType enumerates the datasets that can be rendered in the background.
type ExportType string

const (
	ExportAttendanceSummary ExportType = "attendance_summary"
	ExportAssessmentGrades  ExportType = "assessment_grades"
)

// ExportStatus captures the lifecycle of an export job.
type ExportStatus string

const (
	ExportQueued     ExportStatus = "queued"
	ExportProcessing ExportStatus = "processing"
	ExportFinished   ExportStatus = "finished"
	ExportFailed     ExportStatus = "failed"
	ExportExpired    ExportStatus = "expired"
)

// ExportJob is a persisted background export request.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ExportType      `db:"type" json:"type"`
	Params       ExportJobParams `db:"params" json:"params"`
	Status       ExportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	Attempts     int             `db:"attempts" json:"attempts"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	FilePath     *string         `db:"file_path" json:"-"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ExportJobParams are the request options stored as JSONB.
type ExportJobParams struct {
	Format       string `json:"format"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	ClassID      string `json:"class_id,omitempty"`
	SectionID    string `json:"section_id,omitempty"`
	AssessmentID string `json:"assessment_id,omitempty"`
}

// Value marshals params for persistence.
func (p ExportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export params: %w", err)
	}
	return data, nil
}

// Scan decodes the JSONB column.
func (p *ExportJobParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*p = ExportJobParams{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportJobParams", value)
	}
	if len(data) == 0 {
		*p = ExportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export params: %w", err)
	}
	return nil
}

// ExportJobUpdate carries the mutable columns of a job.
type ExportJobUpdate struct {
	Status       *ExportStatus
	Progress     *int
	Attempts     *int
	ResultURL    *string
	FilePath     *string
	ErrorMessage *string
	FinishedAt   *time.Time
}
