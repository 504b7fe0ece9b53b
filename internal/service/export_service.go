package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/export"
	"github.com/noah-isme/school-mgmt-api/pkg/storage"
)

type attendanceSummarizer interface {
	Summary(ctx context.Context, req AttendanceSummaryRequest) ([]models.StudentAttendanceSummary, bool, error)
}

type assessmentGradeLister interface {
	ByAssessment(ctx context.Context, assessmentID string) ([]models.GradeRecord, error)
}

type assessmentGetter interface {
	Get(ctx context.Context, id string) (*models.Assessment, error)
}

type exportStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes generated files.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a stored export.
type ExportResult struct {
	FilePath  string
	Token     string
	URL       string
	ExpiresAt time.Time
}

// ExportService renders export datasets and stores the files behind signed links.
type ExportService struct {
	attendance  attendanceSummarizer
	grades      assessmentGradeLister
	assessments assessmentGetter
	storage     exportStorage
	signer      *storage.Signer
	cfg         ExportConfig
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(attendance attendanceSummarizer, grades assessmentGradeLister, assessments assessmentGetter, store exportStorage, signer *storage.Signer, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		attendance:  attendance,
		grades:      grades,
		assessments: assessments,
		storage:     store,
		signer:      signer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Generate renders the job's dataset, stores it under the job id and signs a download link.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("export job is nil")
	}
	format, err := export.ParseFormat(job.Params.Format)
	if err != nil {
		return nil, err
	}
	base, data, err := s.dataset(ctx, job)
	if err != nil {
		return nil, err
	}
	doc, err := export.Build(format, base, data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Type, err)
	}

	filePath, err := s.storage.Save(path.Join(job.ID, doc.Filename), doc.Body)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, filePath)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("export stored", zap.String("job_id", job.ID), zap.String("path", filePath))
	return &ExportResult{
		FilePath:  filePath,
		Token:     token,
		URL:       s.DownloadURL(token),
		ExpiresAt: expiresAt,
	}, nil
}

// DownloadURL is the public link for token.
func (s *ExportService) DownloadURL(token string) string {
	return strings.TrimRight(s.cfg.APIPrefix, "/") + "/exports/download/" + token
}

// ParseToken verifies a download token.
func (s *ExportService) ParseToken(token string) (*storage.DownloadClaims, error) {
	return s.signer.Parse(token, false)
}

// Open returns a handle to a stored export.
func (s *ExportService) Open(filePath string) (*os.File, error) {
	return s.storage.Open(filePath)
}

// Delete removes a stored export.
func (s *ExportService) Delete(filePath string) error {
	return s.storage.Delete(filePath)
}

// Sweep removes files older than the result TTL that no job row points at anymore.
func (s *ExportService) Sweep() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) dataset(ctx context.Context, job *models.ExportJob) (string, export.Dataset, error) {
	switch job.Type {
	case models.ExportAttendanceSummary:
		req := AttendanceSummaryRequest{
			StartDate: job.Params.StartDate,
			EndDate:   job.Params.EndDate,
			ClassID:   job.Params.ClassID,
			SectionID: job.Params.SectionID,
		}
		summary, _, err := s.attendance.Summary(ctx, req)
		if err != nil {
			return "", export.Dataset{}, err
		}
		return attendanceSummaryFilename(req), attendanceSummaryDataset(req, summary), nil
	case models.ExportAssessmentGrades:
		assessment, err := s.assessments.Get(ctx, job.Params.AssessmentID)
		if err != nil {
			return "", export.Dataset{}, err
		}
		grades, err := s.grades.ByAssessment(ctx, assessment.ID)
		if err != nil {
			return "", export.Dataset{}, err
		}
		return "assessment-grades-" + assessment.ID, assessmentGradesDataset(assessment, grades), nil
	default:
		return "", export.Dataset{}, fmt.Errorf("unsupported export type %q", job.Type)
	}
}

var attendanceSummaryHeaders = []string{"Admission No", "Student", "Total", "Present", "Absent", "Late", "Attendance %"}

func attendanceSummaryFilename(req AttendanceSummaryRequest) string {
	return fmt.Sprintf("attendance-summary-%s-%s", req.StartDate, req.EndDate)
}

func attendanceSummaryDataset(req AttendanceSummaryRequest, summary []models.StudentAttendanceSummary) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Attendance summary %s to %s", req.StartDate, req.EndDate),
		Headers: attendanceSummaryHeaders,
		Rows:    make([]map[string]string, 0, len(summary)),
	}
	for _, row := range summary {
		data.Rows = append(data.Rows, map[string]string{
			"Admission No": row.AdmissionNumber,
			"Student":      row.StudentName,
			"Total":        strconv.Itoa(row.TotalDays),
			"Present":      strconv.Itoa(row.PresentDays),
			"Absent":       strconv.Itoa(row.AbsentDays),
			"Late":         strconv.Itoa(row.LateDays),
			"Attendance %": fmt.Sprintf("%.2f", row.AttendancePercentage),
		})
	}
	return data
}

var assessmentGradeHeaders = []string{"Admission No", "Student", "Marks", "Total", "Percentage", "Grade", "Absent"}

func assessmentGradesDataset(assessment *models.Assessment, grades []models.GradeRecord) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("%s (%s)", assessment.Title, assessment.AssessmentType),
		Headers: assessmentGradeHeaders,
		Rows:    make([]map[string]string, 0, len(grades)),
	}
	for _, g := range grades {
		row := map[string]string{
			"Admission No": g.AdmissionNumber,
			"Student":      g.StudentName,
			"Marks":        "",
			"Total":        strconv.FormatFloat(assessment.TotalMarks, 'f', -1, 64),
			"Percentage":   "",
			"Grade":        "",
			"Absent":       strconv.FormatBool(g.IsAbsent),
		}
		if g.MarksObtained != nil {
			row["Marks"] = strconv.FormatFloat(*g.MarksObtained, 'f', -1, 64)
		}
		if g.Percentage != nil {
			row["Percentage"] = fmt.Sprintf("%.2f", *g.Percentage)
		}
		if g.Grade.Grade != nil {
			row["Grade"] = string(*g.Grade.Grade)
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}
