package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type academicRepository interface {
	ListClasses(ctx context.Context) ([]models.ClassOverview, error)
	FindClass(ctx context.Context, id string) (*models.Class, error)
	ListSections(ctx context.Context, classID string) ([]models.Section, error)
	ListSubjects(ctx context.Context, classID string) ([]models.Subject, error)
}

// AcademicService exposes the class structure used to populate client filters.
type AcademicService struct {
	repo   academicRepository
	logger *zap.Logger
}

// NewAcademicService constructs the academic service.
func NewAcademicService(repo academicRepository, logger *zap.Logger) *AcademicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicService{repo: repo, logger: logger}
}

// Classes lists every class with section and student counts.
func (s *AcademicService) Classes(ctx context.Context) ([]models.ClassOverview, error) {
	classes, err := s.repo.ListClasses(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list classes")
	}
	if classes == nil {
		classes = []models.ClassOverview{}
	}
	return classes, nil
}

// Sections lists the sections of a class.
func (s *AcademicService) Sections(ctx context.Context, classID string) ([]models.Section, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	sections, err := s.repo.ListSections(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list sections")
	}
	if sections == nil {
		sections = []models.Section{}
	}
	return sections, nil
}

// Subjects lists the subjects taught in a class.
func (s *AcademicService) Subjects(ctx context.Context, classID string) ([]models.Subject, error) {
	if err := s.ensureClass(ctx, classID); err != nil {
		return nil, err
	}
	subjects, err := s.repo.ListSubjects(ctx, classID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list subjects")
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	return subjects, nil
}

func (s *AcademicService) ensureClass(ctx context.Context, id string) error {
	if _, err := s.repo.FindClass(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Internal(err, "failed to load class")
	}
	return nil
}
