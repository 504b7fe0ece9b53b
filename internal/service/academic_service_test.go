package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type academicRepoStub struct {
	classes  []models.ClassOverview
	sections map[string][]models.Section
	failList bool
}

func (r *academicRepoStub) ListClasses(ctx context.Context) ([]models.ClassOverview, error) {
	if r.failList {
		return nil, errors.New("boom")
	}
	return r.classes, nil
}

func (r *academicRepoStub) FindClass(ctx context.Context, id string) (*models.Class, error) {
	for _, c := range r.classes {
		if c.ID == id {
			class := c.Class
			return &class, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *academicRepoStub) ListSections(ctx context.Context, classID string) ([]models.Section, error) {
	return r.sections[classID], nil
}

func (r *academicRepoStub) ListSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	return nil, nil
}

func TestAcademicService(t *testing.T) {
	repo := &academicRepoStub{
		classes:  []models.ClassOverview{{Class: models.Class{ID: "c-1", Name: "Grade 5"}, SectionCount: 1, StudentCount: 30}},
		sections: map[string][]models.Section{"c-1": {{ID: "sec-a", ClassID: "c-1", Name: "A"}}},
	}
	svc := NewAcademicService(repo, nil)
	ctx := context.Background()

	classes, err := svc.Classes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, classes[0].StudentCount)

	sections, err := svc.Sections(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, sections, 1)

	subjects, err := svc.Subjects(ctx, "c-1")
	require.NoError(t, err)
	assert.NotNil(t, subjects)
	assert.Empty(t, subjects)

	_, err = svc.Sections(ctx, "c-404")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	repo.failList = true
	_, err = svc.Classes(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, appErrors.FromError(err).Status)
}
