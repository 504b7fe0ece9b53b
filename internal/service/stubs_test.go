package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type studentLookupStub map[string]*models.Student

func (s studentLookupStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if student, ok := s[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

type parentLinkStub map[string][]string

func (s parentLinkStub) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	for _, id := range s[parentID] {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

// txStub runs fn inline and records whether the work committed.
type txStub struct {
	calls     int
	committed int
}

func (t *txStub) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	t.committed++
	return nil
}

type memoryCache struct {
	entries map[string][]byte
	gets    int
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	m.deletes = append(m.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func activeStudents(ids ...string) studentLookupStub {
	stub := studentLookupStub{}
	for _, id := range ids {
		stub[id] = &models.Student{ID: id, Status: models.StudentStatusActive}
	}
	return stub
}

func teacherActor(teacherID string) *models.Actor {
	return &models.Actor{UserID: "u-" + teacherID, Role: models.RoleTeacher, TeacherID: teacherID}
}

func adminActor() *models.Actor {
	return &models.Actor{UserID: "u-admin", Role: models.RoleAdmin}
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
