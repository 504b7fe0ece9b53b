package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/internal/service"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type fakeAuthSrv struct{}

func (fakeAuthSrv) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "password" {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "Incorrect email/username or password")
	}
	return &models.LoginResponse{AccessToken: "token", TokenType: "bearer", User: models.UserInfo{ID: "u-1"}}, nil
}

func (fakeAuthSrv) Me(ctx context.Context, actor *models.Actor) (*models.UserInfo, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.UserInfo{ID: actor.UserID, Role: actor.Role}, nil
}

type fakeAcademicSrv struct{}

func (fakeAcademicSrv) Classes(ctx context.Context) ([]models.ClassOverview, error) {
	return []models.ClassOverview{{Class: models.Class{ID: "c-1"}, SectionCount: 2}}, nil
}

func (fakeAcademicSrv) Sections(ctx context.Context, classID string) ([]models.Section, error) {
	if classID != "c-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return []models.Section{{ID: "sec-a", ClassID: classID}}, nil
}

func (fakeAcademicSrv) Subjects(ctx context.Context, classID string) ([]models.Subject, error) {
	return []models.Subject{}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	h := NewAuthHandler(fakeAuthSrv{})
	router := newTestRouter(nil)
	router.POST("/auth/login", h.Login)
	router.GET("/auth/me", h.Me)

	rec, env := perform(t, router, http.MethodPost, "/auth/login", map[string]string{"login": "admin", "password": "password"})
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "token", res.AccessToken)

	rec, _ = perform(t, router, http.MethodPost, "/auth/login", map[string]string{"login": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = perform(t, router, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(fakeAuthSrv{})
	router := newTestRouter(testTeacher)
	router.GET("/auth/me", h.Me)

	rec, env := perform(t, router, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info models.UserInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.Equal(t, models.RoleTeacher, info.Role)
}

func TestAcademicHandler(t *testing.T) {
	h := NewAcademicHandler(fakeAcademicSrv{})
	router := newTestRouter(testTeacher)
	router.GET("/classes", h.Classes)
	router.GET("/classes/:id/sections", h.Sections)
	router.GET("/classes/:id/subjects", h.Subjects)

	rec, _ := perform(t, router, http.MethodGet, "/classes", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(t, router, http.MethodGet, "/classes/c-1/sections", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(t, router, http.MethodGet, "/classes/c-9/sections", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, env := perform(t, router, http.MethodGet, "/classes/c-1/subjects", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestMetricsHandlerReady(t *testing.T) {
	metrics := service.NewMetricsService()
	healthy := NewMetricsHandler(metrics, map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	router := newTestRouter(nil)
	router.GET("/ready", healthy.Ready)
	router.GET("/health", healthy.Health)
	router.GET("/metrics", healthy.Prometheus)
	router.GET("/metrics/summary", healthy.Summary)

	rec, _ := perform(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = perform(t, router, http.MethodGet, "/metrics/summary", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	router = newTestRouter(nil)
	router.GET("/ready", failing.Ready)
	router.GET("/metrics", failing.Prometheus)

	rec, _ = perform(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
	rec, _ = perform(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
