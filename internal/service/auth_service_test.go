package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

type mockAuthRepo struct {
	users            map[string]*models.User
	lastLogin        string
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	m.lastLogin = login
	for _, u := range m.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

type profileStub struct {
	teachers map[string]string
	students map[string]string
	parents  map[string]string
}

func (p profileStub) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if id, ok := p.teachers[userID]; ok {
		return &models.Teacher{ID: id, UserID: userID}, nil
	}
	return nil, sql.ErrNoRows
}

func (p profileStub) FindIDByUserID(ctx context.Context, userID string) (string, error) {
	if id, ok := p.students[userID]; ok {
		return id, nil
	}
	return "", sql.ErrNoRows
}

type parentProfileStub map[string]string

func (p parentProfileStub) FindByUserID(ctx context.Context, userID string) (*models.Parent, error) {
	if id, ok := p[userID]; ok {
		return &models.Parent{ID: id, UserID: userID}, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *mockAuthRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockAuthRepo{users: map[string]*models.User{
		"u-admin":   {ID: "u-admin", Email: "admin@school.test", Username: "admin", PasswordHash: string(hash), Active: true, Role: models.RoleAdmin, FirstName: "Ada"},
		"u-teacher": {ID: "u-teacher", Email: "t@school.test", Username: "teach", PasswordHash: string(hash), Active: true, Role: models.RoleTeacher},
		"u-student": {ID: "u-student", Email: "s@school.test", Username: "kid", PasswordHash: string(hash), Active: true, Role: models.RoleStudent},
		"u-parent":  {ID: "u-parent", Email: "p@school.test", Username: "mum", PasswordHash: string(hash), Active: true, Role: models.RoleParent},
		"u-off":     {ID: "u-off", Email: "off@school.test", Username: "off", PasswordHash: string(hash), Active: false, Role: models.RoleTeacher},
	}}
	profiles := profileStub{
		teachers: map[string]string{"u-teacher": "t-1"},
		students: map[string]string{"u-student": "s-1"},
	}
	svc := NewAuthService(repo, profiles, profiles, parentProfileStub{"u-parent": "p-1"}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "school-mgmt-api",
	})
	return svc, repo
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	svc, repo := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Login: " Admin@School.test ", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "admin@school.test", repo.lastLogin)
	assert.Equal(t, "Ada", res.User.FullName)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginByUsernameResolvesProfile(t *testing.T) {
	svc, _ := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Login: "teach", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "t-1", res.User.TeacherID)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Login: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)

	_, err = svc.Login(ctx, models.LoginRequest{Login: "ghost", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Login: "off", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(ctx, models.LoginRequest{Login: "admin"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, appErrors.FromError(err).Status)
}

func TestValidateToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleAdmin}
	token, err := svc.generateAccessToken(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = svc.ValidateToken(token + "x")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	svc, _ := newAuthFixture(t)
	user := &models.User{ID: "u1", Role: models.RoleAdmin}

	expired, err := svc.generateAccessToken(user, time.Now().UTC().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u1"})
	signed, err := foreign.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(signed)
	assert.Error(t, err)
}

func TestResolveActor(t *testing.T) {
	svc, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		userID string
		check  func(t *testing.T, a *models.Actor)
	}{
		{"u-teacher", func(t *testing.T, a *models.Actor) { assert.Equal(t, "t-1", a.TeacherID) }},
		{"u-student", func(t *testing.T, a *models.Actor) { assert.Equal(t, "s-1", a.StudentID) }},
		{"u-parent", func(t *testing.T, a *models.Actor) { assert.Equal(t, "p-1", a.ParentID) }},
		{"u-admin", func(t *testing.T, a *models.Actor) { assert.Empty(t, a.TeacherID+a.StudentID+a.ParentID) }},
	}
	for _, tc := range cases {
		t.Run(tc.userID, func(t *testing.T) {
			actor, err := svc.ResolveActor(ctx, &models.JWTClaims{UserID: tc.userID})
			require.NoError(t, err)
			assert.Equal(t, tc.userID, actor.UserID)
			tc.check(t, actor)
		})
	}

	_, err := svc.ResolveActor(ctx, &models.JWTClaims{UserID: "u-off"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)

	_, err = svc.ResolveActor(ctx, &models.JWTClaims{UserID: "gone"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}

func TestMe(t *testing.T) {
	svc, _ := newAuthFixture(t)

	info, err := svc.Me(context.Background(), &models.Actor{UserID: "u-student", Role: models.RoleStudent, StudentID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, "kid", info.Username)
	assert.Equal(t, "s-1", info.StudentID)

	_, err = svc.Me(context.Background(), nil)
	require.Error(t, err)
}
