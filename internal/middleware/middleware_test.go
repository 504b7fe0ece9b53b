package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/middleware/requestid"
)

type authStub struct {
	actors map[string]*models.Actor
}

func (a authStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if _, ok := a.actors[token]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Could not validate credentials")
	}
	return &models.JWTClaims{UserID: token}, nil
}

func (a authStub) ResolveActor(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error) {
	actor := a.actors[claims.UserID]
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "Inactive user")
	}
	return actor, nil
}

func newGuardedRouter(guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := authStub{actors: map[string]*models.Actor{
		"admin":   {UserID: "admin", Role: models.RoleAdmin},
		"teacher": {UserID: "teacher", Role: models.RoleTeacher, TeacherID: "t-1"},
		"student": {UserID: "student", Role: models.RoleStudent, StudentID: "s-1"},
		"off":     nil,
	}}
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(auth)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": ActorFrom(c).UserID})
	})
	router.GET("/guarded", handlers...)
	return router
}

func call(router *gin.Engine, header string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddleware(t *testing.T) {
	router := newGuardedRouter()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"inactive user", "Bearer off", http.StatusForbidden},
		{"valid", "bearer teacher", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, call(router, tc.header).Code)
		})
	}
}

func TestRequireCapability(t *testing.T) {
	router := newGuardedRouter(RequireCapability(models.CapManageStudents))

	assert.Equal(t, http.StatusOK, call(router, "Bearer admin").Code)

	rec := call(router, "Bearer teacher")
	require.Equal(t, http.StatusForbidden, rec.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Not enough permissions", body.Error.Message)
}

func TestResponseMetaCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(rec, req)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, "req-42", meta["request_id"])
	assert.Equal(t, true, meta["cache_hit"])
}
