package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newTestRouter returns an engine whose requests run as actor.
func newTestRouter(actor *models.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), func(c *gin.Context) {
		if actor != nil {
			c.Set(middleware.ContextActorKey, actor)
		}
		c.Next()
	})
	return router
}

func perform(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope responseEnvelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

var (
	testAdmin   = &models.Actor{UserID: "u-admin", Role: models.RoleAdmin}
	testTeacher = &models.Actor{UserID: "u-t1", Role: models.RoleTeacher, TeacherID: "t-1"}
)
