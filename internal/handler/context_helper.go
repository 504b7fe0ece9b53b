package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/middleware"
	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
)

func actorFromContext(c *gin.Context) *models.Actor {
	return middleware.ActorFrom(c)
}

// optionalInt reads an integer query parameter. A present but malformed value is a 422.
func optionalInt(c *gin.Context, key string) (*int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return &v, nil
}

func optionalBool(c *gin.Context, key string) (*bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be a boolean")
	}
	return &v, nil
}

func optionalString(c *gin.Context, key string) *string {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil
	}
	return &raw
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Validation(err, "invalid request body")
	}
	return nil
}
