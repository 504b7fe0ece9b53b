package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

// RequireCapability rejects callers whose role does not grant cap.
// It must run after JWT.
func RequireCapability(cap models.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated"))
			c.Abort()
			return
		}
		if !actor.Can(cap) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Not enough permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}
