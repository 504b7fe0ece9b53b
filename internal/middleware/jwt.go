package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextActorKey is the gin context key storing the resolved actor.
	ContextActorKey = "currentActor"
)

// Authenticator validates bearer tokens and resolves them into actors.
type Authenticator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
	ResolveActor(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error)
}

// JWT protects routes by requiring a valid access token for an active user.
// The resolved actor is stored once per request.
func JWT(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Not authenticated"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		actor, err := auth.ResolveActor(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor stored by JWT, or nil.
func ActorFrom(c *gin.Context) *models.Actor {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*models.Actor)
	return actor
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
