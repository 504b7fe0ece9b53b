package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	requestIDKey    = "request_id"
)

// WithResponseMeta initialises response metadata storage on the request
// context, seeded with the request id.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[requestIDKey] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
