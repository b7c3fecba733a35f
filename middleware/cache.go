package middleware

import "github.com/gin-gonic/gin"

// CacheControlMiddleware marks responses as publicly cacheable for duration
// seconds. Handlers override the header on error responses.
func CacheControlMiddleware(duration string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "public, max-age="+duration)
		c.Next()
	}
}

// NoStoreMiddleware marks responses as uncacheable.
func NoStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
