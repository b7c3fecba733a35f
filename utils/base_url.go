package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// GetBaseURL returns the externally visible origin of the request, honouring
// X-Forwarded-Proto when a proxy sits in front of the server.
func GetBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + c.Request.Host
}
