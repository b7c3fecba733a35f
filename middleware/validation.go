package middleware

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"tonotes/utils"
)

// RequireJSONBody rejects POST and PUT requests that carry a body in any
// format other than JSON.
func RequireJSONBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut {
			c.Next()
			return
		}
		if c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			c.Abort()
			c.JSON(http.StatusUnsupportedMediaType, &utils.Response{
				Status: http.StatusUnsupportedMediaType,
				Error:  "Content-Type must be application/json",
			})
			return
		}
		c.Next()
	}
}
