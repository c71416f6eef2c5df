package middleware

import "github.com/gin-gonic/gin"

// abortJSON stops the chain with the same error envelope the handlers use:
// {"request_id", "error", "message"}.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"error":      code,
		"message":    msg,
	})
}
