package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abortWithError writes the same envelope as handlers.RespondError. It lives
// here because handlers imports this package.
func abortWithError(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"message": message,
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": id,
		},
	})
}
