package gin

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/platform-shutdown/common/env"
	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// PanicRecoveryMiddleware turns a handler panic into a 500 and logs it with our logging framework
func PanicRecoveryMiddleware(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(c.Request.Context()).Error("Recovered from panic in gin http handler",
				logger.String("path", c.FullPath()),
				logger.Any("panic", r),
			)
			if env.IsLocalApplicationEnv() {
				// pretty print the stack trace to the local console to make it human-readable
				_, _ = fmt.Fprintf(os.Stderr, "%s\n", debug.Stack())
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"message": "internal server error",
			})
		}
	}()
	c.Next()
}
