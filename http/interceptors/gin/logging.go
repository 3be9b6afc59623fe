package gin

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rainbow-me/platform-shutdown/common/logger"
)

// RequestLogging logs one line per handled request. 5xx responses log at error
// level, 4xx at warn and the rest at debug.
func RequestLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := logger.DebugLevel
		if status >= 500 {
			level = logger.ErrorLevel
		} else if status >= 400 {
			level = logger.WarnLevel
		}

		logger.FromContext(c.Request.Context()).Log(level.Zap(), "HTTP request handled",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", status),
			logger.Duration("duration", time.Since(start)),
			logger.String("connection", c.Writer.Header().Get("Connection")),
			logger.String("component", componentName),
		)
	}
}
