package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
)

// AccessLogMiddleware logs HTTP access using the request-scoped logger
// attached by RequestLoggerMiddleware, falling back to base.
func AccessLogMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if uid := c.GetString(GinUserIDKey); uid != "" {
			fields = append(fields, "user_id", uid)
		}
		logctx.FromGin(c, base).Infow("http_access", fields...)
	}
}
