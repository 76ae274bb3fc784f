package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/logctx"
)

const (
	TraceHeader = "X-Request-ID"
	// GinTraceIDKey holds the trace id in gin.Context.
	GinTraceIDKey = "traceID"
)

// TraceMiddleware reads X-Request-ID or generates one, and stores it in
// gin.Context and the request context.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(GinTraceIDKey, traceID)
		c.Request = c.Request.WithContext(logctx.WithTraceID(c.Request.Context(), traceID))
		c.Next()
	}
}
