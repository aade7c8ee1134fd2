package middleware

import (
	"net/http"

	"github.com/brewbuds/server/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a 500 with the usual error body.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			metrics.PanicsRecovered.Inc()
			log.Error("handler panic",
				zap.Any("panic", r),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("trace_id", GetTraceID(c)),
				zap.Int64("user_id", GetUserID(c)),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
		}()
		c.Next()
	}
}
