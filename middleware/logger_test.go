package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(TraceID(), Logger(zap.New(core)))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/beans/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/api/broken", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
		c.Status(http.StatusInternalServerError)
	})

	for _, p := range []string{"/health", "/api/beans/7", "/api/missing", "/api/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	all := logs.All()
	require.Len(t, all, 3, "health checks stay below info")
	assert.Equal(t, zapcore.InfoLevel, all[0].Level)
	assert.Equal(t, "/api/beans/:id", all[0].ContextMap()["route"])
	assert.NotEmpty(t, all[0].ContextMap()["trace_id"])
	assert.Equal(t, zapcore.WarnLevel, all[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, all[2].Level)
	assert.Equal(t, []interface{}{"db down"}, all[2].ContextMap()["errors"])
}
