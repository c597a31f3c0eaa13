package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/faculty-reporting-api/pkg/config"
)

func TestDeadlineBoundsRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var deadline time.Time
	var ok bool

	r := gin.New()
	r.Use(Deadline(config.DatabaseConfig{QueryTimeout: 2 * time.Second}))
	r.GET("/reports", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reports", nil)
	r.ServeHTTP(w, req)

	require.True(t, ok, "request context should carry a deadline")
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestDeadlineDefaultsWhenUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var ok bool
	r := gin.New()
	r.Use(Deadline(config.DatabaseConfig{}))
	r.GET("/x", func(c *gin.Context) {
		_, ok = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, ok)
}
