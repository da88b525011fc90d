package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRecoveryRendersEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/api/notifications", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "u-1")
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	payload := decode(t, w)
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
}

func TestRecoveryAfterPartialResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/ws", func(c *gin.Context) {
		c.String(http.StatusOK, "streaming")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "streaming", w.Body.String())
}

func TestNotFoundHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/missing", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	payload := decode(t, w)
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Equal(t, "route DELETE /api/missing not found", payload.Error.Message)
}
