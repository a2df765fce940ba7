package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyLimitRouter(limit int64) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/upload", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "read failed")
			return
		}
		c.String(http.StatusOK, "%d", len(body))
	})
	return router
}

func TestBodyLimit(t *testing.T) {
	t.Run("small body passes", func(t *testing.T) {
		w := httptest.NewRecorder()
		bodyLimitRouter(10).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("hello")))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "5", w.Body.String())
	})

	t.Run("declared oversize body is rejected with the envelope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", 20)))
		req.Header.Set(RequestIDHeader, "req-big")
		w := httptest.NewRecorder()
		bodyLimitRouter(10).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeRequestTooLarge, resp.Error.Code)
		assert.Equal(t, "req-big", resp.Error.RequestID)
	})

	t.Run("chunked oversize body fails while reading", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", io.NopCloser(strings.NewReader(strings.Repeat("a", 20))))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		bodyLimitRouter(10).ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Equal(t, "read failed", w.Body.String())
	})

	t.Run("non-positive limit disables the check", func(t *testing.T) {
		w := httptest.NewRecorder()
		bodyLimitRouter(0).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("a", 20))))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
