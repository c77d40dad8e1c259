package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dfryer1193/photolog/api"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LoggingMiddleware())
	router.Use(gin.CustomRecovery(HandlePanics()))
	return router
}

func TestLoggingMiddleware_GeneratesRequestID(t *testing.T) {
	router := newTestRouter()
	var seen string
	router.GET("/ping", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	got := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("response request id %q is not a uuid: %v", got, err)
	}
	if seen != got {
		t.Errorf("handler saw request id %q, response carried %q", seen, got)
	}
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	router := newTestRouter()
	router.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "caller-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "caller-42" {
		t.Errorf("request id = %q, want %q", got, "caller-42")
	}
}

func TestHandlePanics(t *testing.T) {
	tests := []struct {
		name      string
		recovered any
	}{
		{name: "error value", recovered: errors.New("boom")},
		{name: "string value", recovered: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			router.GET("/panic", func(c *gin.Context) {
				panic(tt.recovered)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
			}
			var body api.Error
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Error != http.StatusText(http.StatusInternalServerError) {
				t.Errorf("error = %q", body.Error)
			}
		})
	}
}
