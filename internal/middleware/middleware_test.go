package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/listengraph/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middleware.SecurityHeaders())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	expected := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}

	for header, want := range expected {
		got := w.Header().Get(header)
		if got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRequestID_IgnoresClientValue(t *testing.T) {
	var seen, client string

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/test", func(c *gin.Context) {
		seen = c.GetString(middleware.RequestIDKey)
		client = c.GetString("client_request_id")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "abc")

	w := serve(r, req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("request id %q is not a UUID", seen)
	}
	if w.Header().Get(middleware.RequestIDHeader) != seen {
		t.Errorf("response header %q, want %q", w.Header().Get(middleware.RequestIDHeader), seen)
	}
	if client != "abc" {
		t.Errorf("client_request_id = %q, want abc", client)
	}
}

func TestRecovery(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
