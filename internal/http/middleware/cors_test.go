package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(t *testing.T, handler gin.HandlerFunc, origin string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler)
	r.OPTIONS("/uploads/initiate", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/uploads/initiate", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsLocalDevOrigins(t *testing.T) {
	origins := []string{
		"http://localhost:5173",
		"http://127.0.0.1:3000",
	}
	for _, origin := range origins {
		origin := origin
		t.Run(origin, func(t *testing.T) {
			rec := preflight(t, CORS(), origin)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, origin)
			}
		})
	}
}

func TestCORSHonorsConfiguredOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "https://app.hatchmark.dev, https://studio.hatchmark.dev")

	rec := preflight(t, CORS(), "https://studio.hatchmark.dev")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://studio.hatchmark.dev" {
		t.Fatalf("configured origin rejected: got=%q", got)
	}

	rec = preflight(t, CORS(), "http://localhost:5173")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("default origin still allowed after override: got=%q", got)
	}
}
