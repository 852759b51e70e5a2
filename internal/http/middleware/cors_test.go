package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		origins []string
		origin  string
		allow   string
	}{
		{name: "configured origin", origins: []string{"http://localhost:5173/"}, origin: "http://localhost:5173", allow: "http://localhost:5173"},
		{name: "second configured origin", origins: []string{"http://localhost:5173", "https://app.pythagon.dev"}, origin: "https://app.pythagon.dev", allow: "https://app.pythagon.dev"},
		{name: "unknown origin", origins: []string{"http://localhost:5173"}, origin: "https://evil.example"},
		{name: "no list reflects", origin: "https://anywhere.example", allow: "https://anywhere.example"},
		{name: "wildcard reflects", origins: []string{"*"}, origin: "https://anywhere.example", allow: "https://anywhere.example"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS(tc.origins))
			r.POST("/upload", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.allow {
				t.Fatalf("allow-origin: want=%q got=%q", tc.allow, got)
			}
			if tc.allow != "" && rec.Code != http.StatusNoContent {
				t.Fatalf("status: want=%d got=%d", http.StatusNoContent, rec.Code)
			}
		})
	}
}

func TestAllowsAnyOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		origins []string
		want    bool
	}{
		{origins: nil, want: true},
		{origins: []string{" ", ""}, want: true},
		{origins: []string{"https://app.pythagon.dev", "*"}, want: true},
		{origins: []string{"https://app.pythagon.dev/"}, want: false},
	}
	for _, tc := range tests {
		if got := AllowsAnyOrigin(tc.origins); got != tc.want {
			t.Fatalf("AllowsAnyOrigin(%q): want=%v got=%v", tc.origins, tc.want, got)
		}
	}
}
