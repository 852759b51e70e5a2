package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/http/response"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

func authRouter(t *testing.T, verifier services.IdentityVerifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContext())
	r.Use(NewAuthMiddleware(logger.Nop(), verifier).RequireAuth())
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": CallerID(c)})
	})
	return r
}

func hmacToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireAuthRejects(t *testing.T) {
	t.Parallel()
	verifier, err := services.NewHMACVerifier("s3cret", "")
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	r := authRouter(t, verifier)

	headers := map[string]string{
		"missing":       "",
		"not bearer":    "Basic dXNlcjpwYXNz",
		"empty bearer":  "Bearer ",
		"garbage":       "Bearer not-a-jwt",
		"wrong secret":  "Bearer " + hmacToken(t, "other", "user-1", time.Now().Add(time.Hour)),
		"expired token": "Bearer " + hmacToken(t, "s3cret", "user-1", time.Now().Add(-time.Hour)),
	}
	for name, header := range headers {
		header := header
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status: want=%d got=%d", http.StatusUnauthorized, rec.Code)
			}
			var env response.ErrorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Error.Code != "unauthorized" || env.Error.Message == "" {
				t.Fatalf("unexpected error body: %s", rec.Body.String())
			}
		})
	}
}

func TestRequireAuthAttachesCaller(t *testing.T) {
	t.Parallel()
	verifier, err := services.NewHMACVerifier("s3cret", "")
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	r := authRouter(t, verifier)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "bearer "+hmacToken(t, "s3cret", "user-42", time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["caller"] != "user-42" {
		t.Fatalf("caller: want=%q got=%q", "user-42", body["caller"])
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id")
	}
}

func traceRouter(seen **ctxutil.TraceData) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestContext())
	r.GET("/", func(c *gin.Context) {
		*seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequestContextHonoursHeaders(t *testing.T) {
	t.Parallel()
	var seen *ctxutil.TraceData
	r := traceRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("X-Trace-Id", "trace-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil {
		t.Fatalf("no trace data on the request")
	}
	if seen.RequestID != "req-1" || seen.TraceID != "trace-1" {
		t.Fatalf("trace data: %+v", seen)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Fatalf("X-Request-Id: want=%q got=%q", "req-1", got)
	}
	if got := rec.Header().Get("X-Trace-Id"); got != "trace-1" {
		t.Fatalf("X-Trace-Id: want=%q got=%q", "trace-1", got)
	}
}

func TestRequestContextReplacesUnsafeIDs(t *testing.T) {
	t.Parallel()
	var seen *ctxutil.TraceData
	r := traceRouter(&seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req 1 <script>")
	req.Header.Set("X-Trace-Id", strings.Repeat("t", 200))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil {
		t.Fatalf("no trace data on the request")
	}
	if _, err := uuid.Parse(seen.RequestID); err != nil {
		t.Fatalf("request id not replaced: %q", seen.RequestID)
	}
	// Without a span or a usable header the request id doubles as trace id.
	if seen.TraceID != seen.RequestID {
		t.Fatalf("trace id: want=%q got=%q", seen.RequestID, seen.TraceID)
	}
}

func TestObserveRecordsRoutes(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	m := observability.NewMetrics()
	r := gin.New()
	r.Use(RequestContext(), Observe(logger.Nop(), m))
	r.GET("/problem/:id/status", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/problem/a/status", "/problem/b/status", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`pythagon_api_requests_total{method="GET",route="/problem/:id/status",status="200"} 2`,
		`pythagon_api_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("scrape missing %q", want)
		}
	}
}

func TestObserveToleratesNilSinks(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Observe(nil, nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
}
