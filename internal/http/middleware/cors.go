package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS allows the listed origins. An empty list or "*" reflects any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-Id", "X-Trace-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if allowed, anyOrigin := normalizeOrigins(origins); anyOrigin {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = allowed
	}
	return cors.New(cfg)
}

// AllowsAnyOrigin reports whether CORS(origins) reflects every origin.
func AllowsAnyOrigin(origins []string) bool {
	_, anyOrigin := normalizeOrigins(origins)
	return anyOrigin
}

func normalizeOrigins(origins []string) ([]string, bool) {
	allowed := make([]string, 0, len(origins))
	anyOrigin := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			anyOrigin = true
		default:
			allowed = append(allowed, o)
		}
	}
	return allowed, anyOrigin || len(allowed) == 0
}
