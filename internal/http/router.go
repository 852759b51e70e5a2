package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/pythagon-backend/internal/http/handlers"
	httpMW "github.com/yungbote/pythagon-backend/internal/http/middleware"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware
	Metrics        *observability.Metrics
	CORSOrigins    []string
	// TracingService enables otelgin spans under this service name.
	TracingService string

	ProblemHandler *httpH.ProblemHandler
	SolveHandler   *httpH.SolveHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TracingService != "" {
		r.Use(otelgin.Middleware(cfg.TracingService))
	}
	r.Use(httpMW.RequestContext())
	r.Use(httpMW.Observe(cfg.Log, cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Public
	if cfg.HealthHandler != nil {
		r.GET("/health", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Problems
	if cfg.ProblemHandler != nil {
		protected.POST("/upload", cfg.ProblemHandler.Upload)
		protected.GET("/problem/:id/status", cfg.ProblemHandler.GetStatus)
		protected.DELETE("/problem/:id", cfg.ProblemHandler.Delete)
		protected.GET("/document/:id/problems", cfg.ProblemHandler.ListDocument)
	}

	// Solving
	if cfg.SolveHandler != nil {
		protected.POST("/solve/:id", cfg.SolveHandler.Start)
		protected.GET("/solve/:id/status", cfg.SolveHandler.Status)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "route not found", "code": "not_found"}})
	})

	return r
}
