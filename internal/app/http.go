package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/pythagon-backend/internal/http"
	httpH "github.com/yungbote/pythagon-backend/internal/http/handlers"
	httpMW "github.com/yungbote/pythagon-backend/internal/http/middleware"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Problem *httpH.ProblemHandler
	Solve   *httpH.SolveHandler
}

func wireHandlers(log *logger.Logger, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler("Pythagon API"),
		Problem: httpH.NewProblemHandler(log, services.Ingestion, cfg.HTTP.MaxUploadBytes),
		Solve:   httpH.NewSolveHandler(log, services.Solving),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Identity),
	}
}

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics, tracing bool) *gin.Engine {
	warnOpenCORS(log, cfg)
	tracingService := ""
	if tracing {
		tracingService = cfg.Service
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		AuthMiddleware: middleware.Auth,
		Metrics:        metrics,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TracingService: tracingService,
		ProblemHandler: handlers.Problem,
		SolveHandler:   handlers.Solve,
		HealthHandler:  handlers.Health,
	})
}

func warnOpenCORS(log *logger.Logger, cfg Config) {
	if logger.Production(cfg.Environment) && httpMW.AllowsAnyOrigin(cfg.HTTP.CORSOrigins) {
		log.Warn("CORS reflects every origin with credentials; set CORS_ORIGINS", "environment", cfg.Environment)
	}
}
