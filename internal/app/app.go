package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	apphttp "github.com/yungbote/pythagon-backend/internal/http"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/envutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Router   *gin.Engine
	Server   *apphttp.Server
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	logOpts := logger.Options{
		Mode:             envutil.String("LOG_MODE", "development"),
		Level:            envutil.String("LOG_LEVEL", ""),
		DisableRedaction: !envutil.Bool("LOG_REDACTION_ENABLED", true),
		HashSalt:         envutil.String("LOG_HASH_SALT", ""),
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if logger.Production(logOpts.Mode) {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	var otelShutdown func(context.Context) error
	if cfg.Telemetry.Tracing {
		otelShutdown, err = observability.StartTracing(ctx, log, cfg.tracingConfig())
		if err != nil {
			log.Warn("Tracing disabled", "error", err)
		}
	}
	var metrics *observability.Metrics
	if cfg.Telemetry.Metrics {
		metrics = observability.NewMetrics()
	}

	abort := func(err error) (*App, error) {
		if otelShutdown != nil {
			_ = otelShutdown(context.Background())
		}
		log.Sync()
		return nil, err
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return abort(err)
	}

	reposet := wireRepos(clients.DB, log)

	serviceset, err := wireServices(log, cfg, clients, reposet, metrics)
	if err != nil {
		clients.Close()
		return abort(err)
	}

	handlerset := wireHandlers(log, cfg, serviceset)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, handlerset, middleware, metrics, otelShutdown != nil)

	server := apphttp.NewServer(log, router, apphttp.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})

	return &App{
		Log:          log,
		Router:       router,
		Server:       server,
		Cfg:          cfg,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches background workers. Safe to call once.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(ctx)
}

// Close stops the workers, then releases clients.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.JobQueue != nil {
		a.Services.JobQueue.Close()
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
