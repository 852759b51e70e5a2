package app

import (
	"fmt"

	"github.com/yungbote/pythagon-backend/internal/jobs/pipeline/solution_solve"
	"github.com/yungbote/pythagon-backend/internal/jobs/pipeline/unit_extract"
	jobruntime "github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/jobs/worker"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

type Services struct {
	Identity  services.IdentityVerifier
	Notifier  services.StatusNotifier
	Ingestion services.IngestionService
	Solving   services.SolvingService

	// Job infra
	JobQueue    jobruntime.Queue
	JobRegistry *jobruntime.Registry
	JobWorker   *worker.Worker
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	identity, err := wireIdentity(log, cfg.Auth)
	if err != nil {
		return Services{}, err
	}

	notifier := services.NewStatusNotifier(log, clients.StatusBus, metrics)
	queue := jobruntime.NewMemoryQueue(cfg.Worker.QueueCapacity)

	ingestion := services.NewIngestionService(
		log,
		reposet.Problems,
		clients.Partitioner,
		clients.Extractor,
		clients.Archive,
		queue,
		notifier,
		services.IngestionConfig{
			Mode:               cfg.Ingest.Mode,
			ExtractConcurrency: cfg.Ingest.ExtractConcurrency,
			ExtractTimeout:     cfg.Ingest.ExtractTimeout,
		},
	)
	solving := services.NewSolvingService(
		log,
		reposet.Problems,
		reposet.Solutions,
		clients.Solver,
		queue,
		notifier,
		services.SolvingConfig{
			Timeout:       cfg.Solve.Timeout,
			AdvanceOnPoll: cfg.Solve.AdvanceOnPoll,
		},
	)

	reg := jobruntime.NewRegistry()
	if err := reg.Register(unit_extract.New(log, ingestion), solution_solve.New(log, solving)); err != nil {
		return Services{}, err
	}
	log.Debug("Job handlers registered", "types", reg.Types())

	return Services{
		Identity:    identity,
		Notifier:    notifier,
		Ingestion:   ingestion,
		Solving:     solving,
		JobQueue:    queue,
		JobRegistry: reg,
		JobWorker:   worker.NewWorker(log, queue, reg, metrics, cfg.Worker.Concurrency),
	}, nil
}

func wireIdentity(log *logger.Logger, cfg AuthConfig) (services.IdentityVerifier, error) {
	switch cfg.Mode {
	case AuthModeFirebase:
		v, err := services.NewFirebaseVerifier(nil, cfg.FirebaseProjectID, cfg.FirebaseJWKSURL)
		if err != nil {
			return nil, fmt.Errorf("init firebase verifier: %w", err)
		}
		return v, nil
	case AuthModeHMAC:
		v, err := services.NewHMACVerifier(cfg.HMACSecret, cfg.HMACIssuer)
		if err != nil {
			return nil, fmt.Errorf("init hmac verifier: %w", err)
		}
		return v, nil
	default:
		log.Warn("AUTH_MODE=mock: any bearer token is accepted")
		return services.NewStaticVerifier(cfg.MockCallerID), nil
	}
}
