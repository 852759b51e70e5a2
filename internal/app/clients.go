package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/pythagon-backend/internal/data/db"
	"github.com/yungbote/pythagon-backend/internal/modules/mathtext"
	"github.com/yungbote/pythagon-backend/internal/platform/gcp"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/platform/openai"
	"github.com/yungbote/pythagon-backend/internal/platform/pdftext"
	"github.com/yungbote/pythagon-backend/internal/realtime/bus"
	"github.com/yungbote/pythagon-backend/internal/services"
)

type Clients struct {
	DB          *gorm.DB
	StatusBus   bus.Bus
	Partitioner services.Partitioner
	Extractor   services.Extractor
	Solver      services.Solver
	// Archive is nil when no bucket is configured.
	Archive services.DocumentArchive

	closers []func() error
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	c := Clients{Extractor: mathtext.NewExtractor()}

	// Store
	theDB, err := db.Open(log, cfg.dbConfig())
	if err != nil {
		return Clients{}, fmt.Errorf("init store: %w", err)
	}
	if theDB != nil {
		if err := db.AutoMigrateAll(theDB); err != nil {
			_ = db.Close(theDB)
			return Clients{}, fmt.Errorf("store automigrate: %w", err)
		}
		c.DB = theDB
		c.closers = append(c.closers, func() error { return db.Close(theDB) })
	}

	// Redis
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(ctx, log, bus.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis status bus: %w", err)
		}
		c.StatusBus = b
		c.closers = append(c.closers, b.Close)
	} else {
		c.StatusBus = bus.NewNopBus()
	}

	// Partitioner
	switch cfg.Ingest.Partitioner {
	case PartitionerDocumentAI:
		p, err := gcp.NewDocAIPartitioner(ctx, log, gcp.DocAIConfig{
			ProjectID:   cfg.DocAI.ProjectID,
			Location:    cfg.DocAI.Location,
			ProcessorID: cfg.DocAI.ProcessorID,
			Timeout:     cfg.DocAI.Timeout,
			MaxRetries:  2,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init document ai: %w", err)
		}
		c.Partitioner = p
		c.closers = append(c.closers, p.Close)
	default:
		c.Partitioner = pdftext.NewPartitioner(cfg.Ingest.MaxPages)
	}

	// Solver
	switch cfg.Solve.Solver {
	case SolverOpenAI:
		s, err := openai.NewSolver(log, openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			MaxRetries: 2,
			Timeout:    cfg.Solve.Timeout,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init openai solver: %w", err)
		}
		c.Solver = s
	default:
		c.Solver = mathtext.NewLinearSolver()
	}

	// Gcs
	if strings.TrimSpace(cfg.Archive.Bucket) != "" {
		ep, err := gcp.ArchiveEndpointFromEnv()
		if err != nil {
			c.Close()
			return Clients{}, err
		}
		a, err := gcp.NewDocumentArchive(ctx, log, cfg.Archive.Bucket, ep)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init document archive: %w", err)
		}
		c.Archive = a
		c.closers = append(c.closers, a.Close)
	}

	return c, nil
}

// Close releases clients in reverse construction order.
func (c *Clients) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
	c.closers = nil
}
