package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/pythagon-backend/internal/data/db"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/envutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/services"
)

const (
	AuthModeFirebase = "firebase"
	AuthModeHMAC     = "hmac"
	AuthModeMock     = "mock"

	PartitionerPDF        = "pdf"
	PartitionerDocumentAI = "documentai"

	SolverLinear = "linear"
	SolverOpenAI = "openai"
)

type Config struct {
	Service     string `yaml:"service"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`

	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Store   StoreConfig   `yaml:"store"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Solve   SolveConfig   `yaml:"solve"`
	Worker  WorkerConfig  `yaml:"worker"`
	Redis   RedisConfig   `yaml:"redis"`
	Archive ArchiveConfig `yaml:"archive"`
	DocAI   DocAIConfig   `yaml:"documentai"`
	OpenAI  OpenAIConfig  `yaml:"openai"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	Mode              string `yaml:"mode"`
	HMACSecret        string `yaml:"hmac_secret"`
	HMACIssuer        string `yaml:"hmac_issuer"`
	FirebaseProjectID string `yaml:"firebase_project_id"`
	FirebaseJWKSURL   string `yaml:"firebase_jwks_url"`
	MockCallerID      string `yaml:"mock_caller_id"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
}

type IngestConfig struct {
	Mode               string        `yaml:"mode"`
	Partitioner        string        `yaml:"partitioner"`
	MaxPages           int           `yaml:"max_pages"`
	ExtractConcurrency int           `yaml:"extract_concurrency"`
	ExtractTimeout     time.Duration `yaml:"extract_timeout"`
}

type SolveConfig struct {
	Solver        string        `yaml:"solver"`
	Timeout       time.Duration `yaml:"timeout"`
	AdvanceOnPoll bool          `yaml:"advance_on_poll"`
}

type WorkerConfig struct {
	Concurrency   int `yaml:"concurrency"`
	QueueCapacity int `yaml:"queue_capacity"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
}

type DocAIConfig struct {
	ProjectID   string        `yaml:"project_id"`
	Location    string        `yaml:"location"`
	ProcessorID string        `yaml:"processor_id"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type TelemetryConfig struct {
	Metrics      bool              `yaml:"metrics"`
	Tracing      bool              `yaml:"tracing"`
	OTLPEndpoint string            `yaml:"otlp_endpoint"`
	OTLPHeaders  map[string]string `yaml:"otlp_headers"`
	OTLPInsecure bool              `yaml:"otlp_insecure"`
	SampleRatio  float64           `yaml:"sample_ratio"`
}

func defaultConfig() Config {
	return Config{
		Service:     "pythagon-api",
		Environment: "development",
		HTTP: HTTPConfig{
			Addr:            ":8000",
			MaxUploadBytes:  32 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Auth: AuthConfig{
			Mode:       AuthModeMock,
			HMACIssuer: "pythagon",
		},
		Store: StoreConfig{
			Driver: db.DriverMemory,
			Host:   "localhost",
			Port:   "5432",
			User:   "postgres",
			Name:   "pythagon",
		},
		Ingest: IngestConfig{
			Mode:               services.IngestModeSync,
			Partitioner:        PartitionerPDF,
			MaxPages:           200,
			ExtractConcurrency: 4,
			ExtractTimeout:     60 * time.Second,
		},
		Solve: SolveConfig{
			Solver:  SolverLinear,
			Timeout: 120 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:   4,
			QueueCapacity: 1024,
		},
		Redis: RedisConfig{
			Channel: "pythagon.status",
		},
		DocAI: DocAIConfig{
			Location: "us",
		},
		Telemetry: TelemetryConfig{
			Metrics:     true,
			SampleRatio: 1,
		},
	}
}

// LoadConfig layers defaults, then the YAML file named by CONFIG_FILE, then
// environment variables.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Config file loaded", "path", path)
		}
	}
	overlayEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	cfg.Service = envutil.String("SERVICE_NAME", cfg.Service)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment)
	cfg.Version = envutil.String("APP_VERSION", cfg.Version)

	if port := envutil.String("PORT", ""); port != "" {
		cfg.HTTP.Addr = ":" + port
	}
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.CORSOrigins = envutil.List("CORS_ORIGINS", cfg.HTTP.CORSOrigins)
	cfg.HTTP.MaxUploadBytes = int64(envutil.Int("MAX_UPLOAD_BYTES", int(cfg.HTTP.MaxUploadBytes)))
	cfg.HTTP.ShutdownTimeout = envutil.Duration("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Auth.Mode = strings.ToLower(envutil.String("AUTH_MODE", cfg.Auth.Mode))
	cfg.Auth.HMACSecret = envutil.String("AUTH_HMAC_SECRET", cfg.Auth.HMACSecret)
	cfg.Auth.HMACIssuer = envutil.String("AUTH_HMAC_ISSUER", cfg.Auth.HMACIssuer)
	cfg.Auth.FirebaseProjectID = envutil.String("FIREBASE_PROJECT_ID", cfg.Auth.FirebaseProjectID)
	cfg.Auth.FirebaseJWKSURL = envutil.String("FIREBASE_JWKS_URL", cfg.Auth.FirebaseJWKSURL)
	cfg.Auth.MockCallerID = envutil.String("AUTH_MOCK_CALLER_ID", cfg.Auth.MockCallerID)

	cfg.Store.Driver = strings.ToLower(envutil.String("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.Host = envutil.String("POSTGRES_HOST", cfg.Store.Host)
	cfg.Store.Port = envutil.String("POSTGRES_PORT", cfg.Store.Port)
	cfg.Store.User = envutil.String("POSTGRES_USER", cfg.Store.User)
	cfg.Store.Password = envutil.String("POSTGRES_PASSWORD", cfg.Store.Password)
	cfg.Store.Name = envutil.String("POSTGRES_NAME", cfg.Store.Name)
	cfg.Store.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.Store.SSLMode)
	cfg.Store.SQLitePath = envutil.String("SQLITE_PATH", cfg.Store.SQLitePath)

	cfg.Ingest.Mode = strings.ToLower(envutil.String("INGEST_MODE", cfg.Ingest.Mode))
	cfg.Ingest.Partitioner = strings.ToLower(envutil.String("PARTITIONER", cfg.Ingest.Partitioner))
	cfg.Ingest.MaxPages = envutil.Int("MAX_PAGES", cfg.Ingest.MaxPages)
	cfg.Ingest.ExtractConcurrency = envutil.Int("EXTRACT_CONCURRENCY", cfg.Ingest.ExtractConcurrency)
	cfg.Ingest.ExtractTimeout = envutil.Duration("EXTRACT_TIMEOUT", cfg.Ingest.ExtractTimeout)

	cfg.Solve.Solver = strings.ToLower(envutil.String("SOLVER", cfg.Solve.Solver))
	cfg.Solve.Timeout = envutil.Duration("SOLVE_TIMEOUT", cfg.Solve.Timeout)
	cfg.Solve.AdvanceOnPoll = envutil.Bool("SOLVE_ADVANCE_ON_POLL", cfg.Solve.AdvanceOnPoll)

	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.QueueCapacity = envutil.Int("JOB_QUEUE_CAPACITY", cfg.Worker.QueueCapacity)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.Archive.Bucket = envutil.String("ARCHIVE_BUCKET", cfg.Archive.Bucket)

	cfg.DocAI.ProjectID = envutil.String("DOCUMENTAI_PROJECT_ID", cfg.DocAI.ProjectID)
	cfg.DocAI.Location = envutil.String("DOCUMENTAI_LOCATION", cfg.DocAI.Location)
	cfg.DocAI.ProcessorID = envutil.String("DOCUMENTAI_PROCESSOR_ID", cfg.DocAI.ProcessorID)
	cfg.DocAI.Timeout = envutil.Duration("DOCUMENTAI_TIMEOUT", cfg.DocAI.Timeout)

	cfg.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", cfg.OpenAI.APIKey)
	cfg.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.OpenAI.BaseURL)
	cfg.OpenAI.Model = envutil.String("OPENAI_MODEL", cfg.OpenAI.Model)

	cfg.Telemetry.Metrics = envutil.Bool("METRICS_ENABLED", cfg.Telemetry.Metrics)
	cfg.Telemetry.Tracing = envutil.Bool("OTEL_ENABLED", cfg.Telemetry.Tracing)
	cfg.Telemetry.OTLPEndpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	if h := observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")); h != nil {
		cfg.Telemetry.OTLPHeaders = h
	}
	cfg.Telemetry.OTLPInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Telemetry.OTLPInsecure)
	cfg.Telemetry.SampleRatio = observability.ClampRatio(envutil.Float("OTEL_SAMPLER_RATIO", cfg.Telemetry.SampleRatio))
}

func (c Config) validate() error {
	switch c.Auth.Mode {
	case AuthModeMock, AuthModeFirebase:
	case AuthModeHMAC:
		if strings.TrimSpace(c.Auth.HMACSecret) == "" {
			return fmt.Errorf("AUTH_HMAC_SECRET is required when AUTH_MODE=hmac")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}
	switch c.Store.Driver {
	case db.DriverMemory, db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Ingest.Mode {
	case services.IngestModeSync, services.IngestModeAsync:
	default:
		return fmt.Errorf("unknown INGEST_MODE %q", c.Ingest.Mode)
	}
	switch c.Ingest.Partitioner {
	case PartitionerPDF, PartitionerDocumentAI:
	default:
		return fmt.Errorf("unknown PARTITIONER %q", c.Ingest.Partitioner)
	}
	switch c.Solve.Solver {
	case SolverLinear, SolverOpenAI:
	default:
		return fmt.Errorf("unknown SOLVER %q", c.Solve.Solver)
	}
	return nil
}

func (c Config) dbConfig() db.Config {
	return db.Config{
		Driver:     c.Store.Driver,
		Host:       c.Store.Host,
		Port:       c.Store.Port,
		User:       c.Store.User,
		Password:   c.Store.Password,
		Name:       c.Store.Name,
		SSLMode:    c.Store.SSLMode,
		SQLitePath: c.Store.SQLitePath,
	}
}

func (c Config) tracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName: c.Service,
		Environment: c.Environment,
		Version:     c.Version,
		Endpoint:    c.Telemetry.OTLPEndpoint,
		Headers:     c.Telemetry.OTLPHeaders,
		Insecure:    c.Telemetry.OTLPInsecure,
		SampleRatio: c.Telemetry.SampleRatio,
	}
}
