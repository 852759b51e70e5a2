package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver string

	// Postgres
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	// SQLite file path; ":memory:" keeps the database in process.
	SQLitePath string

	MaxOpenConns int
	MaxIdleConns int
}

func (c Config) dsn() string {
	switch c.Driver {
	case DriverSQLite:
		path := strings.TrimSpace(c.SQLitePath)
		if path == "" {
			path = "pythagon.db"
		}
		if path == ":memory:" {
			return "file::memory:?cache=shared&_busy_timeout=5000"
		}
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	default:
		ssl := c.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			c.User,
			c.Password,
			c.Host,
			c.Port,
			c.Name,
			ssl,
		)
	}
}

// Open connects to the configured SQL store. It returns (nil, nil) for the
// memory driver.
func Open(logg *logger.Logger, cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = DriverMemory
	}
	cfg.Driver = driver

	var dialector gorm.Dialector
	switch driver {
	case DriverMemory:
		return nil, nil
	case DriverPostgres:
		dialector = postgres.Open(cfg.dsn())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.dsn())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%s pool: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer keeps compare-and-transition updates serialized.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if logg != nil {
		logg.Info("store connected", "driver", driver)
	}
	return db, nil
}

// Close releases the pool behind db. Safe on nil.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
