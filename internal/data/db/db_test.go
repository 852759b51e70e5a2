package db

import (
	"path/filepath"
	"testing"

	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

func TestOpenMemoryDriverHasNoDB(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "memory", " Memory "} {
		db, err := Open(logger.Nop(), Config{Driver: driver})
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if db != nil {
			t.Fatalf("Open(%q): expected no database", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(logger.Nop(), Config{Driver: "mongo"}); err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	t.Parallel()
	db, err := Open(logger.Nop(), Config{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "p.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })

	if err := AutoMigrateAll(db); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}
	// Idempotent.
	if err := AutoMigrateAll(db); err != nil {
		t.Fatalf("second AutoMigrateAll: %v", err)
	}
	for _, table := range []string{"problem", "solution"} {
		if !db.Migrator().HasTable(table) {
			t.Fatalf("table %q missing", table)
		}
	}
	if !db.Migrator().HasIndex("problem", "idx_problem_document_page") {
		t.Fatalf("document/page index missing")
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()
	cfg := Config{Driver: DriverPostgres, Host: "db", Port: "5432", User: "u", Password: "p", Name: "pythagon"}
	if want := "postgres://u:p@db:5432/pythagon?sslmode=disable"; cfg.dsn() != want {
		t.Fatalf("dsn: want=%q got=%q", want, cfg.dsn())
	}
	cfg.SSLMode = "require"
	if want := "postgres://u:p@db:5432/pythagon?sslmode=require"; cfg.dsn() != want {
		t.Fatalf("dsn: want=%q got=%q", want, cfg.dsn())
	}
}

func TestCloseNil(t *testing.T) {
	t.Parallel()
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil): %v", err)
	}
}
