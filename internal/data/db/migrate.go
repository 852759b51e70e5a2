package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/pythagon-backend/internal/data/repos/problems"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := problems.Migrate(db); err != nil {
		return err
	}
	return EnsureIndexes(db)
}

// EnsureIndexes adds the lookup indexes AutoMigrate does not derive from tags.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"idx_problem_document_page", `CREATE INDEX IF NOT EXISTS idx_problem_document_page ON problem (document_id, page_number);`},
		{"idx_solution_problem_status", `CREATE INDEX IF NOT EXISTS idx_solution_problem_status ON solution (problem_id, status);`},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}
