package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/pythagon-backend/internal/data/repos/problems"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type ProblemRepo = problems.ProblemRepo
type SolutionRepo = problems.SolutionRepo

// NewMemory returns the process-local stores.
func NewMemory() (ProblemRepo, SolutionRepo) {
	return problems.NewMemoryProblemRepo(), problems.NewMemorySolutionRepo()
}

// NewGorm returns stores backed by db. The schema must already be migrated.
func NewGorm(db *gorm.DB, log *logger.Logger) (ProblemRepo, SolutionRepo) {
	return problems.NewGormProblemRepo(db, log), problems.NewGormSolutionRepo(db, log)
}
