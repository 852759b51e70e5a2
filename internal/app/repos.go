package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/pythagon-backend/internal/data/repos"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type Repos struct {
	Problems  repos.ProblemRepo
	Solutions repos.SolutionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	if db == nil {
		p, s := repos.NewMemory()
		return Repos{Problems: p, Solutions: s}
	}
	p, s := repos.NewGorm(db, log)
	return Repos{Problems: p, Solutions: s}
}
