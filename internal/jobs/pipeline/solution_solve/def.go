package solution_solve

import (
	"context"

	"github.com/google/uuid"

	jobrt "github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

// Solutions is the part of the solving service this job drives.
type Solutions interface {
	RunSolve(ctx context.Context, solutionID uuid.UUID) error
	FailSolve(ctx context.Context, solutionID uuid.UUID, reason string) error
}

type Pipeline struct {
	log       *logger.Logger
	solutions Solutions
}

func New(baseLog *logger.Logger, solutions Solutions) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", jobrt.JobTypeSolutionSolve),
		solutions: solutions,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobTypeSolutionSolve }
