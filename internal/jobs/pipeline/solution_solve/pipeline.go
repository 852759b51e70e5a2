package solution_solve

import (
	jobrt "github.com/yungbote/pythagon-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	solutionID, err := jc.EntityID()
	if err != nil {
		return err
	}
	jc.Log.Debug("solving", "solution_id", solutionID)
	return p.solutions.RunSolve(jc.Ctx, solutionID)
}

// Fail settles the Solution when Run errors or panics.
func (p *Pipeline) Fail(jc *jobrt.Context, cause error) {
	solutionID, err := jc.EntityID()
	if err != nil {
		return
	}
	jc.Log.Warn("solution_solve failed", "solution_id", solutionID, "error", cause)
	if err := p.solutions.FailSolve(jc.Ctx, solutionID, "solving failed"); err != nil {
		jc.Log.Error("could not record solve failure", "solution_id", solutionID, "error", err)
	}
}
