package unit_extract

import (
	"fmt"

	"github.com/yungbote/pythagon-backend/internal/domain"
	jobrt "github.com/yungbote/pythagon-backend/internal/jobs/runtime"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	problemID, err := jc.EntityID()
	if err != nil {
		return err
	}
	unit, ok := jc.Job.Payload.(domain.Unit)
	if !ok {
		return fmt.Errorf("unit_extract payload: want domain.Unit, got %T", jc.Job.Payload)
	}
	jc.Log.Debug("extracting unit", "problem_id", problemID, "page", unit.Index)
	return p.extractions.RunExtraction(jc.Ctx, problemID, unit)
}

// Fail settles the Problem when Run errors or panics.
func (p *Pipeline) Fail(jc *jobrt.Context, cause error) {
	problemID, err := jc.EntityID()
	if err != nil {
		return
	}
	jc.Log.Warn("unit_extract failed", "problem_id", problemID, "error", cause)
	if err := p.extractions.FailExtraction(jc.Ctx, problemID, "extraction failed"); err != nil {
		jc.Log.Error("could not record extraction failure", "problem_id", problemID, "error", err)
	}
}
