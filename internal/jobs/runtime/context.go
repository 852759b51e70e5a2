package runtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

/*
Context is the execution handle for a single job run.
  - Ctx: cancelled when the worker pool shuts down; carries the trace data of
    the request that scheduled the job.
  - Job: the job being executed.
  - Log: logger scoped to the job.
*/
type Context struct {
	Ctx context.Context
	Job Job
	Log *logger.Logger
}

func NewContext(ctx context.Context, job Job, log *logger.Logger) *Context {
	ctx = ctxutil.Default(ctx)
	if job.Trace != nil {
		ctx = ctxutil.WithTraceData(ctx, job.Trace)
	}
	if log == nil {
		log = logger.Nop()
	}
	kv := []interface{}{"job_id", job.ID, "job_type", job.Type, "entity_id", job.EntityID}
	kv = append(kv, ctxutil.LogFields(ctx)...)
	return &Context{Ctx: ctx, Job: job, Log: log.With(kv...)}
}

// EntityID returns the job's target or an error when it was never set.
func (c *Context) EntityID() (uuid.UUID, error) {
	if c == nil || c.Job.EntityID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("job has no entity id")
	}
	return c.Job.EntityID, nil
}
