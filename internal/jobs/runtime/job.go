package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
)

const (
	JobTypeUnitExtract   = "unit_extract"
	JobTypeSolutionSolve = "solution_solve"
)

// Job is one unit of background work. EntityID names the Problem or Solution
// the job settles; Payload carries inputs that are not stored (unit bytes).
type Job struct {
	ID         uuid.UUID
	Type       string
	EntityID   uuid.UUID
	OwnerID    string
	Payload    any
	Trace      *ctxutil.TraceData
	EnqueuedAt time.Time
}

func NewJob(jobType string, entityID uuid.UUID, owner string, payload any) Job {
	return Job{
		ID:         uuid.New(),
		Type:       jobType,
		EntityID:   entityID,
		OwnerID:    owner,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}
