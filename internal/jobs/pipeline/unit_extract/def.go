package unit_extract

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
	jobrt "github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

// Extractions is the part of the ingestion service this job drives.
type Extractions interface {
	RunExtraction(ctx context.Context, problemID uuid.UUID, unit domain.Unit) error
	FailExtraction(ctx context.Context, problemID uuid.UUID, reason string) error
}

type Pipeline struct {
	log         *logger.Logger
	extractions Extractions
}

func New(baseLog *logger.Logger, extractions Extractions) *Pipeline {
	return &Pipeline{
		log:         baseLog.With("job", jobrt.JobTypeUnitExtract),
		extractions: extractions,
	}
}

func (p *Pipeline) Type() string { return jobrt.JobTypeUnitExtract }
