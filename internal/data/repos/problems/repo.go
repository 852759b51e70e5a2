package problems

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

// ProblemRepo owns every Problem. Returned values are copies; callers never
// share memory with the store.
type ProblemRepo interface {
	Insert(ctx context.Context, problems []*domain.Problem) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Problem, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Problem, error)
	// CompareAndTransition applies mutate only if the stored status equals
	// expected, and stores the result atomically. It fails with
	// domain.ErrStatusConflict when the status differs.
	CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.ProblemStatus, mutate func(*domain.Problem) error) (*domain.Problem, error)
	// Delete removes the Problem after guard accepts the current snapshot.
	Delete(ctx context.Context, id uuid.UUID, guard func(*domain.Problem) error) error
	// Count reports every stored Problem across owners. Operational use only.
	Count(ctx context.Context) (int64, error)
}

// SolutionRepo owns every Solution.
type SolutionRepo interface {
	Insert(ctx context.Context, solution *domain.Solution) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Solution, error)
	CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.SolutionStatus, mutate func(*domain.Solution) error) (*domain.Solution, error)
}
