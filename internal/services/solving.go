package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/data/repos"
	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

// Solver derives an expression, ordered steps and an answer from a completed
// Problem.
type Solver interface {
	Solve(ctx context.Context, problem domain.Problem) (domain.SolveResult, error)
}

type SolvingConfig struct {
	Timeout time.Duration
	// AdvanceOnPoll runs the solver inside PollSolve instead of the worker
	// pool. At most one poll wins the transition.
	AdvanceOnPoll bool
}

type SolvingService interface {
	StartSolve(ctx context.Context, owner string, problemID uuid.UUID) (*domain.Solution, error)
	PollSolve(ctx context.Context, owner string, solutionID uuid.UUID) (*domain.Solution, error)
	// RunSolve settles one Solution. Called by the solution_solve job.
	RunSolve(ctx context.Context, solutionID uuid.UUID) error
	FailSolve(ctx context.Context, solutionID uuid.UUID, reason string) error
}

type solvingService struct {
	log       *logger.Logger
	problems  repos.ProblemRepo
	solutions repos.SolutionRepo
	solver    Solver
	queue     runtime.Queue
	notify    StatusNotifier
	cfg       SolvingConfig
	now       func() time.Time
}

func NewSolvingService(
	baseLog *logger.Logger,
	problems repos.ProblemRepo,
	solutions repos.SolutionRepo,
	solver Solver,
	queue runtime.Queue,
	notify StatusNotifier,
	cfg SolvingConfig,
) SolvingService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if queue == nil {
		cfg.AdvanceOnPoll = true
	}
	return &solvingService{
		log:       baseLog.With("service", "SolvingService"),
		problems:  problems,
		solutions: solutions,
		solver:    solver,
		queue:     queue,
		notify:    notify,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *solvingService) StartSolve(ctx context.Context, owner string, problemID uuid.UUID) (*domain.Solution, error) {
	p, err := s.problems.Get(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != owner {
		return nil, fmt.Errorf("problem %s: %w", problemID, domain.ErrNotFound)
	}
	if p.Status != domain.ProblemCompleted {
		return nil, fmt.Errorf("problem %s is %s: %w", problemID, p.Status, domain.ErrNotReady)
	}

	// Reserve the reference before the insert; DeleteProblem refuses while
	// it is held.
	if _, err := s.adjustSolutionCount(ctx, problemID, 1); err != nil {
		return nil, err
	}

	sol := domain.NewSolution(owner, problemID, s.now())
	if err := s.solutions.Insert(ctx, &sol); err != nil {
		if _, rerr := s.adjustSolutionCount(ctx, problemID, -1); rerr != nil {
			s.log.Error("release solution reference", "problem_id", problemID, "error", rerr)
		}
		return nil, fmt.Errorf("insert solution: %w", err)
	}
	s.notify.SolutionChanged(ctx, &sol)

	kv := append([]interface{}{"solution_id", sol.ID, "problem_id", problemID, "owner_id", owner}, ctxutil.LogFields(ctx)...)
	s.log.Info("solve started", kv...)

	if !s.cfg.AdvanceOnPoll {
		job := runtime.NewJob(runtime.JobTypeSolutionSolve, sol.ID, owner, nil)
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Warn("solve job not scheduled", append(kv, "error", err)...)
			if ferr := s.FailSolve(ctx, sol.ID, "solve could not be scheduled"); ferr != nil {
				s.log.Warn("fail solve", "solution_id", sol.ID, "error", ferr)
			}
		}
	}
	return &sol, nil
}

func (s *solvingService) adjustSolutionCount(ctx context.Context, problemID uuid.UUID, delta int) (*domain.Problem, error) {
	p, err := s.problems.CompareAndTransition(ctx, problemID, domain.ProblemCompleted, func(p *domain.Problem) error {
		p.SolutionCount += delta
		if p.SolutionCount < 0 {
			p.SolutionCount = 0
		}
		return nil
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil, fmt.Errorf("problem %s: %w", problemID, domain.ErrNotReady)
	}
	return p, err
}

func (s *solvingService) PollSolve(ctx context.Context, owner string, solutionID uuid.UUID) (*domain.Solution, error) {
	sol, err := s.getOwned(ctx, owner, solutionID)
	if err != nil {
		return nil, err
	}
	if !s.cfg.AdvanceOnPoll || sol.Status != domain.SolutionSolving {
		return sol, nil
	}
	// Detached: a caller hanging up must not settle the Solution.
	if err := s.RunSolve(ctxutil.Detach(ctx), solutionID); err != nil {
		return nil, err
	}
	return s.getOwned(ctx, owner, solutionID)
}

func (s *solvingService) getOwned(ctx context.Context, owner string, solutionID uuid.UUID) (*domain.Solution, error) {
	sol, err := s.solutions.Get(ctx, solutionID)
	if err != nil {
		return nil, err
	}
	if sol.OwnerID != owner {
		return nil, fmt.Errorf("solution %s: %w", solutionID, domain.ErrNotFound)
	}
	return sol, nil
}

func (s *solvingService) RunSolve(ctx context.Context, solutionID uuid.UUID) error {
	sol, err := s.solutions.Get(ctx, solutionID)
	if err != nil {
		return err
	}
	if sol.Status != domain.SolutionSolving {
		return nil
	}
	p, err := s.problems.Get(ctx, sol.ProblemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.FailSolve(ctx, solutionID, "problem no longer exists")
		}
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	res, err := withDeadline(runCtx, func(c context.Context) (domain.SolveResult, error) {
		return s.solver.Solve(c, *p)
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Cancelled rather than timed out: leave it solving.
			return ctx.Err()
		}
		reason := "solving failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "solving timed out"
		}
		s.log.Warn(reason, "solution_id", solutionID, "problem_id", p.ID, "error", err)
		return s.FailSolve(ctx, solutionID, reason)
	}

	done, err := s.solutions.CompareAndTransition(ctx, solutionID, domain.SolutionSolving, func(sol *domain.Solution) error {
		sol.Complete(res, s.now())
		return nil
	})
	if errors.Is(err, domain.ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.notify.SolutionChanged(ctx, done)
	return nil
}

func (s *solvingService) FailSolve(ctx context.Context, solutionID uuid.UUID, reason string) error {
	sol, err := s.solutions.CompareAndTransition(ctx, solutionID, domain.SolutionSolving, func(sol *domain.Solution) error {
		sol.Fail(reason, s.now())
		return nil
	})
	if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.notify.SolutionChanged(ctx, sol)
	return nil
}
