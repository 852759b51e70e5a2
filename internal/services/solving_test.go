package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/modules/mathtext"
	"github.com/yungbote/pythagon-backend/internal/realtime"
)

func TestStartSolveRequiresCompletedProblem(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(nil, SolvingConfig{})

	if _, err := svc.StartSolve(context.Background(), testOwner, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown problem: want ErrNotFound, got %v", err)
	}

	processing := h.processingProblem(t)
	if _, err := svc.StartSolve(context.Background(), testOwner, processing.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("processing problem: want ErrNotReady, got %v", err)
	}

	completed := h.completedProblem(t, "2x + 5 = 15")
	if _, err := svc.StartSolve(context.Background(), "someone-else", completed.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign owner: want ErrNotFound, got %v", err)
	}

	sol, err := svc.StartSolve(context.Background(), testOwner, completed.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}
	if sol.Status != domain.SolutionSolving {
		t.Fatalf("status: want=%q got=%q", domain.SolutionSolving, sol.Status)
	}
	if sol.ProblemID != completed.ID {
		t.Fatalf("problem id: want=%s got=%s", completed.ID, sol.ProblemID)
	}
	if sol.MathExpression != nil || sol.SolutionSteps != nil || sol.FinalAnswer != nil {
		t.Fatalf("solving Solution carries results: %+v", sol)
	}
	if n := h.queue.Len(); n != 1 {
		t.Fatalf("queued jobs: want=1 got=%d", n)
	}
}

func TestStartSolveOnFailedProblem(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ing := h.ingestion(&pagePartitioner{pages: []string{"x = 1"}}, failingExtractor{}, IngestionConfig{})
	res, err := ing.Ingest(context.Background(), testOwner, pdfDoc())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Units[0].Status != domain.ProblemFailed {
		t.Fatalf("status: want=%q got=%q", domain.ProblemFailed, res.Units[0].Status)
	}

	_, err = h.solving(nil, SolvingConfig{}).StartSolve(context.Background(), testOwner, res.Units[0].ID)
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("want ErrNotReady, got %v", err)
	}
}

func TestSolveThroughQueue(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(nil, SolvingConfig{})
	p := h.completedProblem(t, "Sample math problem text from page 1:\n2x + 5 = 15")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	polled, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if polled.Status != domain.SolutionSolving {
		t.Fatalf("before the worker: want=%q got=%q", domain.SolutionSolving, polled.Status)
	}

	ran := h.drain(t, runtime.JobTypeSolutionSolve, func(job runtime.Job) error {
		return svc.RunSolve(context.Background(), job.EntityID)
	})
	if ran != 1 {
		t.Fatalf("jobs run: want=1 got=%d", ran)
	}

	first, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if first.Status != domain.SolutionCompleted {
		t.Fatalf("status: want=%q got=%q (%s)", domain.SolutionCompleted, first.Status, first.Error)
	}
	if first.MathExpression == nil || *first.MathExpression != "2x + 5 = 15" {
		t.Fatalf("unexpected math expression: %v", first.MathExpression)
	}
	if first.FinalAnswer == nil || *first.FinalAnswer != "x = 5" {
		t.Fatalf("unexpected final answer: %v", first.FinalAnswer)
	}
	wantSteps := domain.SolutionSteps{
		{Name: "step1", Expression: "2x + 5 = 15"},
		{Name: "step2", Expression: "2x = 15 - 5"},
		{Name: "step3", Expression: "2x = 10"},
		{Name: "step4", Expression: "x = 10/2"},
		{Name: "step5", Expression: "x = 5"},
	}
	if !reflect.DeepEqual(first.SolutionSteps, wantSteps) {
		t.Fatalf("steps: want=%+v got=%+v", wantSteps, first.SolutionSteps)
	}

	second, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("repeat poll changed the Solution:\n%s\n%s", a, b)
	}
}

func TestPollSolveNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(nil, SolvingConfig{})
	p := h.completedProblem(t, "x + 1 = 2")
	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	if _, err := svc.PollSolve(context.Background(), testOwner, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown solution: want ErrNotFound, got %v", err)
	}
	if _, err := svc.PollSolve(context.Background(), "someone-else", sol.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign owner: want ErrNotFound, got %v", err)
	}
}

func TestAdvanceOnPollTransitionsOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	solver := &countingSolver{inner: mathtext.NewLinearSolver()}
	svc := h.solving(solver, SolvingConfig{AdvanceOnPoll: true})
	p := h.completedProblem(t, "3x = 9")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}
	if n := h.queue.Len(); n != 0 {
		t.Fatalf("advance-on-poll queued %d jobs", n)
	}

	const pollers = 16
	results := make([]*domain.Solution, pollers)
	errs := make([]error, pollers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < pollers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.PollSolve(context.Background(), testOwner, sol.ID)
		}()
	}
	close(start)
	wg.Wait()

	if n := h.transitions(realtime.KindSolution, sol.ID.String(), string(domain.SolutionCompleted)); n != 1 {
		t.Fatalf("completed transitions: want=1 got=%d", n)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
	}
	want, _ := json.Marshal(results[0])
	for i, r := range results {
		if r.Status != domain.SolutionCompleted {
			t.Fatalf("poll %d: want=%q got=%q", i, domain.SolutionCompleted, r.Status)
		}
		if got, _ := json.Marshal(r); string(got) != string(want) {
			t.Fatalf("poll %d disagrees:\n%s\n%s", i, want, got)
		}
	}
	if solver.calls < 1 {
		t.Fatalf("solver never ran")
	}
}

func TestAdvanceOnPollSurvivesCallerHangup(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	solver := newGatedSolver()
	svc := h.solving(solver, SolvingConfig{AdvanceOnPoll: true})
	p := h.completedProblem(t, "2x = 8")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.PollSolve(ctx, testOwner, sol.ID)
	}()

	select {
	case <-solver.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("solver never started")
	}
	cancel()
	close(solver.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("poll did not return")
	}

	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionCompleted {
		t.Fatalf("status: want=%q got=%q (%s)", domain.SolutionCompleted, got.Status, got.Error)
	}
	if got.FinalAnswer == nil || *got.FinalAnswer != "x = 4" {
		t.Fatalf("unexpected final answer: %v", got.FinalAnswer)
	}
	if n := h.transitions(realtime.KindSolution, sol.ID.String(), string(domain.SolutionFailed)); n != 0 {
		t.Fatalf("failed transitions: want=0 got=%d", n)
	}
}

func TestRunSolveCancelledLeavesSolving(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	solver := newGatedSolver()
	svc := h.solving(solver, SolvingConfig{})
	p := h.completedProblem(t, "x + 2 = 3")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.RunSolve(ctx, sol.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionSolving {
		t.Fatalf("status: want=%q got=%q (%s)", domain.SolutionSolving, got.Status, got.Error)
	}
}

func TestNilQueueForcesAdvanceOnPoll(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := NewSolvingService(nopLog(), h.problems, h.solutions, mathtext.NewLinearSolver(), nil, h.notify, SolvingConfig{})
	p := h.completedProblem(t, "x - 4 = 6")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}
	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionCompleted {
		t.Fatalf("status: want=%q got=%q", domain.SolutionCompleted, got.Status)
	}
	if got.FinalAnswer == nil || *got.FinalAnswer != "x = 10" {
		t.Fatalf("unexpected final answer: %v", got.FinalAnswer)
	}
}

func TestSolveTimeoutFailsSolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	svc := h.solving(stuckSolver{release: release}, SolvingConfig{Timeout: 50 * time.Millisecond, AdvanceOnPoll: true})
	p := h.completedProblem(t, "x = 1")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionFailed {
		t.Fatalf("status: want=%q got=%q", domain.SolutionFailed, got.Status)
	}
	if got.Error != "solving timed out" {
		t.Fatalf("error: want=%q got=%q", "solving timed out", got.Error)
	}
	if got.MathExpression != nil || got.SolutionSteps != nil || got.FinalAnswer != nil {
		t.Fatalf("failed Solution carries results: %+v", got)
	}
}

func TestSolverErrorFailsSolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(failingSolver{}, SolvingConfig{})
	p := h.completedProblem(t, "x = 1")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}
	if err := svc.RunSolve(context.Background(), sol.ID); err != nil {
		t.Fatalf("RunSolve: %v", err)
	}

	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionFailed || got.Error != "solving failed" {
		t.Fatalf("want failed/%q, got %s/%q", "solving failed", got.Status, got.Error)
	}

	// A settled Solution is never run again.
	if err := svc.RunSolve(context.Background(), sol.ID); err != nil {
		t.Fatalf("RunSolve on settled: %v", err)
	}
	if n := h.transitions(realtime.KindSolution, sol.ID.String(), string(domain.SolutionFailed)); n != 1 {
		t.Fatalf("failed transitions: want=1 got=%d", n)
	}
}

func TestStartSolveQueueFullFailsSolution(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.queue = runtime.NewMemoryQueue(1)
	t.Cleanup(h.queue.Close)
	if err := h.queue.Enqueue(context.Background(), runtime.NewJob(runtime.JobTypeSolutionSolve, uuid.New(), testOwner, nil)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	svc := h.solving(nil, SolvingConfig{})
	p := h.completedProblem(t, "x = 1")

	sol, err := svc.StartSolve(context.Background(), testOwner, p.ID)
	if err != nil {
		t.Fatalf("StartSolve: %v", err)
	}

	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionFailed || got.Error != "solve could not be scheduled" {
		t.Fatalf("want failed/%q, got %s/%q", "solve could not be scheduled", got.Status, got.Error)
	}
}

func TestRunSolveWithDeletedProblem(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(nil, SolvingConfig{})
	p := h.processingProblem(t)

	sol := domain.NewSolution(testOwner, p.ID, time.Now().UTC())
	if err := h.solutions.Insert(context.Background(), &sol); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := h.problems.Delete(context.Background(), p.ID, func(*domain.Problem) error { return nil }); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := svc.RunSolve(context.Background(), sol.ID); err != nil {
		t.Fatalf("RunSolve: %v", err)
	}
	got, err := svc.PollSolve(context.Background(), testOwner, sol.ID)
	if err != nil {
		t.Fatalf("PollSolve: %v", err)
	}
	if got.Status != domain.SolutionFailed || got.Error != "problem no longer exists" {
		t.Fatalf("want failed/%q, got %s/%q", "problem no longer exists", got.Status, got.Error)
	}
}

func TestSolutionCountTracksSolves(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	svc := h.solving(nil, SolvingConfig{})
	p := h.completedProblem(t, "x = 1")

	for i := 0; i < 3; i++ {
		if _, err := svc.StartSolve(context.Background(), testOwner, p.ID); err != nil {
			t.Fatalf("StartSolve %d: %v", i, err)
		}
	}
	got, err := h.problems.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SolutionCount != 3 {
		t.Fatalf("solution count: want=3 got=%d", got.SolutionCount)
	}
}
