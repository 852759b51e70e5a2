package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/data/repos"
	"github.com/yungbote/pythagon-backend/internal/domain"
	"github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/modules/mathtext"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
	"github.com/yungbote/pythagon-backend/internal/realtime/bus"
)

const testOwner = "user-1"

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n<< >>\n%%EOF\n")

// pagePartitioner returns one unit per configured page text.
type pagePartitioner struct {
	pages []string
	err   error
	calls int32
}

func (p *pagePartitioner) Partition(_ context.Context, _ domain.Document) ([]domain.Unit, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]domain.Unit, len(p.pages))
	for i, text := range p.pages {
		out[i] = domain.Unit{Index: 99, MimeType: "text/plain", Text: text}
	}
	return out, nil
}

// stuckExtractor ignores its context and never returns until released.
type stuckExtractor struct{ release chan struct{} }

func (e stuckExtractor) Extract(context.Context, domain.Unit) (domain.Extraction, error) {
	<-e.release
	return domain.Extraction{Text: "late"}, nil
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, domain.Unit) (domain.Extraction, error) {
	return domain.Extraction{}, errors.New("ocr exploded")
}

type recordingArchive struct {
	docs []uuid.UUID
	err  error
}

func (a *recordingArchive) Archive(_ context.Context, _ string, documentID uuid.UUID, _ domain.Document) error {
	a.docs = append(a.docs, documentID)
	return a.err
}

type countingSolver struct {
	inner Solver
	calls int32
}

func (s *countingSolver) Solve(ctx context.Context, p domain.Problem) (domain.SolveResult, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.inner.Solve(ctx, p)
}

type stuckSolver struct{ release chan struct{} }

func (s stuckSolver) Solve(context.Context, domain.Problem) (domain.SolveResult, error) {
	<-s.release
	return domain.SolveResult{}, nil
}

// gatedSolver reports that it started and then waits for release or ctx.
type gatedSolver struct {
	started chan struct{}
	release chan struct{}
}

func newGatedSolver() *gatedSolver {
	return &gatedSolver{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (s *gatedSolver) Solve(ctx context.Context, p domain.Problem) (domain.SolveResult, error) {
	select {
	case s.started <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return mathtext.NewLinearSolver().Solve(ctx, p)
	case <-ctx.Done():
		return domain.SolveResult{}, ctx.Err()
	}
}

type failingSolver struct{}

func (failingSolver) Solve(context.Context, domain.Problem) (domain.SolveResult, error) {
	return domain.SolveResult{}, errors.New("no equation")
}

type harness struct {
	problems  repos.ProblemRepo
	solutions repos.SolutionRepo
	bus       *bus.MemoryBus
	notify    StatusNotifier
	queue     runtime.Queue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	problems, solutions := repos.NewMemory()
	b := bus.NewMemoryBus()
	q := runtime.NewMemoryQueue(64)
	t.Cleanup(q.Close)
	return &harness{
		problems:  problems,
		solutions: solutions,
		bus:       b,
		notify:    NewStatusNotifier(logger.Nop(), b, nil),
		queue:     q,
	}
}

func (h *harness) ingestion(part Partitioner, ext Extractor, cfg IngestionConfig) IngestionService {
	if ext == nil {
		ext = mathtext.NewExtractor()
	}
	return NewIngestionService(logger.Nop(), h.problems, part, ext, nil, h.queue, h.notify, cfg)
}

func (h *harness) solving(solver Solver, cfg SolvingConfig) SolvingService {
	if solver == nil {
		solver = mathtext.NewLinearSolver()
	}
	return NewSolvingService(logger.Nop(), h.problems, h.solutions, solver, h.queue, h.notify, cfg)
}

// completedProblem ingests a one-page document synchronously.
func (h *harness) completedProblem(t *testing.T, text string) *domain.Problem {
	t.Helper()
	svc := h.ingestion(&pagePartitioner{pages: []string{text}}, nil, IngestionConfig{})
	res, err := svc.Ingest(context.Background(), testOwner, domain.Document{Filename: "p.pdf", MimeType: domain.MimeTypePDF, Data: pdfBytes})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(res.Units) != 1 || res.Units[0].Status != domain.ProblemCompleted {
		t.Fatalf("expected one completed unit, got %+v", res.Units)
	}
	return res.Units[0]
}

// processingProblem inserts a Problem that never finishes extraction.
func (h *harness) processingProblem(t *testing.T) *domain.Problem {
	t.Helper()
	p := domain.NewProblem(testOwner, uuid.New(), 1, time.Now().UTC())
	if err := h.problems.Insert(context.Background(), []*domain.Problem{&p}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return &p
}

// drain runs every queued job of jobType through run.
func (h *harness) drain(t *testing.T, jobType string, run func(runtime.Job) error) int {
	t.Helper()
	n := 0
	for h.queue.Len() > 0 {
		job := <-h.queue.Jobs()
		if job.Type != jobType {
			t.Fatalf("job type: want=%q got=%q", jobType, job.Type)
		}
		if err := run(job); err != nil {
			t.Fatalf("run %s: %v", job.Type, err)
		}
		n++
	}
	return n
}

func (h *harness) transitions(kind, id, status string) int {
	n := 0
	for _, ev := range h.bus.Events() {
		if ev.Kind == kind && ev.ID == id && ev.Status == status {
			n++
		}
	}
	return n
}

func nopLog() *logger.Logger { return logger.Nop() }
