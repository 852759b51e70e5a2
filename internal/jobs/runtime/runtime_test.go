package runtime

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
)

type stubHandler struct{ t string }

func (h stubHandler) Type() string { return h.t }
func (h stubHandler) Run(ctx *Context) error { return nil }

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if err := r.Register(stubHandler{t: JobTypeSolutionSolve}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for name, h := range map[string]Handler{
		"duplicate": stubHandler{t: JobTypeSolutionSolve},
		"no type":   stubHandler{},
		"nil":       nil,
	} {
		if err := r.Register(h); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}

	if _, ok := r.Get(JobTypeSolutionSolve); !ok {
		t.Fatalf("registered handler not found")
	}
	if _, ok := r.Get(JobTypeUnitExtract); ok {
		t.Fatalf("unregistered handler found")
	}

	if err := r.Register(stubHandler{t: JobTypeUnitExtract}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got, want := r.Types(), []string{JobTypeSolutionSolve, JobTypeUnitExtract}; !reflect.DeepEqual(got, want) {
		t.Fatalf("types: want=%q got=%q", want, got)
	}
}

func TestMemoryQueue(t *testing.T) {
	t.Parallel()
	q := NewMemoryQueue(1)
	ctx := ctxutil.WithTraceData(context.Background(), &ctxutil.TraceData{TraceID: "t-1"})

	if err := q.Enqueue(ctx, NewJob(JobTypeSolutionSolve, uuid.New(), "o", nil)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if n := q.Len(); n != 1 {
		t.Fatalf("len: want=1 got=%d", n)
	}
	if err := q.Enqueue(ctx, NewJob(JobTypeSolutionSolve, uuid.New(), "o", nil)); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}

	job := <-q.Jobs()
	if job.Trace == nil || job.Trace.TraceID != "t-1" {
		t.Fatalf("trace not carried: %+v", job.Trace)
	}

	q.Close()
	q.Close()
	if err := q.Enqueue(ctx, NewJob(JobTypeSolutionSolve, uuid.New(), "o", nil)); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("want ErrQueueClosed, got %v", err)
	}
	if _, open := <-q.Jobs(); open {
		t.Fatalf("jobs channel still open after Close")
	}
}

func TestContextCarriesTrace(t *testing.T) {
	t.Parallel()
	job := NewJob(JobTypeUnitExtract, uuid.New(), "o", nil)
	job.Trace = &ctxutil.TraceData{RequestID: "r-1"}
	jc := NewContext(context.Background(), job, nil)
	td := ctxutil.GetTraceData(jc.Ctx)
	if td == nil || td.RequestID != "r-1" {
		t.Fatalf("trace data: %+v", td)
	}

	id, err := jc.EntityID()
	if err != nil {
		t.Fatalf("EntityID: %v", err)
	}
	if id != job.EntityID {
		t.Fatalf("entity: want=%s got=%s", job.EntityID, id)
	}

	if _, err := NewContext(context.Background(), Job{}, nil).EntityID(); err == nil {
		t.Fatalf("expected an error for a nil entity")
	}
}
