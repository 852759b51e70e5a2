package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/pythagon-backend/internal/jobs/runtime"
	"github.com/yungbote/pythagon-backend/internal/observability"
	"github.com/yungbote/pythagon-backend/internal/platform/logger"
)

type Worker struct {
	log         *logger.Logger
	queue       runtime.Queue
	registry    *runtime.Registry
	metrics     *observability.Metrics
	concurrency int
	wg          sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, queue runtime.Queue, registry *runtime.Registry, metrics *observability.Metrics, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		log:         baseLog.With("component", "JobWorker"),
		queue:       queue,
		registry:    registry,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// Start launches the pool. Loops exit when ctx is cancelled or the queue is
// closed and drained.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

// Wait blocks until every loop has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	jobs := w.queue.Jobs()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case job, ok := <-jobs:
			if !ok {
				w.log.Info("Job queue closed", "worker_id", workerID)
				return
			}
			w.metrics.SetQueueDepth(w.queue.Len())
			w.execute(ctx, workerID, job)
		}
	}
}

func (w *Worker) execute(ctx context.Context, workerID int, job runtime.Job) {
	start := time.Now()
	jc := runtime.NewContext(ctx, job, w.log.With("worker_id", workerID))

	h, ok := w.registry.Get(job.Type)
	if !ok {
		jc.Log.Warn("No handler registered for job_type")
		w.metrics.ObserveJob(job.Type, "unhandled", time.Since(start))
		return
	}

	outcome := "succeeded"
	func() {
		defer func() {
			if r := recover(); r != nil {
				jc.Log.Error("Job handler panic", "panic", r)
				outcome = "panicked"
				fail(h, jc, errFromRecover(r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			jc.Log.Warn("Job handler failed", "error", runErr)
			outcome = "failed"
			fail(h, jc, runErr)
		}
	}()
	w.metrics.ObserveJob(job.Type, outcome, time.Since(start))
}

// fail settles the job's entity. A panic while failing is logged and dropped.
func fail(h runtime.Handler, jc *runtime.Context, err error) {
	f, ok := h.(runtime.Failer)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			jc.Log.Error("Job fail hook panic", "panic", r)
		}
	}()
	f.Fail(jc, err)
}

func errFromRecover(v any) error { return &panicError{Val: v} }

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
