package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/pythagon-backend/internal/platform/ctxutil"
)

var (
	ErrQueueClosed = errors.New("job queue closed")
	ErrQueueFull   = errors.New("job queue full")
)

// Queue hands jobs from request handlers to the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Jobs() <-chan Job
	Len() int
	Close()
}

type memoryQueue struct {
	mu     sync.RWMutex
	ch     chan Job
	closed bool
}

// NewMemoryQueue returns a bounded in-process queue. Enqueue never blocks:
// a full queue is reported as ErrQueueFull.
func NewMemoryQueue(capacity int) Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &memoryQueue{ch: make(chan Job, capacity)}
}

func (q *memoryQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Trace == nil {
		job.Trace = ctxutil.GetTraceData(ctxutil.Default(ctx))
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		return nil
	default:
		return fmt.Errorf("enqueue %s: %w", job.Type, ErrQueueFull)
	}
}

func (q *memoryQueue) Jobs() <-chan Job { return q.ch }

func (q *memoryQueue) Len() int { return len(q.ch) }

func (q *memoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
