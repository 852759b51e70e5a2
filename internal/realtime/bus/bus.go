package bus

import (
	"context"
	"sync"

	"github.com/yungbote/pythagon-backend/internal/realtime"
)

type Bus interface {
	Publish(ctx context.Context, ev realtime.StatusEvent) error
	Close() error
}

type nopBus struct{}

// NewNopBus drops every event. Used when REDIS_ADDR is unset.
func NewNopBus() Bus { return nopBus{} }

func (nopBus) Publish(context.Context, realtime.StatusEvent) error { return nil }
func (nopBus) Close() error { return nil }

// MemoryBus records published events in order. Tests use it to observe
// transitions.
type MemoryBus struct {
	mu     sync.Mutex
	events []realtime.StatusEvent
}

func NewMemoryBus() *MemoryBus { return &MemoryBus{} }

func (b *MemoryBus) Publish(_ context.Context, ev realtime.StatusEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *MemoryBus) Close() error { return nil }

func (b *MemoryBus) Events() []realtime.StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]realtime.StatusEvent, len(b.events))
	copy(out, b.events)
	return out
}
