package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler runs every job of one Type.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Failer settles a handler's entity after Run errors or panics. Handlers
// whose entity would otherwise stay in a pending status implement it.
type Failer interface {
	Fail(ctx *Context, err error)
}

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds handlers. It stops at the first nil, unnamed or duplicate
// handler; handlers before it stay registered.
func (r *Registry) Register(hs ...Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range hs {
		if h == nil {
			return errors.New("register: nil handler")
		}
		jobType := h.Type()
		if jobType == "" {
			return fmt.Errorf("register %T: empty job type", h)
		}
		if _, dup := r.handlers[jobType]; dup {
			return fmt.Errorf("register %T: job type %q taken", h, jobType)
		}
		r.handlers[jobType] = h
	}
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types lists registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
