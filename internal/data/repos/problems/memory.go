package problems

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/pythagon-backend/internal/domain"
)

const shardCount = 16

type memShard[T any] struct {
	mu    sync.RWMutex
	items map[uuid.UUID]T
}

// memTable is a map sharded by id. Every mutation replaces the stored value
// under the shard write lock, so readers observe either the old or the new
// value and never a partial update.
type memTable[T any] struct {
	shards [shardCount]*memShard[T]
	clone  func(T) T
}

func newMemTable[T any](clone func(T) T) *memTable[T] {
	t := &memTable[T]{clone: clone}
	for i := range t.shards {
		t.shards[i] = &memShard[T]{items: make(map[uuid.UUID]T)}
	}
	return t
}

func (t *memTable[T]) shard(id uuid.UUID) *memShard[T] {
	return t.shards[int(id[15])%shardCount]
}

func (t *memTable[T]) insert(id uuid.UUID, v T) error {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; exists {
		return fmt.Errorf("id %s already stored: %w", id, domain.ErrConflict)
	}
	s.items[id] = t.clone(v)
	return nil
}

func (t *memTable[T]) get(id uuid.UUID) (T, bool) {
	s := t.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return v, false
	}
	return t.clone(v), true
}

func (t *memTable[T]) update(id uuid.UUID, fn func(cur T) (T, error)) (T, error) {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	cur, ok := s.items[id]
	if !ok {
		return zero, domain.ErrNotFound
	}
	next, err := fn(t.clone(cur))
	if err != nil {
		return zero, err
	}
	s.items[id] = next
	return t.clone(next), nil
}

func (t *memTable[T]) remove(id uuid.UUID, guard func(T) error) error {
	s := t.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if guard != nil {
		if err := guard(t.clone(cur)); err != nil {
			return err
		}
	}
	delete(s.items, id)
	return nil
}

func (t *memTable[T]) scan(fn func(T)) {
	for _, s := range t.shards {
		s.mu.RLock()
		for _, v := range s.items {
			fn(t.clone(v))
		}
		s.mu.RUnlock()
	}
}

type memoryProblemRepo struct {
	table *memTable[domain.Problem]
}

func NewMemoryProblemRepo() ProblemRepo {
	return &memoryProblemRepo{table: newMemTable(domain.Problem.Clone)}
}

func (r *memoryProblemRepo) Insert(ctx context.Context, problems []*domain.Problem) error {
	for _, p := range problems {
		if p == nil {
			continue
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if err := r.table.insert(p.ID, *p); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryProblemRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	p, ok := r.table.get(id)
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (r *memoryProblemRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Problem, error) {
	out := []*domain.Problem{}
	r.table.scan(func(p domain.Problem) {
		if p.DocumentID == documentID {
			p := p
			out = append(out, &p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out, nil
}

func (r *memoryProblemRepo) CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.ProblemStatus, mutate func(*domain.Problem) error) (*domain.Problem, error) {
	next, err := r.table.update(id, func(cur domain.Problem) (domain.Problem, error) {
		if cur.Status != expected {
			return cur, fmt.Errorf("problem %s is %s, expected %s: %w", id, cur.Status, expected, domain.ErrStatusConflict)
		}
		if err := mutate(&cur); err != nil {
			return cur, err
		}
		if err := cur.Validate(); err != nil {
			return cur, err
		}
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &next, nil
}

func (r *memoryProblemRepo) Delete(ctx context.Context, id uuid.UUID, guard func(*domain.Problem) error) error {
	err := r.table.remove(id, func(p domain.Problem) error {
		if guard == nil {
			return nil
		}
		return guard(&p)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("problem %s: %w", id, domain.ErrNotFound)
	}
	return err
}

func (r *memoryProblemRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	r.table.scan(func(domain.Problem) { n++ })
	return n, nil
}

type memorySolutionRepo struct {
	table *memTable[domain.Solution]
}

func NewMemorySolutionRepo() SolutionRepo {
	return &memorySolutionRepo{table: newMemTable(domain.Solution.Clone)}
}

func (r *memorySolutionRepo) Insert(ctx context.Context, s *domain.Solution) error {
	if s == nil {
		return fmt.Errorf("nil solution: %w", domain.ErrInvalidArgument)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	return r.table.insert(s.ID, *s)
}

func (r *memorySolutionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Solution, error) {
	s, ok := r.table.get(id)
	if !ok {
		return nil, fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
	}
	return &s, nil
}

func (r *memorySolutionRepo) CompareAndTransition(ctx context.Context, id uuid.UUID, expected domain.SolutionStatus, mutate func(*domain.Solution) error) (*domain.Solution, error) {
	next, err := r.table.update(id, func(cur domain.Solution) (domain.Solution, error) {
		if cur.Status != expected {
			return cur, fmt.Errorf("solution %s is %s, expected %s: %w", id, cur.Status, expected, domain.ErrStatusConflict)
		}
		if err := mutate(&cur); err != nil {
			return cur, err
		}
		if err := cur.Validate(); err != nil {
			return cur, err
		}
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("solution %s: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return &next, nil
}
