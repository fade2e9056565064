package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/entity"
)

// MemoryRepo is an in-process todo store with the same owner scoping as
// TodoRepo.
type MemoryRepo struct {
	mu    sync.RWMutex
	todos map[string]entity.Todo
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{todos: map[string]entity.Todo{}}
}

func (r *MemoryRepo) List(_ context.Context, ownerID string) ([]entity.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []entity.Todo{}
	for _, t := range r.todos {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, ownerID, id string) (*entity.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepo) Create(_ context.Context, t *entity.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.todos[t.ID] = *t
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, ownerID, id string, p entity.Patch, now time.Time) (*entity.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	p.Apply(&t)
	t.UpdatedAt = now
	r.todos[id] = t
	return &t, nil
}

func (r *MemoryRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.todos, id)
	return nil
}
