package todo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/entity"
	todorepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

var ErrNotFound = errors.New("todo not found")

// Store is the todo persistence the service depends on.
type Store interface {
	List(ctx context.Context, ownerID string) ([]entity.Todo, error)
	Get(ctx context.Context, ownerID, id string) (*entity.Todo, error)
	Create(ctx context.Context, t *entity.Todo) error
	Update(ctx context.Context, ownerID, id string, p entity.Patch, now time.Time) (*entity.Todo, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// TodoService implements per-owner todo CRUD.
type TodoService struct {
	store Store
	now   func() time.Time
	newID func() string
}

func NewTodoService(store Store) *TodoService {
	return &TodoService{store: store, now: time.Now, newID: utilities.NewSnowflakeID}
}

func (s *TodoService) List(ctx context.Context, ownerID string) ([]entity.Todo, error) {
	return s.store.List(ctx, ownerID)
}

func (s *TodoService) Create(ctx context.Context, ownerID, title string, description *string) (*entity.Todo, error) {
	now := s.now().UTC()
	t := &entity.Todo{
		ID:          s.newID(),
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(title),
		Description: trimPtr(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update changes the caller's todo. A todo owned by someone else is
// reported as ErrNotFound. An empty patch returns the todo unchanged.
func (s *TodoService) Update(ctx context.Context, ownerID, id string, p entity.Patch) (*entity.Todo, error) {
	p.Title = trimPtr(p.Title)
	p.Description = trimPtr(p.Description)
	var (
		t   *entity.Todo
		err error
	)
	if p.Empty() {
		t, err = s.store.Get(ctx, ownerID, id)
	} else {
		t, err = s.store.Update(ctx, ownerID, id, p, s.now().UTC())
	}
	if err != nil {
		if errors.Is(err, todorepo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *TodoService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, todorepo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
