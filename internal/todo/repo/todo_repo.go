package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/entity"
)

// ErrNotFound covers both a missing todo and one owned by someone else.
var ErrNotFound = errors.New("todo not found")

const todoColumns = `id, owner_id, title, description, completed, created_at, updated_at`

// TodoRepo provides data access for the todos table. Every query is scoped
// by owner_id.
type TodoRepo struct {
	db *sqlx.DB
}

func NewTodoRepo(db *sqlx.DB) *TodoRepo { return &TodoRepo{db: db} }

// List returns the owner's todos, newest first.
func (r *TodoRepo) List(ctx context.Context, ownerID string) ([]entity.Todo, error) {
	const q = `SELECT ` + todoColumns + ` FROM todos WHERE owner_id=$1 ORDER BY created_at DESC, id DESC`
	todos := []entity.Todo{}
	if err := r.db.SelectContext(ctx, &todos, q, ownerID); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

func (r *TodoRepo) Get(ctx context.Context, ownerID, id string) (*entity.Todo, error) {
	const q = `SELECT ` + todoColumns + ` FROM todos WHERE id=$1 AND owner_id=$2`
	var t entity.Todo
	if err := r.db.GetContext(ctx, &t, q, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get todo: %w", err)
	}
	return &t, nil
}

func (r *TodoRepo) Create(ctx context.Context, t *entity.Todo) error {
	const q = `INSERT INTO todos (id, owner_id, title, description, completed, created_at, updated_at)
		VALUES (:id, :owner_id, :title, :description, :completed, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, t); err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

// Update applies p to the owner's todo and returns the updated row.
func (r *TodoRepo) Update(ctx context.Context, ownerID, id string, p entity.Patch, now time.Time) (*entity.Todo, error) {
	const q = `UPDATE todos SET
			title=COALESCE($3, title),
			description=COALESCE($4, description),
			completed=COALESCE($5, completed),
			updated_at=$6
		WHERE id=$1 AND owner_id=$2
		RETURNING ` + todoColumns
	var t entity.Todo
	if err := r.db.GetContext(ctx, &t, q, id, ownerID, p.Title, p.Description, p.Completed, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return &t, nil
}

func (r *TodoRepo) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id=$1 AND owner_id=$2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
