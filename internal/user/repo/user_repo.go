package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, password_algo,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts a new user. The email column is CITEXT so uniqueness is
// case-insensitive.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, name, email, password_hash, password_algo, created_at, updated_at)
		VALUES (:id, :name, :email, :password_hash, :password_algo, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, q, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByEmail returns the user with the given email, ignoring case.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

// GetByID fetches a full user row.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

// GetByResetTokenHash finds the user holding hash as an unexpired reset token.
func (r *UserRepo) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users
		WHERE reset_token_hash=$1 AND reset_token_expires_at > $2`, hash, now)
}

func (r *UserRepo) getOne(ctx context.Context, q string, args ...any) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

// SetResetToken stores a reset token hash and expiry, replacing any
// outstanding one.
func (r *UserRepo) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	const q = `UPDATE users SET reset_token_hash=$2, reset_token_expires_at=$3, updated_at=NOW() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemResetToken replaces the password of the user holding hash as an
// unexpired reset token and clears the token in the same statement. It
// returns the user id, or ErrNotFound when no row matched. Of two concurrent
// calls with the same hash at most one matches.
func (r *UserRepo) RedeemResetToken(ctx context.Context, hash, passwordHash, algo string, now time.Time) (string, error) {
	const q = `UPDATE users
		SET password_hash=$2, password_algo=$3, reset_token_hash=NULL, reset_token_expires_at=NULL, updated_at=$4
		WHERE reset_token_hash=$1 AND reset_token_expires_at > $4
		RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, q, hash, passwordHash, algo, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redeem reset token: %w", err)
	}
	return id, nil
}
