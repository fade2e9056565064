package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

// MemoryRepo is an in-process user store with the same semantics as
// UserRepo. It backs tests and the local demo mode.
type MemoryRepo struct {
	mu      sync.Mutex
	byID    map[string]*entity.User
	byEmail map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]*entity.User{}, byEmail: map[string]string{}}
}

func (r *MemoryRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := r.byEmail[key]; ok {
		return ErrDuplicateEmail
	}
	cp := *u
	r.byID[u.ID] = &cp
	r.byEmail[key] = u.ID
	return nil
}

func (r *MemoryRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.copyOf(id)
}

func (r *MemoryRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyOf(id)
}

func (r *MemoryRepo) GetByResetTokenHash(_ context.Context, hash string, now time.Time) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u := r.findByResetHash(hash, now); u != nil {
		return r.copyOf(u.ID)
	}
	return nil, ErrNotFound
}

func (r *MemoryRepo) SetResetToken(_ context.Context, id, hash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.ResetTokenHash = &hash
	u.ResetTokenExpiresAt = &expiresAt
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepo) RedeemResetToken(_ context.Context, hash, passwordHash, algo string, now time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.findByResetHash(hash, now)
	if u == nil {
		return "", ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.PasswordAlgo = algo
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
	u.UpdatedAt = now
	return u.ID, nil
}

// findByResetHash expects r.mu to be held.
func (r *MemoryRepo) findByResetHash(hash string, now time.Time) *entity.User {
	for _, u := range r.byID {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash && u.HasActiveResetToken(now) {
			return u
		}
	}
	return nil
}

// copyOf expects r.mu to be held.
func (r *MemoryRepo) copyOf(id string) (*entity.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	if u.ResetTokenHash != nil {
		h := *u.ResetTokenHash
		cp.ResetTokenHash = &h
	}
	if u.ResetTokenExpiresAt != nil {
		t := *u.ResetTokenExpiresAt
		cp.ResetTokenExpiresAt = &t
	}
	return &cp, nil
}
