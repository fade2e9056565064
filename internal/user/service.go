package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

// Store is the credential store the service depends on.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id string) (*entity.User, error)
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	RedeemResetToken(ctx context.Context, hash, passwordHash, algo string, now time.Time) (string, error)
}

// TokenIssuer mints bearer session tokens.
type TokenIssuer interface {
	Issue(principalID string) (string, time.Time, error)
}

// ResetNotifier delivers a raw reset secret out of band.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, u *entity.User, ticket ResetTicket) error
}

// Delivery selects how a reset secret reaches the requester.
type Delivery string

const (
	// DeliveryEcho returns the secret in the HTTP response. Development only.
	DeliveryEcho Delivery = "echo"
	// DeliveryNotifier hands the secret to a ResetNotifier and never returns it.
	DeliveryNotifier Delivery = "log"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("account already exists")
	ErrBadCredentials    = errors.New("invalid credentials")
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")
)

type Options struct {
	ResetTTL time.Duration
	Delivery Delivery
	Notifier ResetNotifier
	Logger   *zap.SugaredLogger
	Now      func() time.Time
	NewID    func() string
}

// UserService orchestrates signup, login and password reset flows.
type UserService struct {
	store  Store
	hasher PasswordHasher
	tokens TokenIssuer
	opts   Options

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(store Store, hasher PasswordHasher, tokens TokenIssuer, opts Options) (*UserService, error) {
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 30 * time.Minute
	}
	if opts.Delivery == "" {
		opts.Delivery = DeliveryEcho
	}
	if opts.Delivery == DeliveryNotifier && opts.Notifier == nil {
		return nil, errors.New("reset delivery mode log requires a notifier")
	}
	if opts.Delivery != DeliveryEcho && opts.Delivery != DeliveryNotifier {
		return nil, fmt.Errorf("unknown reset delivery %q", opts.Delivery)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = utilities.NewSnowflakeID
	}
	return &UserService{store: store, hasher: hasher, tokens: tokens, opts: opts}, nil
}

// Session is the result of a successful signup or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      entity.PublicUser
}

// ResetTicket carries a raw reset secret to its delivery channel.
type ResetTicket struct {
	Token     string
	ExpiresAt time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account and returns a session for it.
func (s *UserService) Signup(ctx context.Context, name, email, password string) (*Session, error) {
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	now := s.opts.Now().UTC()
	u := &entity.User{
		ID:           s.opts.NewID(),
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		PasswordAlgo: algo,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.session(u)
}

// Login checks a password and returns a fresh session. Unknown email and
// wrong password are both ErrBadCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			// spend the same bcrypt work as a real check
			_, _ = s.hasher.Verify(s.dummy(), password)
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrBadCredentials
	}
	return s.session(u)
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _, _ = s.hasher.Hash("dummy-password-for-timing")
	})
	return s.dummyHash
}

func (s *UserService) session(u *entity.User) (*Session, error) {
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp, User: u.Public()}, nil
}

// ForgotPassword issues a reset token for the account with email. It returns
// a ticket only in echo mode and only for an existing account; otherwise the
// result is nil so callers answer every request the same way. A failed
// notifier delivery is logged, not returned.
func (s *UserService) ForgotPassword(ctx context.Context, email string) (*ResetTicket, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rt, err := auth.NewResetToken(s.opts.Now().UTC(), s.opts.ResetTTL)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetResetToken(ctx, u.ID, rt.Hash, rt.ExpiresAt); err != nil {
		return nil, err
	}
	ticket := ResetTicket{Token: rt.Raw, ExpiresAt: rt.ExpiresAt}
	if s.opts.Delivery == DeliveryNotifier {
		if err := s.opts.Notifier.NotifyReset(ctx, u, ticket); err != nil {
			s.opts.Logger.Errorw("reset token delivery failed", "user_id", u.ID, "err", err)
		}
		return nil, nil
	}
	return &ticket, nil
}

// ResetPassword redeems a raw reset secret and sets a new password. Unknown,
// expired and already used secrets all yield ErrResetTokenInvalid.
func (s *UserService) ResetPassword(ctx context.Context, rawToken, password string) error {
	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	_, err = s.store.RedeemResetToken(ctx, auth.HashResetToken(rawToken), hash, algo, s.opts.Now().UTC())
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	return nil
}

// CurrentUser returns the public profile of the authenticated principal.
func (s *UserService) CurrentUser(ctx context.Context, id string) (*entity.PublicUser, error) {
	u, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	pub := u.Public()
	return &pub, nil
}
