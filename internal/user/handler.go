package user

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user/entity"
)

const (
	msgResetGeneric   = "If the account exists a reset link will be sent"
	msgResetGenerated = "Reset link generated"
	msgPasswordReset  = "Password updated"
)

// Handler exposes HTTP endpoints for account operations.
type Handler struct {
	svc    *UserService
	errs   *apierror.Writer
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, errs *apierror.Writer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, errs: errs, logger: logger}
}

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=60"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required,min=10"`
	Password string `json:"password" validate:"required,min=8,max=100,password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	Token string            `json:"token"`
	User  entity.PublicUser `json:"user"`
}

type ForgotPasswordResponse struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"resetToken,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	User entity.PublicUser `json:"user"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.bind(w, r, &req) {
		return
	}
	sess, err := h.svc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			h.errs.WriteError(w, r, apierror.Conflict("Account already exists"))
		default:
			h.errs.WriteError(w, r, err)
		}
		return
	}
	h.logger.Infow("account created", "user_id", sess.User.ID)
	apierror.WriteJSON(w, http.StatusCreated, AuthResponse{Token: sess.Token, User: sess.User})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.bind(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCredentials):
			h.errs.WriteError(w, r, apierror.InvalidCredentials())
		default:
			h.errs.WriteError(w, r, err)
		}
		return
	}
	apierror.WriteJSON(w, http.StatusOK, AuthResponse{Token: sess.Token, User: sess.User})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}
	ticket, err := h.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	if ticket == nil {
		apierror.WriteJSON(w, http.StatusOK, ForgotPasswordResponse{Message: msgResetGeneric})
		return
	}
	exp := ticket.ExpiresAt
	apierror.WriteJSON(w, http.StatusOK, ForgotPasswordResponse{
		Message:    msgResetGenerated,
		ResetToken: ticket.Token,
		ExpiresAt:  &exp,
	})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, ErrResetTokenInvalid):
			h.errs.WriteError(w, r, apierror.ResetTokenInvalid())
		default:
			h.errs.WriteError(w, r, err)
		}
		return
	}
	apierror.WriteJSON(w, http.StatusOK, MessageResponse{Message: msgPasswordReset})
}

// Me must run behind auth.Guard.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.errs.WriteError(w, r, apierror.AuthenticationRequired())
		return
	}
	u, err := h.svc.CurrentUser(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			h.errs.WriteError(w, r, apierror.NotFound("Account not found"))
		default:
			h.errs.WriteError(w, r, err)
		}
		return
	}
	apierror.WriteJSON(w, http.StatusOK, UserResponse{User: *u})
}

// bind decodes, trims and validates a request body, writing the failure
// response itself when it returns false.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := apierror.DecodeJSON(r, dst); err != nil {
		h.errs.WriteError(w, r, err)
		return false
	}
	trim(dst)
	if err := apierror.Validate(dst); err != nil {
		h.errs.WriteError(w, r, err)
		return false
	}
	return true
}

func trim(dst any) {
	switch v := dst.(type) {
	case *SignupRequest:
		v.Name = strings.TrimSpace(v.Name)
		v.Email = strings.TrimSpace(v.Email)
	case *LoginRequest:
		v.Email = strings.TrimSpace(v.Email)
	case *ForgotPasswordRequest:
		v.Email = strings.TrimSpace(v.Email)
	case *ResetPasswordRequest:
		v.Token = strings.TrimSpace(v.Token)
	}
}
