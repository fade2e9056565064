package todo

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/entity"
)

// Handler exposes the todo endpoints. Every route must sit behind auth.Guard.
type Handler struct {
	svc    *TodoService
	errs   *apierror.Writer
	logger *zap.SugaredLogger
}

func NewHandler(svc *TodoService, errs *apierror.Writer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, errs: errs, logger: logger}
}

type CreateRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

type UpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Completed   *bool   `json:"completed"`
}

type ListResponse struct {
	Todos []entity.Todo `json:"todos"`
}

type ItemResponse struct {
	Todo *entity.Todo `json:"todo"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principal(w, r)
	if !ok {
		return
	}
	todos, err := h.svc.List(r.Context(), owner)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, ListResponse{Todos: todos})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := apierror.DecodeJSON(r, &req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = trimPtr(req.Description)
	if err := apierror.Validate(&req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	t, err := h.svc.Create(r.Context(), owner, req.Title, req.Description)
	if err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	h.logger.Debugw("todo created", "todo_id", t.ID, "owner_id", owner)
	apierror.WriteJSON(w, http.StatusCreated, ItemResponse{Todo: t})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := apierror.DecodeJSON(r, &req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	req.Title = trimPtr(req.Title)
	req.Description = trimPtr(req.Description)
	if req.Title != nil && *req.Title == "" {
		h.errs.WriteError(w, r, apierror.Validation(apierror.ValidationDetails{
			FormErrors:  []string{},
			FieldErrors: apierror.FieldErrors{"title": {"Must contain at least 1 character(s)"}},
		}))
		return
	}
	if err := apierror.Validate(&req); err != nil {
		h.errs.WriteError(w, r, err)
		return
	}
	t, err := h.svc.Update(r.Context(), owner, r.PathValue("id"), entity.Patch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, ItemResponse{Todo: t})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), owner, r.PathValue("id")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.errs.WriteError(w, r, apierror.AuthenticationRequired())
	}
	return id, ok
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		h.errs.WriteError(w, r, apierror.NotFound("Todo not found"))
		return
	}
	h.errs.WriteError(w, r, err)
}
