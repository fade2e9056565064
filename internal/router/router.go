package router

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user"
)

// Deps are the wired components the router mounts.
type Deps struct {
	Logger    *zap.SugaredLogger
	Errors    *apierror.Writer
	Guard     *auth.Guard
	Users     *user.Handler
	Todos     *todo.Handler
	ClientURL string
}

// RegisterRoutes mounts every endpoint on a net/http ServeMux and wraps it
// with the middleware chain.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler { return d.Guard.Require(h) }

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		apierror.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/signup", d.Users.Signup)
	mux.HandleFunc("POST /api/auth/login", d.Users.Login)
	mux.HandleFunc("POST /api/auth/forgot-password", d.Users.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password", d.Users.ResetPassword)
	mux.Handle("GET /api/auth/me", protect(d.Users.Me))

	mux.Handle("GET /api/todos", protect(d.Todos.List))
	mux.Handle("POST /api/todos", protect(d.Todos.Create))
	mux.Handle("PATCH /api/todos/{id}", protect(d.Todos.Update))
	mux.Handle("DELETE /api/todos/{id}", protect(d.Todos.Delete))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		d.Errors.WriteError(w, r, apierror.NotFound("Route not found"))
	})

	return chain(mux, d)
}

// chain wraps h with the middleware stack, outermost last. Recovery sits
// inside logging so a panicking request is still logged with its 500.
func chain(h http.Handler, d Deps) http.Handler {
	h = CORSMiddleware(d.ClientURL)(h)
	h = SecurityHeadersMiddleware()(h)
	h = RecoverMiddleware(d.Errors)(h)
	h = LoggingMiddleware(d.Logger)(h)
	h = RequestIDMiddleware()(h)
	return h
}
