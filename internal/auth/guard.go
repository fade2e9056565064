package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
)

// Verifier resolves a bearer token to a principal id.
type Verifier interface {
	Verify(token string) (string, error)
}

// ErrorWriter renders a rejected request.
type ErrorWriter interface {
	WriteError(w http.ResponseWriter, r *http.Request, err error)
}

// Guard rejects requests without a valid bearer token before they reach
// the wrapped handler.
type Guard struct {
	verifier Verifier
	errs     ErrorWriter
}

func NewGuard(v Verifier, errs ErrorWriter) *Guard {
	return &Guard{verifier: v, errs: errs}
}

func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r.Header.Get("Authorization"))
		if !ok {
			g.errs.WriteError(w, r, apierror.AuthenticationRequired())
			return
		}
		id, err := g.verifier.Verify(token)
		if err != nil {
			g.errs.WriteError(w, r, apierror.InvalidToken())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), id)))
	})
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

type principalKey struct{}

// WithPrincipal attaches the authenticated principal id to ctx.
func WithPrincipal(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, principalKey{}, id)
}

// PrincipalFrom returns the principal id attached by the guard.
func PrincipalFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok && id != ""
}
