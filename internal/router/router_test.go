package router

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo"
	todorepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/repo"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/user/repo"
)

const clientURL = "http://localhost:5173"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop().Sugar()
	errs := apierror.NewWriter(logger, nil)
	iss := auth.NewTokenIssuer("router-test-secret-0123456789", time.Hour)

	users, err := user.NewUserService(userrepo.NewMemoryRepo(), user.BcryptHasher{Cost: bcrypt.MinCost}, iss, user.Options{
		ResetTTL: 30 * time.Minute,
		Delivery: user.DeliveryEcho,
	})
	require.NoError(t, err)

	return RegisterRoutes(Deps{
		Logger:    logger,
		Errors:    errs,
		Guard:     auth.NewGuard(iss, errs),
		Users:     user.NewHandler(users, errs, logger),
		Todos:     todo.NewHandler(todo.NewTodoService(todorepo.NewMemoryRepo()), errs, logger),
		ClientURL: clientURL,
	})
}

// captureString stores a top-level string field of the JSON response.
func captureString(field string, dst *string) func(*http.Response, *http.Request) error {
	return func(res *http.Response, _ *http.Request) error {
		var body map[string]any
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			return err
		}
		*dst, _ = body[field].(string)
		return nil
	}
}

func TestHealth(t *testing.T) {
	apitest.New().
		Handler(newTestRouter(t)).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"status":"ok"}`).
		Header("X-Content-Type-Options", "nosniff").
		HeaderPresent("X-Request-ID").
		End()
}

func TestUnknownRoute(t *testing.T) {
	apitest.New().
		Handler(newTestRouter(t)).
		Get("/api/nope").
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"code":"not_found","message":"Route not found"}`).
		End()
}

func TestRequestIDIsEchoed(t *testing.T) {
	apitest.New().
		Handler(newTestRouter(t)).
		Get("/health").
		Header("X-Request-ID", "req-123").
		Expect(t).
		Header("X-Request-ID", "req-123").
		End()
}

func TestCORSPreflight(t *testing.T) {
	apitest.New().
		Handler(newTestRouter(t)).
		Method(http.MethodOptions).
		URL("/api/todos").
		Header("Origin", clientURL).
		Header("Access-Control-Request-Method", http.MethodPost).
		Header("Access-Control-Request-Headers", "Authorization, Content-Type").
		Expect(t).
		Header("Access-Control-Allow-Origin", clientURL).
		HeaderNotPresent("Access-Control-Allow-Credentials").
		End()
}

func TestCORSRejectsOtherOrigin(t *testing.T) {
	apitest.New().
		Handler(newTestRouter(t)).
		Get("/health").
		Header("Origin", "https://evil.example").
		Expect(t).
		HeaderNotPresent("Access-Control-Allow-Origin").
		End()
}

func TestRecoverMiddleware(t *testing.T) {
	errs := apierror.NewWriter(zap.NewNop().Sugar(), nil)
	h := RecoverMiddleware(errs)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	apitest.New().
		Handler(h).
		Get("/").
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"code":"internal","message":"Internal server error"}`).
		End()
}

func TestPanickingRequestIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core).Sugar()
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}), Deps{Logger: logger, Errors: apierror.NewWriter(logger, nil), ClientURL: clientURL})

	apitest.New().
		Handler(h).
		Get("/api/todos").
		Expect(t).
		Status(http.StatusInternalServerError).
		End()

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusInternalServerError, entries[0].ContextMap()["status"])
	assert.Equal(t, "/api/todos", entries[0].ContextMap()["path"])
}

func TestCredentialLifecycleScenario(t *testing.T) {
	h := newTestRouter(t)

	var t1 string
	apitest.New().
		Handler(h).
		Post("/api/auth/signup").
		JSON(`{"name":"Ann","email":"a@x.com","password":"longenough1"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(captureString("token", &t1)).
		End()
	require.NotEmpty(t, t1)

	apitest.New().
		Handler(h).
		Get("/api/auth/me").
		Header("Authorization", "Bearer "+t1).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.user.email`, "a@x.com")).
		End()

	apitest.New().
		Handler(h).
		Post("/api/auth/login").
		JSON(`{"email":"a@x.com","password":"wrongpassword"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	var resetToken string
	apitest.New().
		Handler(h).
		Post("/api/auth/forgot-password").
		JSON(`{"email":"a@x.com"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present(`$.expiresAt`)).
		Assert(captureString("resetToken", &resetToken)).
		End()
	require.NotEmpty(t, resetToken)

	apitest.New().
		Handler(h).
		Post("/api/auth/reset-password").
		JSON(`{"token":"` + resetToken + `","password":"newpassword1"}`).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"message":"Password updated"}`).
		End()

	var t2 string
	apitest.New().
		Handler(h).
		Post("/api/auth/login").
		JSON(`{"email":"a@x.com","password":"newpassword1"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(captureString("token", &t2)).
		End()
	require.NotEmpty(t, t2)

	apitest.New().
		Handler(h).
		Post("/api/auth/reset-password").
		JSON(`{"token":"` + resetToken + `","password":"anotherpass1"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal(`$.code`, "reset_token_invalid")).
		End()
}

func TestTodoScopingAcrossPrincipals(t *testing.T) {
	h := newTestRouter(t)

	var alice, bob string
	apitest.New().Handler(h).
		Post("/api/auth/signup").
		JSON(`{"name":"Alice","email":"alice@x.com","password":"longenough1"}`).
		Expect(t).Status(http.StatusCreated).Assert(captureString("token", &alice)).End()
	apitest.New().Handler(h).
		Post("/api/auth/signup").
		JSON(`{"name":"Bob","email":"bob@x.com","password":"longenough1"}`).
		Expect(t).Status(http.StatusCreated).Assert(captureString("token", &bob)).End()

	var id string
	apitest.New().Handler(h).
		Post("/api/todos").
		Header("Authorization", "Bearer "+alice).
		JSON(`{"title":"alice only"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(func(res *http.Response, _ *http.Request) error {
			var body struct {
				Todo struct {
					ID string `json:"id"`
				} `json:"todo"`
			}
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				return err
			}
			id = body.Todo.ID
			return nil
		}).
		End()
	require.NotEmpty(t, id)

	apitest.New().Handler(h).
		Get("/api/todos").
		Header("Authorization", "Bearer "+bob).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"todos":[]}`).
		End()

	apitest.New().Handler(h).
		Patch("/api/todos/"+id).
		Header("Authorization", "Bearer "+bob).
		JSON(`{"title":"hijacked"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().Handler(h).
		Delete("/api/todos/"+id).
		Header("Authorization", "Bearer "+bob).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().Handler(h).
		Get("/api/todos").
		Header("Authorization", "Bearer "+alice).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.todos[0].title`, "alice only")).
		End()
}
