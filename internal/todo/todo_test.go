package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/apierror"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/entity"
	todorepo "github.com/ovaphlow/pitchfork/service-todo-go/internal/todo/repo"
)

const testSecret = "test-secret-with-enough-length"

func newService() *TodoService {
	svc := NewTodoService(todorepo.NewMemoryRepo())
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var n int
	svc.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	svc.newID = func() string { return fmt.Sprintf("t%03d", n) }
	return svc
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func decode(res *http.Response, v any) error {
	return json.NewDecoder(res.Body).Decode(v)
}

func TestServiceListNewestFirst(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "first", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "alice", "second", strPtr("  notes  "))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "bob", "bob's", nil)
	require.NoError(t, err)

	todos, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, todos, 2)
	assert.Equal(t, "second", todos[0].Title)
	assert.Equal(t, "notes", *todos[0].Description)
	assert.Equal(t, "first", todos[1].Title)
	assert.False(t, todos[1].Completed)
}

func TestServiceCrossOwnerIsNotFound(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	td, err := svc.Create(ctx, "alice", "secret", nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "bob", td.ID, entity.Patch{Completed: boolPtr(true)})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "bob", td.ID), ErrNotFound)

	bobs, err := svc.List(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobs)

	alices, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alices, 1)
	assert.False(t, alices[0].Completed)
}

func TestServiceUpdatePartial(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	td, err := svc.Create(ctx, "alice", "title", strPtr("desc"))
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", td.ID, entity.Patch{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "title", got.Title)
	assert.Equal(t, "desc", *got.Description)
	assert.True(t, got.Completed)
	assert.True(t, got.UpdatedAt.After(td.UpdatedAt))

	got, err = svc.Update(ctx, "alice", td.ID, entity.Patch{Title: strPtr(" renamed ")})
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.True(t, got.Completed)
}

func TestServiceEmptyPatchLeavesTodoUntouched(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	td, err := svc.Create(ctx, "alice", "title", nil)
	require.NoError(t, err)

	got, err := svc.Update(ctx, "alice", td.ID, entity.Patch{})
	require.NoError(t, err)
	assert.Equal(t, td.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, "title", got.Title)

	_, err = svc.Update(ctx, "bob", td.ID, entity.Patch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	td, err := svc.Create(ctx, "alice", "title", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "alice", td.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "alice", td.ID), ErrNotFound)
}

func newHandler(t *testing.T) (http.Handler, func(string) string) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	iss := auth.NewTokenIssuer(testSecret, time.Hour)
	errs := apierror.NewWriter(logger, nil)
	h := NewHandler(newService(), errs, logger)
	guard := auth.NewGuard(iss, errs)

	mux := http.NewServeMux()
	mux.Handle("GET /todos", guard.Require(http.HandlerFunc(h.List)))
	mux.Handle("POST /todos", guard.Require(http.HandlerFunc(h.Create)))
	mux.Handle("PATCH /todos/{id}", guard.Require(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /todos/{id}", guard.Require(http.HandlerFunc(h.Delete)))

	bearer := func(owner string) string {
		token, _, err := iss.Issue(owner)
		require.NoError(t, err)
		return "Bearer " + token
	}
	return mux, bearer
}

func TestHandlerRequiresAuth(t *testing.T) {
	h, _ := newHandler(t)
	apitest.New().
		Handler(h).
		Get("/todos").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestHandlerCreateAndList(t *testing.T) {
	h, bearer := newHandler(t)
	alice := bearer("alice")

	apitest.New().
		Handler(h).
		Post("/todos").
		Header("Authorization", alice).
		JSON(`{"title":"  buy milk  "}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal(`$.todo.title`, "buy milk")).
		Assert(jsonpath.Equal(`$.todo.completed`, false)).
		Assert(jsonpath.NotPresent(`$.todo.description`)).
		Assert(jsonpath.NotPresent(`$.todo.ownerId`)).
		Assert(jsonpath.Present(`$.todo.createdAt`)).
		End()

	apitest.New().
		Handler(h).
		Get("/todos").
		Header("Authorization", alice).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len(`$.todos`, 1)).
		End()

	apitest.New().
		Handler(h).
		Get("/todos").
		Header("Authorization", bearer("bob")).
		Expect(t).
		Status(http.StatusOK).
		Body(`{"todos":[]}`).
		End()
}

func TestHandlerCreateValidation(t *testing.T) {
	h, bearer := newHandler(t)
	apitest.New().
		Handler(h).
		Post("/todos").
		Header("Authorization", bearer("alice")).
		JSON(`{"title":"   "}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal(`$.code`, "validation_failure")).
		Assert(jsonpath.Present(`$.details.fieldErrors.title`)).
		End()
}

func TestHandlerUpdateRejectsBlankTitle(t *testing.T) {
	h, bearer := newHandler(t)
	apitest.New().
		Handler(h).
		Patch("/todos/t001").
		Header("Authorization", bearer("alice")).
		JSON(`{"title":"  "}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Present(`$.details.fieldErrors.title`)).
		End()
}

func TestHandlerCrossOwnerAccessIs404(t *testing.T) {
	h, bearer := newHandler(t)
	alice, bob := bearer("alice"), bearer("bob")

	var id string
	apitest.New().
		Handler(h).
		Post("/todos").
		Header("Authorization", alice).
		JSON(`{"title":"private","description":"mine"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(func(res *http.Response, _ *http.Request) error {
			var body ItemResponse
			if err := decode(res, &body); err != nil {
				return err
			}
			id = body.Todo.ID
			return nil
		}).
		End()
	require.NotEmpty(t, id)

	apitest.New().
		Handler(h).
		Patch("/todos/"+id).
		Header("Authorization", bob).
		JSON(`{"completed":true}`).
		Expect(t).
		Status(http.StatusNotFound).
		Body(`{"code":"not_found","message":"Todo not found"}`).
		End()

	apitest.New().
		Handler(h).
		Delete("/todos/"+id).
		Header("Authorization", bob).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	apitest.New().
		Handler(h).
		Patch("/todos/"+id).
		Header("Authorization", alice).
		JSON(`{"completed":true}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal(`$.todo.completed`, true)).
		Assert(jsonpath.Equal(`$.todo.description`, "mine")).
		End()

	apitest.New().
		Handler(h).
		Delete("/todos/"+id).
		Header("Authorization", alice).
		Expect(t).
		Status(http.StatusNoContent).
		End()
}
