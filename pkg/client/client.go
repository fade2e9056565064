// Package client is a Go client for the todo service. It caches the bearer
// session in a SessionStore, attaches it to every request and drops it when
// the server answers 401 for it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// IsAPIError reports whether err carries a service error response.
func IsAPIError(err error) bool {
	var e *APIError
	return errors.As(err, &e)
}

// IsUnauthorized reports whether err is a 401 from the service.
func IsUnauthorized(err error) bool {
	var e *APIError
	return errors.As(err, &e) && e.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL string
	http    *http.Client
	store   SessionStore
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// New builds a client for baseURL, e.g. "http://localhost:4000/api".
func New(baseURL string, store SessionStore, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		store:   store,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Store exposes the session cache.
func (c *Client) Store() SessionStore { return c.store }

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TodoPatch holds optional fields for UpdateTodo.
type TodoPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// ForgotResult is the forgot-password answer. ResetToken is only set when
// the server runs in echo mode.
type ForgotResult struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"resetToken,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/signup", map[string]string{"name": name, "email": email, "password": password})
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	var res authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	if err := c.store.Save(ctx, Session{Token: res.Token, User: res.User, SavedAt: c.now()}); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Logout drops the cached session. Tokens are stateless, so the server is
// not contacted.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Me fetches the current identity and refreshes the cached user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &APIError{Status: http.StatusUnauthorized, Code: "authentication_required", Message: "Authentication required"}
	}
	return c.refresh(ctx, sess.Token)
}

// refresh asks the server who token belongs to. The cached user is updated
// only if token is still the cached one when the answer arrives.
func (c *Client) refresh(ctx context.Context, token string) (*User, error) {
	var res struct {
		User User `json:"user"`
	}
	if err := c.doAs(ctx, token, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return nil, err
	}
	next := Session{Token: token, User: res.User, SavedAt: c.now()}
	if _, err := c.store.CompareAndSwap(ctx, token, &next); err != nil {
		return nil, err
	}
	return &res.User, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (*ForgotResult, error) {
	var res ForgotResult
	if err := c.do(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var res struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/reset-password", map[string]string{"token": token, "password": password}, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var res struct {
		Todos []Todo `json:"todos"`
	}
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &res); err != nil {
		return nil, err
	}
	return res.Todos, nil
}

func (c *Client) CreateTodo(ctx context.Context, title string, description *string) (*Todo, error) {
	body := struct {
		Title       string  `json:"title"`
		Description *string `json:"description,omitempty"`
	}{title, description}
	var res struct {
		Todo Todo `json:"todo"`
	}
	if err := c.do(ctx, http.MethodPost, "/todos", body, &res); err != nil {
		return nil, err
	}
	return &res.Todo, nil
}

func (c *Client) UpdateTodo(ctx context.Context, id string, p TodoPatch) (*Todo, error) {
	var res struct {
		Todo Todo `json:"todo"`
	}
	if err := c.do(ctx, http.MethodPatch, "/todos/"+id, p, &res); err != nil {
		return nil, err
	}
	return &res.Todo, nil
}

func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+id, nil, nil)
}

// do sends one request with the cached bearer token.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return err
	}
	var token string
	if sess != nil {
		token = sess.Token
	}
	return c.doAs(ctx, token, method, path, body, out)
}

// doAs sends one request authorized by token. A 401 clears the cache if it
// still holds that token.
func (c *Client) doAs(ctx context.Context, token, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized && token != "" {
		if _, err := c.store.CompareAndSwap(ctx, token, nil); err != nil {
			return err
		}
	}
	if res.StatusCode >= 400 {
		return decodeAPIError(res)
	}
	if out == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	var body struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err := json.Unmarshal(b, &body); err != nil || body.Message == "" {
		body.Message = http.StatusText(res.StatusCode)
	}
	return &APIError{Status: res.StatusCode, Code: body.Code, Message: body.Message, Details: body.Details}
}
