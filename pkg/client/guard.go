package client

import (
	"context"
	"sync"
	"time"
)

// Guard gates protected screens on the client. A cached token lets the
// caller in at once; the identity is then re-checked with the server in the
// background. The server still authorizes every request on its own.
type Guard struct {
	client     *Client
	staleAfter time.Duration
	timeout    time.Duration
	now        func() time.Time

	mu       sync.Mutex
	checked  time.Time
	inflight bool
	wg       sync.WaitGroup
}

// NewGuard builds a guard that re-validates at most once per staleAfter.
func NewGuard(c *Client, staleAfter time.Duration) *Guard {
	return &Guard{client: c, staleAfter: staleAfter, timeout: 10 * time.Second, now: time.Now}
}

// Allow reports whether a session is cached, starting a background
// re-validation when the last check is older than staleAfter.
func (g *Guard) Allow(ctx context.Context) (bool, error) {
	sess, err := g.client.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Token == "" {
		return false, nil
	}

	g.mu.Lock()
	stale := g.checked.IsZero() || g.now().Sub(g.checked) >= g.staleAfter
	start := stale && !g.inflight
	if start {
		g.inflight = true
		g.wg.Add(1)
	}
	g.mu.Unlock()

	if start {
		go g.revalidate(sess.Token)
	}
	return true, nil
}

func (g *Guard) revalidate(token string) {
	defer g.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	_, err := g.client.refresh(ctx, token)
	if IsAPIError(err) {
		// anything the server rejected invalidates this token, but not a
		// session that replaced it meanwhile
		_, _ = g.client.store.CompareAndSwap(ctx, token, nil)
	}

	g.mu.Lock()
	g.inflight = false
	if err == nil {
		g.checked = g.now()
	}
	g.mu.Unlock()
}

// Wait blocks until any background re-validation has finished.
func (g *Guard) Wait() { g.wg.Wait() }
