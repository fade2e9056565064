// Package audit records failed requests to a best-effort sink. Recording
// never blocks a request and never changes its response.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Entry is one failed request. Request bodies are never part of an entry.
type Entry struct {
	ID        string    `db:"id"`
	Level     string    `db:"level"`
	Message   string    `db:"message"`
	Kind      string    `db:"kind"`
	Status    int       `db:"status"`
	Method    string    `db:"method"`
	Path      string    `db:"path"`
	Query     string    `db:"query"`
	RequestID string    `db:"request_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Sink persists entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("audit dispatcher closed")

type Options struct {
	QueueSize int
	Attempts  int
	Timeout   time.Duration
	Backoff   time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Attempts <= 0 {
		o.Attempts = 2
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	return o
}

// Dispatcher hands entries to a Sink from a single background worker.
// Each entry gets at most Attempts writes, each bounded by Timeout; an entry
// that still fails, or that arrives while the queue is full, is dropped with
// a warning.
type Dispatcher struct {
	sink   Sink
	logger *zap.SugaredLogger
	opts   Options

	queue chan Entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, logger *zap.SugaredLogger, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		opts:   opts,
		queue:  make(chan Entry, opts.QueueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Record enqueues e without blocking. It reports whether the entry was
// accepted; callers are free to ignore the result.
func (d *Dispatcher) Record(_ context.Context, e Entry) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- e:
		return nil
	default:
		d.logger.Warnw("audit queue full, dropping entry", "kind", e.Kind, "path", e.Path)
		return errors.New("audit queue full")
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Entry) {
	var err error
	for attempt := 1; attempt <= d.opts.Attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
		err = d.sink.Write(ctx, e)
		cancel()
		if err == nil {
			return
		}
		if attempt < d.opts.Attempts && d.opts.Backoff > 0 {
			time.Sleep(d.opts.Backoff)
		}
	}
	d.logger.Warnw("audit write failed", "err", err, "attempts", d.opts.Attempts, "kind", e.Kind, "path", e.Path)
}
