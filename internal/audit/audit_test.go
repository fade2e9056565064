package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	calls atomic.Int32
	fail  bool
	block chan struct{}

	mu      sync.Mutex
	written []Entry
}

func (s *fakeSink) Write(ctx context.Context, e Entry) error {
	s.calls.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	s.written = append(s.written, e)
	s.mu.Unlock()
	return nil
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, zap.NewNop().Sugar(), Options{})

	require.NoError(t, d.Record(context.Background(), Entry{ID: "1", Kind: "not_found"}))
	require.NoError(t, d.Record(context.Background(), Entry{ID: "2", Kind: "conflict"}))
	require.NoError(t, d.Close(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.written, 2)
	assert.Equal(t, "1", sink.written[0].ID)
}

func TestDispatcherBoundsAttempts(t *testing.T) {
	sink := &fakeSink{fail: true}
	d := NewDispatcher(sink, zap.NewNop().Sugar(), Options{Attempts: 3})

	require.NoError(t, d.Record(context.Background(), Entry{ID: "1"}))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(3), sink.calls.Load())
}

func TestDispatcherAttemptTimeout(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	d := NewDispatcher(sink, zap.NewNop().Sugar(), Options{Attempts: 2, Timeout: 10 * time.Millisecond})

	start := time.Now()
	require.NoError(t, d.Record(context.Background(), Entry{ID: "1"}))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, int32(2), sink.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatcherRecordDoesNotBlockWhenFull(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	d := NewDispatcher(sink, zap.NewNop().Sugar(), Options{QueueSize: 1, Attempts: 1, Timeout: time.Minute})

	// the worker takes the first entry and blocks in the sink; the queue
	// then holds one more.
	require.NoError(t, d.Record(context.Background(), Entry{ID: "1"}))
	require.Eventually(t, func() bool { return sink.calls.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, d.Record(context.Background(), Entry{ID: "2"}))

	done := make(chan error, 1)
	go func() { done <- d.Record(context.Background(), Entry{ID: "3"}) }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherRecordAfterClose(t *testing.T) {
	d := NewDispatcher(&fakeSink{}, zap.NewNop().Sugar(), Options{})
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Record(context.Background(), Entry{}), ErrClosed)
	assert.NoError(t, d.Close(context.Background()))
}

func TestPostgresSinkWrite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sink := NewPostgresSink(sqlx.NewDb(db, "postgres"))
	e := Entry{
		ID: "1", Level: "warn", Message: "Todo not found", Kind: "not_found", Status: 404,
		Method: "PATCH", Path: "/api/todos/9", RequestID: "req", CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO error_logs`).
		WithArgs(e.ID, e.Level, e.Message, e.Kind, e.Status, e.Method, e.Path, e.Query, e.RequestID, e.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sink.Write(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSinkWrapsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO error_logs`).WillReturnError(errors.New("boom"))

	err = NewPostgresSink(sqlx.NewDb(db, "postgres")).Write(context.Background(), Entry{ID: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert error log")
}
