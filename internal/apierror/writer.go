package apierror

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-todo-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-todo-go/pkg/utilities"
)

// Recorder receives an audit entry for every error response.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Writer renders errors as JSON, logs them and forwards them to the audit
// recorder.
type Writer struct {
	logger   *zap.SugaredLogger
	recorder Recorder
	newID    func() string
	now      func() time.Time
}

// NewWriter builds a Writer. recorder may be nil.
func NewWriter(logger *zap.SugaredLogger, recorder Recorder) *Writer {
	return &Writer{logger: logger, recorder: recorder, newID: utilities.NewSnowflakeID, now: time.Now}
}

func (w *Writer) WriteError(rw http.ResponseWriter, r *http.Request, err error) {
	e := From(err)
	reqID := utilities.RequestIDFrom(r.Context())

	level, msg := "warn", e.Message
	if e.Status >= http.StatusInternalServerError {
		// the cause goes to the log and the audit row, never to the client
		level, msg = "error", err.Error()
		w.logger.Errorw("request failed",
			"err", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", reqID,
		)
	} else {
		w.logger.Debugw("request rejected",
			"kind", e.Kind,
			"status", e.Status,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", reqID,
		)
	}

	if w.recorder != nil {
		_ = w.recorder.Record(r.Context(), audit.Entry{
			ID:        w.newID(),
			Level:     level,
			Message:   msg,
			Kind:      string(e.Kind),
			Status:    e.Status,
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			RequestID: reqID,
			CreatedAt: w.now().UTC(),
		})
	}

	WriteJSON(rw, e.Status, e.Body())
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
