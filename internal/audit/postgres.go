package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresSink writes entries to the error_logs table.
type PostgresSink struct {
	db *sqlx.DB
}

func NewPostgresSink(db *sqlx.DB) *PostgresSink { return &PostgresSink{db: db} }

func (s *PostgresSink) Write(ctx context.Context, e Entry) error {
	const q = `INSERT INTO error_logs (id, level, message, kind, status, method, path, query, request_id, created_at)
		VALUES (:id, :level, :message, :kind, :status, :method, :path, :query, :request_id, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("insert error log: %w", err)
	}
	return nil
}
