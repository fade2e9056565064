package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session (
  slot INTEGER PRIMARY KEY CHECK (slot = 1),
  token TEXT NOT NULL,
  user_id TEXT NOT NULL,
  user_name TEXT NOT NULL,
  user_email TEXT NOT NULL,
  saved_at TIMESTAMP NOT NULL
);`

// SQLiteSessionStore keeps the session in a single-row SQLite table so it
// survives process restarts.
type SQLiteSessionStore struct {
	db *sqlx.DB
}

type sessionRow struct {
	Token     string    `db:"token"`
	UserID    string    `db:"user_id"`
	UserName  string    `db:"user_name"`
	UserEmail string    `db:"user_email"`
	SavedAt   time.Time `db:"saved_at"`
}

// OpenSQLiteSessionStore opens (creating if needed) the session database at path.
func OpenSQLiteSessionStore(ctx context.Context, path string) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &SQLiteSessionStore{db: db}, nil
}

func (s *SQLiteSessionStore) Load(ctx context.Context) (*Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, `SELECT token, user_id, user_name, user_email, saved_at FROM session WHERE slot = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Session{
		Token:   row.Token,
		User:    User{ID: row.UserID, Name: row.UserName, Email: row.UserEmail},
		SavedAt: row.SavedAt,
	}, nil
}

func (s *SQLiteSessionStore) Save(ctx context.Context, sess Session) error {
	const q = `INSERT INTO session (slot, token, user_id, user_name, user_email, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			user_name = excluded.user_name,
			user_email = excluded.user_email,
			saved_at = excluded.saved_at`
	savedAt := sess.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, q, sess.Token, sess.User.ID, sess.User.Name, sess.User.Email, savedAt.UTC()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) CompareAndSwap(ctx context.Context, token string, next *Session) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if next == nil {
		res, err = s.db.ExecContext(ctx, `DELETE FROM session WHERE slot = 1 AND token = ?`, token)
	} else {
		savedAt := next.SavedAt
		if savedAt.IsZero() {
			savedAt = time.Now()
		}
		res, err = s.db.ExecContext(ctx, `UPDATE session SET
				token = ?, user_id = ?, user_name = ?, user_email = ?, saved_at = ?
			WHERE slot = 1 AND token = ?`,
			next.Token, next.User.ID, next.User.Name, next.User.Email, savedAt.UTC(), token)
	}
	if err != nil {
		return false, fmt.Errorf("swap session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap session: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteSessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Close() error { return s.db.Close() }
