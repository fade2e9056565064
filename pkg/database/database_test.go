package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionDSN(t *testing.T) {
	const url = "postgres://u:p@localhost:5432/todo?sslmode=disable"

	dsn, err := sessionDSN(Config{DSN: url})
	require.NoError(t, err)
	assert.Equal(t, url, dsn)

	dsn, err = sessionDSN(Config{DSN: url, TimeZone: "Asia/Shanghai"})
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/todo?sslmode=disable&timezone=Asia%2FShanghai", dsn)

	dsn, err = sessionDSN(Config{DSN: "host=localhost dbname=todo ", TimeZone: "it's"})
	require.NoError(t, err)
	assert.Equal(t, `host=localhost dbname=todo timezone='it\'s'`, dsn)

	_, err = sessionDSN(Config{DSN: "postgres://u:p@[::1/todo", TimeZone: "UTC"})
	assert.Error(t, err)
}

func TestMigrateUsesSeam(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	fsys := fstest.MapFS{"00001_init.sql": &fstest.MapFile{Data: []byte("-- +goose Up\nSELECT 1;\n")}}
	require.NoError(t, Migrate(context.Background(), nil, fsys))
	assert.Equal(t, ".", gotDir)
}

func TestMigrateWrapsError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	boom := errors.New("boom")
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}

	err := Migrate(context.Background(), nil, fstest.MapFS{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
