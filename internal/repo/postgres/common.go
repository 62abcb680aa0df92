// Package postgres implements the repositories over one shared
// records table keyed (pk, sk), with a secondary index on
// (sk, created_at) serving the newest-first run queries.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/stackcheck-labs/stackcheck-go/internal/repo"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func handleNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

func encodeAttrs(attrs any) ([]byte, error) {
	if attrs == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(attrs)
}

func decodeAttrs(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
