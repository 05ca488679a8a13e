package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ KV = (*SQLKV)(nil)

// A SQLKV keeps values in the kv_store table created by the migrator.
type SQLKV struct {
	sqldb sqldb
}

func NewSQLKV(sqldb sqldb) SQLKV {
	return SQLKV{sqldb}
}

func (s SQLKV) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "SQLKV.Get"

	if err := checkKey(key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT value FROM kv_store WHERE key = $1;`

	var value []byte
	err := s.sqldb.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return value, nil
}

func (s SQLKV) Set(ctx context.Context, key string, value []byte) error {
	const op = "SQLKV.Set"

	if err := checkKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := s.sqldb.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	return nil
}

func (s SQLKV) Delete(ctx context.Context, key string) error {
	const op = "SQLKV.Delete"

	if err := checkKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `DELETE FROM kv_store WHERE key = $1;`

	if _, err := s.sqldb.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("%s: failed to exec: %w", op, err)
	}
	return nil
}
