// Package local implements the workshop store on an embedded key-value
// table: one JSON-encoded blob per collection, the way the original
// browser-local deployment laid out its durable state.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// KV is a durable string-keyed JSON store backed by a single SQLite table.
type KV struct {
	db *sql.DB
}

// AbrirKV opens (and if needed creates) the backing database file.
func AbrirKV(path string) (*KV, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ruta de almacenamiento requerida")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS kv (
		clave TEXT PRIMARY KEY,
		valor TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &KV{db: db}, nil
}

// Close closes the database handle.
func (kv *KV) Close() error {
	if kv == nil || kv.db == nil {
		return nil
	}
	return kv.db.Close()
}

// Get deserializes the value stored under key into dest. It reports false
// when the key is absent, leaving dest untouched.
func (kv *KV) Get(ctx context.Context, key string, dest any) (bool, error) {
	if kv == nil || kv.db == nil {
		return false, fmt.Errorf("kv db is nil")
	}
	var raw string
	err := kv.db.QueryRowContext(ctx, `SELECT valor FROM kv WHERE clave = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// Set serializes value to JSON and stores it under key, replacing any
// previous value.
func (kv *KV) Set(ctx context.Context, key string, value any) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("kv db is nil")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	_, err = kv.db.ExecContext(ctx,
		`INSERT INTO kv (clave, valor) VALUES (?, ?)
		 ON CONFLICT(clave) DO UPDATE SET valor = excluded.valor`, key, string(raw))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if kv == nil || kv.db == nil {
		return fmt.Errorf("kv db is nil")
	}
	if _, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE clave = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// NextID increments the integer counter stored under counterKey (starting
// from zero) and returns the new value. Values are never reused.
func (kv *KV) NextID(ctx context.Context, counterKey string) (int64, error) {
	if kv == nil || kv.db == nil {
		return 0, fmt.Errorf("kv db is nil")
	}
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("next id %q: %w", counterKey, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	var raw string
	err = tx.QueryRowContext(ctx, `SELECT valor FROM kv WHERE clave = ?`, counterKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	case err != nil:
		return 0, fmt.Errorf("next id %q: %w", counterKey, err)
	default:
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return 0, fmt.Errorf("next id %q: %w", counterKey, err)
		}
	}

	next := current + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO kv (clave, valor) VALUES (?, ?)
		 ON CONFLICT(clave) DO UPDATE SET valor = excluded.valor`,
		counterKey, fmt.Sprintf("%d", next)); err != nil {
		return 0, fmt.Errorf("next id %q: %w", counterKey, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("next id %q: %w", counterKey, err)
	}
	return next, nil
}
