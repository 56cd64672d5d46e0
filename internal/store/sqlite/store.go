// Package sqlite stores the bot record as one row per field in a SQLite settings table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ConserveLee/cookie-idle/internal/config"
)

type Store struct {
	db *sql.DB
}

var pragmas = []string{
	"busy_timeout = 5000",
	"journal_mode = WAL",
}

// Open opens or creates the database at path. A file that is not a SQLite
// database fails here, before anything is read.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	// One connection serializes writers and keeps the pragmas in effect
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.setup(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) setup(ctx context.Context) error {
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, "PRAGMA "+pragma); err != nil {
			return fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return s.migrate(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value_json TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Load merges every known row over the defaults. Unknown keys are ignored,
// rows that fail to decode keep the default.
func (s *Store) Load(ctx context.Context) (config.Record, []string, error) {
	rec := config.Default()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value_json FROM settings`)
	if err != nil {
		return rec, nil, fmt.Errorf("sqlite load settings: %w", err)
	}
	defer rows.Close()

	saved := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return config.Default(), nil, fmt.Errorf("sqlite scan settings: %w: %w", config.ErrCorrupt, err)
		}
		saved[key] = value
	}
	if err := rows.Err(); err != nil {
		return config.Default(), nil, fmt.Errorf("sqlite load settings: %w", err)
	}

	var reset []string
	for _, f := range config.Fields() {
		value, ok := saved[f.Key]
		if !ok {
			continue
		}
		scratch := rec
		if err := json.Unmarshal([]byte(value), f.Ptr(&scratch)); err != nil {
			reset = append(reset, f.Key)
			continue
		}
		rec = scratch
	}

	reset = append(reset, rec.Normalize()...)
	sort.Strings(reset)
	return rec, reset, nil
}

// Save upserts every field in a single transaction
func (s *Store) Save(ctx context.Context, rec config.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	values := rec.Values()
	for _, f := range config.Fields() {
		b, err := json.Marshal(values[f.Key])
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (key, value_json, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value_json = excluded.value_json,
				updated_at = excluded.updated_at
		`, f.Key, string(b), now)
		if err != nil {
			return fmt.Errorf("sqlite save %s: %w", f.Key, err)
		}
	}
	return tx.Commit()
}
