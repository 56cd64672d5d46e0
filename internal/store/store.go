// Package store persists the bot record. Backends decode field by field so a
// bad or missing value only costs that field its saved value.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/store/sqlite"
	"github.com/ConserveLee/cookie-idle/internal/store/yamlfile"
)

// Store loads and saves the bot record
type Store interface {
	// Load returns the saved record merged over the defaults, and the keys that
	// fell back to defaults because their saved value was unusable. A non-nil
	// error still comes with a usable (default) record.
	Load(ctx context.Context) (config.Record, []string, error)
	Save(ctx context.Context, rec config.Record) error
	Close() error
}

// Open picks the backend from the file extension: .db and .sqlite use SQLite,
// anything else is a YAML file.
func Open(ctx context.Context, path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return sqlite.Open(ctx, path)
	default:
		return yamlfile.New(path), nil
	}
}

// OpenOrReset opens path like Open. When the file exists but cannot be opened
// as a store it is renamed aside (with its -wal/-shm companions) and a fresh
// store is created in its place. moved is the backup path, empty when nothing
// was moved. A non-nil error means no store could be opened at all.
func OpenOrReset(ctx context.Context, path string) (s Store, moved string, err error) {
	s, err = Open(ctx, path)
	if err == nil {
		return s, "", nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, "", err
	}

	moved = fmt.Sprintf("%s.corrupt-%s", path, time.Now().Format("20060102-150405"))
	if renameErr := os.Rename(path, moved); renameErr != nil {
		return nil, "", fmt.Errorf("%w (moving it aside failed: %v)", err, renameErr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, statErr := os.Stat(path + suffix); statErr == nil {
			_ = os.Rename(path+suffix, moved+suffix)
		}
	}

	s, err = Open(ctx, path)
	if err != nil {
		return nil, moved, err
	}
	return s, moved, nil
}
