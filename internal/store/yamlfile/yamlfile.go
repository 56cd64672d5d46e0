// Package yamlfile stores the bot record as a flat YAML document.
package yamlfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ConserveLee/cookie-idle/internal/config"
)

// Store is a YAML file backed record store
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path. The file is created on first save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Load reads the file and merges every known key over the defaults.
// A missing file is not an error.
func (s *Store) Load(ctx context.Context) (config.Record, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := config.Default()
	if err := ctx.Err(); err != nil {
		return rec, nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return rec, nil, nil
		}
		return rec, nil, fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return rec, nil, fmt.Errorf("failed to parse settings %s: %w: %w", s.path, config.ErrCorrupt, err)
	}

	var reset []string
	for _, f := range config.Fields() {
		node, ok := raw[f.Key]
		if !ok {
			continue
		}
		// Decode into a scratch copy so a failed decode cannot leave a half-written value
		scratch := rec
		if err := node.Decode(f.Ptr(&scratch)); err != nil {
			reset = append(reset, f.Key)
			continue
		}
		rec = scratch
	}

	reset = append(reset, rec.Normalize()...)
	sort.Strings(reset)
	return rec, reset, nil
}

// Save writes rec atomically (temp file + rename)
func (s *Store) Save(ctx context.Context, rec config.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	data, err := yaml.Marshal(document(rec))
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}
	return nil
}

// Close is a no-op, files are not held open
func (s *Store) Close() error {
	return nil
}

// document builds a mapping node so keys keep the schema order on disk
func document(rec config.Record) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	values := rec.Values()
	for _, f := range config.Fields() {
		var value yaml.Node
		if err := value.Encode(values[f.Key]); err != nil {
			continue
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Key},
			&value,
		)
	}
	return doc
}
