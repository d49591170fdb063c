package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/gotasklist/internal/tasklist"
	"github.com/spf13/afero"
)

// Query is a named, saved tasklist invocation.
type Query struct {
	Description string `toml:"description,omitempty" json:"description,omitempty"`

	tasklist.Options
}

// QueriesFile is the on-disk layout of the queries file.
type QueriesFile struct {
	Version int              `toml:"version" json:"version"`
	Queries map[string]Query `toml:"queries" json:"queries"`
}

// ErrQueryNotFound is returned for unknown query names.
var ErrQueryNotFound = errors.New("query not found")

// QueryStore manages saved queries in a TOML file.
type QueryStore struct {
	fs   afero.Fs
	path string

	mu     sync.RWMutex
	config *QueriesFile
}

// NewQueryStore creates a store backed by path on fsys. Nothing is read
// until Load.
func NewQueryStore(fsys afero.Fs, path string) *QueryStore {
	if path == "" {
		path = "queries.toml"
	}
	return &QueryStore{
		fs:     fsys,
		path:   path,
		config: &QueriesFile{Version: 1, Queries: make(map[string]Query)},
	}
}

// Path returns the backing file path.
func (s *QueryStore) Path() string {
	return s.path
}

// LoadQueries reads and validates a queries file. A missing file yields an
// empty set.
func LoadQueries(fsys afero.Fs, path string) (*QueriesFile, error) {
	cfg := &QueriesFile{Version: 1, Queries: make(map[string]Query)}

	data, err := afero.ReadFile(fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse queries: %w", err)
	}
	if cfg.Queries == nil {
		cfg.Queries = make(map[string]Query)
	}
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	for name, q := range cfg.Queries {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("query %s: %w", name, err)
		}
	}

	return cfg, nil
}

// Load replaces the in-memory queries with the file contents.
func (s *QueryStore) Load() error {
	cfg, err := LoadQueries(s.fs, s.path)
	if err != nil {
		return err
	}
	s.Replace(cfg)
	return nil
}

// Replace swaps in an already loaded file, e.g. from a Watcher.
func (s *QueryStore) Replace(cfg *QueriesFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

// Save writes the queries to disk.
func (s *QueryStore) Save() error {
	s.mu.RLock()
	data, err := toml.Marshal(s.config)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal queries: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write queries: %w", err)
	}
	return nil
}

// Put validates and stores a query, then saves.
func (s *QueryStore) Put(name string, q Query) error {
	if name == "" {
		return fmt.Errorf("query name cannot be empty")
	}
	if err := q.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.config.Queries[name] = q
	s.mu.Unlock()
	return s.Save()
}

// Remove deletes a query, then saves.
func (s *QueryStore) Remove(name string) error {
	s.mu.Lock()
	if _, ok := s.config.Queries[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	delete(s.config.Queries, name)
	s.mu.Unlock()
	return s.Save()
}

// Get returns a query by name.
func (s *QueryStore) Get(name string) (Query, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.config.Queries[name]
	return q, ok
}

// Names returns the query names in sorted order.
func (s *QueryStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.config.Queries))
}

// All returns a copy of every query.
func (s *QueryStore) All() map[string]Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.config.Queries)
}
