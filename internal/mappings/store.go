// Package mappings loads the classification tables from a YAML document and
// publishes them as immutable taxonomy snapshots. A reload never mutates the
// active snapshot in place; it builds a fresh one and swaps an atomic
// pointer, so concurrent classifications always observe a consistent set of
// tables.
package mappings

import (
	"errors"
	"io/fs"
	"os"
	"sync/atomic"

	"title-classifier/internal/taxonomy"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk mappings format. Missing keys decode to nil maps
// and are treated as empty tables.
type Document struct {
	Functions map[string]map[string]string `yaml:"functions"`
	Seniority map[string]string            `yaml:"seniority"`
	Aliases   map[string]string            `yaml:"aliases"`
}

// Store owns the active taxonomy snapshot.
type Store struct {
	path   string
	logger *zap.Logger

	active atomic.Pointer[taxonomy.Snapshot]
}

// NewStore creates a store for the mappings file at path and loads the
// initial snapshot. A missing or malformed file is not an error: the built-in
// defaults are published instead and a warning is logged.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
	}
	s.Reload()
	return s
}

// Snapshot returns the active snapshot. The returned snapshot is immutable
// and stays valid after subsequent reloads.
func (s *Store) Snapshot() *taxonomy.Snapshot {
	return s.active.Load()
}

// Reload re-reads the mappings file and atomically publishes the resulting
// snapshot. It reports whether the published snapshot differs from the
// previous one.
func (s *Store) Reload() bool {
	next := s.load()
	prev := s.active.Swap(next)

	changed := prev == nil || prev.Version != next.Version
	if changed {
		s.logger.Info("mappings loaded",
			zap.String("path", s.path),
			zap.String("version", next.Version),
			zap.Int("functions", len(next.Functions)),
			zap.Int("seniority_keywords", len(next.Seniority)),
			zap.Int("aliases", len(next.Aliases)),
		)
	}
	return changed
}

func (s *Store) load() *taxonomy.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("mappings file not found, using built-in defaults",
				zap.String("path", s.path),
			)
		} else {
			s.logger.Warn("reading mappings file failed, using built-in defaults",
				zap.String("path", s.path),
				zap.Error(err),
			)
		}
		return taxonomy.Defaults()
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("parsing mappings file failed, using built-in defaults",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return taxonomy.Defaults()
	}

	return taxonomy.NewSnapshot(
		taxonomy.FunctionHierarchy(doc.Functions),
		taxonomy.SeniorityTable(doc.Seniority),
		taxonomy.AliasTable(doc.Aliases),
	)
}

// Path returns the configured mappings file location.
func (s *Store) Path() string {
	return s.path
}

// Ready reports whether a snapshot with a non-empty function hierarchy is
// active.
func (s *Store) Ready() bool {
	snap := s.Snapshot()
	return snap != nil && len(snap.Functions) > 0
}

// Describe returns a one-line summary of the active snapshot for logs and
// the readiness endpoint.
func (s *Store) Describe() string {
	snap := s.Snapshot()
	if snap == nil {
		return "no snapshot loaded"
	}
	return snap.String()
}
