// Package memory provides the in-memory run ledger. The SQLite and Postgres
// ledgers embed it and mirror every write to their tables.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"latticecore/pkg/runlog"
)

var _ runlog.Store = (*Store)(nil)

// Snapshot captures a point-in-time clone of the ledger.
type Snapshot struct {
	Runs map[string]runlog.Run `json:"runs"`
}

// Store keeps runs in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	runs map[string]runlog.Run
}

// NewStore returns an empty ledger.
func NewStore() *Store {
	return &Store{runs: make(map[string]runlog.Run)}
}

// SaveRun inserts or replaces run.
func (s *Store) SaveRun(ctx context.Context, run runlog.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("runlog: run id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// GetRun returns a copy of the run with id.
func (s *Store) GetRun(_ context.Context, id string) (runlog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return runlog.Run{}, fmt.Errorf("%w: %s", runlog.ErrRunNotFound, id)
	}
	return run.Clone(), nil
}

// ListRuns returns every run, oldest first, ties broken by id.
func (s *Store) ListRuns(_ context.Context) ([]runlog.Run, error) {
	s.mu.RLock()
	out := make([]runlog.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ExportState clones the ledger for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Runs: make(map[string]runlog.Run, len(s.runs))}
	for id, run := range s.runs {
		snap.Runs[id] = run.Clone()
	}
	return snap
}

// ImportState replaces the ledger with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	runs := make(map[string]runlog.Run, len(snapshot.Runs))
	for id, run := range snapshot.Runs {
		runs[id] = run.Clone()
	}
	s.mu.Lock()
	s.runs = runs
	s.mu.Unlock()
}
