// Package memory is the in-memory run log, used when no database path is
// configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/epiforge/ccdl/internal/storage"
)

// Store is an in-memory implementation of RunStore.
type Store struct {
	mu   sync.RWMutex
	runs []storage.Run
}

var _ storage.RunStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// RecordRun appends one run. A missing ID gets a fresh UUID.
func (s *Store) RecordRun(ctx context.Context, run *storage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now()
	s.runs = append(s.runs, *run)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []storage.Run
	for i := len(s.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, s.runs[i])
	}
	return runs, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
