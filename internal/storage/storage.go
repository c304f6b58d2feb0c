// Package storage defines the run log: a record of every translation the
// server performed, for auditing which campaign files were converted when.
package storage

import (
	"context"
	"time"
)

// Run is one recorded translation.
type Run struct {
	ID        string
	Direction string
	Mode      string
	Events    int
	Warnings  int
	Duration  time.Duration
	CreatedAt time.Time
}

// RunStore records completed translations and lists recent ones.
type RunStore interface {
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
