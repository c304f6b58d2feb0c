package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/epiforge/ccdl/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runs := []storage.Run{
		{Direction: "decode", Mode: "lenient", Events: 5, Warnings: 1, Duration: 3 * time.Millisecond},
		{Direction: "encode", Mode: "strict", Events: 2, Duration: time.Millisecond},
	}
	for i := range runs {
		if err := s.RecordRun(ctx, &runs[i]); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
		if runs[i].ID == "" {
			t.Fatal("RecordRun() left ID empty")
		}
	}

	got, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRuns() returned %d runs, want 2", len(got))
	}
	if got[0].Direction != "encode" || got[1].Direction != "decode" {
		t.Errorf("ListRuns() order = %q, %q; want newest first", got[0].Direction, got[1].Direction)
	}
	if got[1].Events != 5 || got[1].Warnings != 1 {
		t.Errorf("run = %+v, want 5 events and 1 warning", got[1])
	}
	if got[1].Duration != 3*time.Millisecond {
		t.Errorf("duration = %v, want 3ms", got[1].Duration)
	}
}

func TestStore_ListLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.RecordRun(ctx, &storage.Run{Direction: "decode", Mode: "strict"}); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}
	got, err := s.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("ListRuns() returned %d runs, want 3", len(got))
	}
}
