package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"latticecore/pkg/runlog"
)

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	run := runlog.NewRun("segment", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	run.Steps = []runlog.Step{{Index: 0, Filter: "create_data_array", State: "executed"}}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	run.Status = runlog.StatusSucceeded
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun update: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != runlog.StatusSucceeded || len(got.Steps) != 1 || got.Steps[0].Filter != "create_data_array" {
		t.Fatalf("unexpected run %+v", got)
	}
	runs, _ := reopened.ListRuns(ctx)
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	if _, err := reopened.GetRun(ctx, "missing"); !errors.Is(err, runlog.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()
	if err := store.SaveRun(context.Background(), runlog.Run{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
