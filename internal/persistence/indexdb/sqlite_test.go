package indexdb

import (
	"path/filepath"
	"testing"
	"time"

	"scriptmud.dev/internal/engine"
)

func TestSQLiteIndex_RecordAndLatest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	rows := []engine.SnapshotInfo{
		{Path: "world-00000000000000000010.snap.zst", GameTime: 10, Objects: 3, Users: 1, SavedAt: "2026-01-01T00:00:00Z"},
		{Path: "world-00000000000000000025.snap.zst", GameTime: 25, Objects: 5, Users: 2, SavedAt: "2026-01-01T00:05:00Z"},
	}
	for _, r := range rows {
		if err := idx.RecordSnapshot(r); err != nil {
			t.Fatalf("RecordSnapshot: %v", err)
		}
	}

	// Writes land asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, ok, err := idx.Latest()
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if ok && got.GameTime == 25 {
			if got.Path != rows[1].Path || got.Objects != 5 || got.Users != 2 {
				t.Fatalf("latest row mismatch: %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("latest snapshot never indexed (ok=%v got=%+v)", ok, got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSQLiteIndex_CloseIsIdempotent(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := idx.RecordSnapshot(engine.SnapshotInfo{GameTime: 1}); err != nil {
		t.Fatalf("RecordSnapshot after Close: %v", err)
	}
}
