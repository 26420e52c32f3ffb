package ledger

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "docsync.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteGetAbsent(t *testing.T) {
	s := openTestDB(t)
	rec, err := s.Get(Key{RelPath: "intro.md", Language: "ru"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("Get on empty store = %+v, want nil", rec)
	}
}

func TestSQLitePutGet(t *testing.T) {
	s := openTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	key := Key{RelPath: "guide/setup.md", Language: "zh"}
	if err := s.Put(key, Record{PrimaryFingerprint: "p1", TargetFingerprint: "t1", SyncedAt: now}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatalf("record not found after Put")
	}
	if got.PrimaryFingerprint != "p1" || got.TargetFingerprint != "t1" {
		t.Errorf("record = %+v, want fingerprints p1/t1", got)
	}
	if !got.SyncedAt.Equal(now) {
		t.Errorf("SyncedAt = %v, want %v", got.SyncedAt, now)
	}
}

func TestSQLiteUpsert(t *testing.T) {
	s := openTestDB(t)

	key := Key{RelPath: "intro.md", Language: "ru"}
	if err := s.Put(key, Record{PrimaryFingerprint: "old"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(key, Record{PrimaryFingerprint: "new", TargetFingerprint: "tf"}); err != nil {
		t.Fatalf("Put (second): %v", err)
	}

	got, _ := s.Get(key)
	if got == nil || got.PrimaryFingerprint != "new" {
		t.Errorf("record = %+v, want PrimaryFingerprint new", got)
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 {
		t.Errorf("Snapshot size = %d, want 1 (upsert duplicated the row)", len(snap))
	}
}

func TestSQLiteSnapshot(t *testing.T) {
	s := openTestDB(t)

	keys := []Key{
		{RelPath: "a.md", Language: "ru"},
		{RelPath: "a.md", Language: "de"},
		{RelPath: "b.md", Language: "de"},
	}
	for _, k := range keys {
		if err := s.Put(k, Record{PrimaryFingerprint: "fp", SyncedAt: time.Now()}); err != nil {
			t.Fatalf("Put(%v): %v", k, err)
		}
	}

	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 3 {
		t.Fatalf("Snapshot size = %d, want 3", len(snap))
	}
	for _, k := range keys {
		if _, ok := snap[k]; !ok {
			t.Errorf("Snapshot missing %v", k)
		}
	}
}

func TestSQLitePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsync.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	key := Key{RelPath: "persist.md", Language: "fr"}
	if err := s.Put(key, Record{PrimaryFingerprint: "fp"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite (reopen): %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(key)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got == nil || got.PrimaryFingerprint != "fp" {
		t.Errorf("record = %+v, want PrimaryFingerprint fp", got)
	}
}
