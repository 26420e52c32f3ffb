package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenFileNonExistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile returned error for non-existent file: %v", err)
	}
	rec, err := s.Get(Key{RelPath: "intro.md", Language: "ru"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Errorf("Get on empty ledger = %+v, want nil", rec)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	key := Key{RelPath: "guide/setup.md", Language: "ru"}
	rec := Record{PrimaryFingerprint: "abc", TargetFingerprint: "def", SyncedAt: now}
	if err := s.Put(key, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("ledger file not written: %v", err)
	}

	s2, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile after flush: %v", err)
	}
	got, err := s2.Get(key)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got == nil {
		t.Fatalf("record lost on reload")
	}
	if got.PrimaryFingerprint != "abc" || got.TargetFingerprint != "def" {
		t.Errorf("record = %+v, want fingerprints abc/def", got)
	}
	if !got.SyncedAt.Equal(now) {
		t.Errorf("SyncedAt = %v, want %v", got.SyncedAt, now)
	}
}

func TestFileStorePutOverwrites(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	key := Key{RelPath: "intro.md", Language: "de"}
	if err := s.Put(key, Record{PrimaryFingerprint: "one"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(key, Record{PrimaryFingerprint: "two"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, _ := s.Get(key)
	if got == nil || got.PrimaryFingerprint != "two" {
		t.Errorf("record = %+v, want PrimaryFingerprint two", got)
	}
}

func TestFileStoreSnapshot(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	keys := []Key{
		{RelPath: "a.md", Language: "ru"},
		{RelPath: "a.md", Language: "de"},
		{RelPath: "b.md", Language: "ru"},
	}
	for _, k := range keys {
		if err := s.Put(k, Record{PrimaryFingerprint: "fp"}); err != nil {
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

	// Mutating the snapshot must not touch the store.
	delete(snap, keys[0])
	if got, _ := s.Get(keys[0]); got == nil {
		t.Errorf("snapshot mutation reached the store")
	}
}

func TestKeysSorted(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for _, k := range []Key{
		{RelPath: "z.md", Language: "ru"},
		{RelPath: "a.md", Language: "ru"},
		{RelPath: "m.md", Language: "de"},
	} {
		s.Put(k, Record{})
	}

	keys := s.Keys()
	want := []Key{
		{RelPath: "m.md", Language: "de"},
		{RelPath: "a.md", Language: "ru"},
		{RelPath: "z.md", Language: "ru"},
	}
	if len(keys) != len(want) {
		t.Fatalf("Keys len = %d, want %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestFlushWithoutChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush on clean store: %v", err)
	}
	// Nothing written means nothing to corrupt.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("clean flush created a file")
	}
}
