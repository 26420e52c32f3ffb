// Package ledger persists the last successfully synchronized fingerprint
// pairing per (document path, language). The ledger is what makes
// staleness detection cheap across runs: instead of re-comparing full
// contents, the engine compares current fingerprints against the pair
// recorded at the last successful sync.
//
// Two backends are provided: a docsync.lock YAML file (default) and a
// SQLite database for larger trees. Records are created or overwritten
// on successful non-dry-run actions and never deleted by the engine.
package ledger

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default ledger file name, stored in the docs root.
const FileName = "docsync.lock"

// Version is the ledger file format version.
const Version = 1

// Key identifies a ledger record.
type Key struct {
	RelPath  string
	Language string
}

func (k Key) String() string {
	return k.RelPath + " [" + k.Language + "]"
}

// Record is the persisted state of one (path, language) pairing.
type Record struct {
	// PrimaryFingerprint is the primary document fingerprint at the
	// last successful sync.
	PrimaryFingerprint string `yaml:"primary" json:"primary"`
	// TargetFingerprint is the fingerprint of the generated target
	// content at the last successful sync.
	TargetFingerprint string `yaml:"target" json:"target"`
	// SyncedAt is when the pairing was last synchronized.
	SyncedAt time.Time `yaml:"synced_at" json:"synced_at"`
}

// Store is the persistence interface for sync records.
//
// Get returns (nil, nil) when no record exists. Put must be safe for
// concurrent use with distinct keys; the plan never contains two
// actions for the same key.
type Store interface {
	Get(key Key) (*Record, error)
	Put(key Key, rec Record) error
	// Snapshot returns a copy of every record, for classification and
	// orphan reporting.
	Snapshot() (map[Key]Record, error)
	// Flush persists any buffered writes.
	Flush() error
	Close() error
}

// ---------------------------------------------------------------------------
// YAML file store (docsync.lock)
// ---------------------------------------------------------------------------

// fileDoc is the on-disk layout: language → relative path → record.
type fileDoc struct {
	Version int                          `yaml:"version"`
	Records map[string]map[string]Record `yaml:"records"`
}

// FileStore keeps the ledger in a single YAML document, loaded at start
// and flushed after writes.
type FileStore struct {
	mu    sync.Mutex
	path  string
	doc   fileDoc
	dirty bool
}

// OpenFile reads the ledger file at path, creating an empty ledger in
// memory if the file does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc:  fileDoc{Version: Version, Records: make(map[string]map[string]Record)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if s.doc.Records == nil {
		s.doc.Records = make(map[string]map[string]Record)
	}
	return s, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string { return s.path }

// Get implements Store.
func (s *FileStore) Get(key Key) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPath, ok := s.doc.Records[key.Language]
	if !ok {
		return nil, nil
	}
	rec, ok := byPath[key.RelPath]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put implements Store. The write is buffered in memory until Flush.
func (s *FileStore) Put(key Key, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Records[key.Language] == nil {
		s.doc.Records[key.Language] = make(map[string]Record)
	}
	s.doc.Records[key.Language][key.RelPath] = rec
	s.dirty = true
	return nil
}

// Snapshot implements Store.
func (s *FileStore) Snapshot() (map[Key]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Key]Record)
	for lang, byPath := range s.doc.Records {
		for rel, rec := range byPath {
			out[Key{RelPath: rel, Language: lang}] = rec
		}
	}
	return out, nil
}

// Flush writes the ledger file if anything changed since the last flush.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}

// Close flushes and releases the store.
func (s *FileStore) Close() error { return s.Flush() }

// Keys returns all recorded keys in deterministic order. Used by status
// reporting to surface records whose documents no longer exist.
func (s *FileStore) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for lang, byPath := range s.doc.Records {
		for rel := range byPath {
			keys = append(keys, Key{RelPath: rel, Language: lang})
		}
	}
	SortKeys(keys)
	return keys
}

// SortKeys orders keys by language then path.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Language != keys[j].Language {
			return keys[i].Language < keys[j].Language
		}
		return keys[i].RelPath < keys[j].RelPath
	})
}
