package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// schema holds one row per (rel_path, language). The upsert keeps each
// put atomic, so concurrent writes to distinct keys are safe.
const schema = `CREATE TABLE IF NOT EXISTS sync_records (
    rel_path   TEXT NOT NULL,
    language   TEXT NOT NULL,
    primary_fp TEXT NOT NULL,
    target_fp  TEXT NOT NULL,
    synced_at  TEXT NOT NULL,
    PRIMARY KEY(rel_path, language)
);`

// SQLiteStore keeps the ledger in a SQLite database. Suited to large
// trees where rewriting a whole YAML document per run is wasteful.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed initializes) a ledger database.
// Pass ":memory:" for an ephemeral store.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(key Key) (*Record, error) {
	var rec Record
	var syncedAt string
	err := s.db.QueryRow(
		`SELECT primary_fp, target_fp, synced_at FROM sync_records WHERE rel_path = ? AND language = ?`,
		key.RelPath, key.Language,
	).Scan(&rec.PrimaryFingerprint, &rec.TargetFingerprint, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger record %s: %w", key, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, syncedAt); err == nil {
		rec.SyncedAt = t
	}
	return &rec, nil
}

// Put implements Store. Each put is its own transaction.
func (s *SQLiteStore) Put(key Key, rec Record) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_records (rel_path, language, primary_fp, target_fp, synced_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(rel_path, language) DO UPDATE SET
		   primary_fp = excluded.primary_fp,
		   target_fp  = excluded.target_fp,
		   synced_at  = excluded.synced_at`,
		key.RelPath, key.Language,
		rec.PrimaryFingerprint, rec.TargetFingerprint,
		rec.SyncedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing ledger record %s: %w", key, err)
	}
	return nil
}

// Snapshot implements Store.
func (s *SQLiteStore) Snapshot() (map[Key]Record, error) {
	rows, err := s.db.Query(`SELECT rel_path, language, primary_fp, target_fp, synced_at FROM sync_records`)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	defer rows.Close()

	out := make(map[Key]Record)
	for rows.Next() {
		var key Key
		var rec Record
		var syncedAt string
		if err := rows.Scan(&key.RelPath, &key.Language, &rec.PrimaryFingerprint, &rec.TargetFingerprint, &syncedAt); err != nil {
			return nil, fmt.Errorf("reading ledger: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, syncedAt); err == nil {
			rec.SyncedAt = t
		}
		out[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return out, nil
}

// Flush implements Store; puts are written through immediately.
func (s *SQLiteStore) Flush() error { return nil }

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
