// Package store is the single persistence layer for every entity in the
// Living Loop: journal entries, concerns, orientation snapshots, the pending
// thoughts queue, the generic agent_state key-value table, and the memory
// design archive/eval/promotion audit tables. It is modeled on
// internal/graph/db.go's migration-on-open pattern and internal/gtd/store.go's
// typed CRUD surface, but backed by SQLite instead of a flat JSON file so
// multi-row writes can be transactional.
//
// There is exactly one writer at a time: every mutating method takes the
// store's mutex before opening a transaction, so readers observe only
// committed state and a write is never held across an LLM call (callers
// build the row, then call a Store method — they never hold the lock
// themselves).
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// Store wraps the SQLite connection backing all persisted entities.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// timeLayout is the canonical UTC string form used for every persisted
// timestamp; timestamps are always stored and parsed in this layout so a
// restart or cross-machine copy never reinterprets a local offset.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// Open opens or creates the store's database file, bootstrapping the schema
// idempotently.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "create database directory", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, apperr.WrapErr(apperr.Storage, "ping database", err)
	}
	// SQLite only really tolerates one writer; keep the pool singular so the
	// busy-timeout/WAL combination above is effective rather than racing
	// driver-level connections against each other.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.WrapErr(apperr.Storage, "migrate schema", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS concerns (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	last_touched TEXT NOT NULL,
	summary TEXT NOT NULL,
	concern_type TEXT NOT NULL,
	salience TEXT NOT NULL,
	my_thoughts TEXT NOT NULL DEFAULT '',
	related_memory_keys TEXT NOT NULL DEFAULT '[]',
	context TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_concerns_salience ON concerns(salience);
CREATE INDEX IF NOT EXISTS idx_concerns_last_touched ON concerns(last_touched);

CREATE TABLE IF NOT EXISTS journal_entries (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	content TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	related_concerns TEXT NOT NULL DEFAULT '[]',
	mood_at_time TEXT
);
CREATE INDEX IF NOT EXISTS idx_journal_timestamp ON journal_entries(timestamp);

CREATE TABLE IF NOT EXISTS orientation_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_state TEXT NOT NULL,
	user_state_confidence REAL NOT NULL,
	salience_map TEXT NOT NULL DEFAULT '[]',
	anomalies TEXT NOT NULL DEFAULT '[]',
	pending_thoughts TEXT NOT NULL DEFAULT '[]',
	disposition TEXT NOT NULL,
	disposition_reason TEXT NOT NULL DEFAULT '',
	mood TEXT NOT NULL DEFAULT '{}',
	raw_synthesis TEXT NOT NULL DEFAULT '',
	generated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orientation_generated_at ON orientation_snapshots(generated_at);

CREATE TABLE IF NOT EXISTS pending_thoughts_queue (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	priority REAL NOT NULL DEFAULT 0,
	relates_to TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	surfaced_at TEXT,
	dismissed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_unsurfaced ON pending_thoughts_queue(surfaced_at) WHERE surfaced_at IS NULL;

CREATE TABLE IF NOT EXISTS memory_design_archive (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	design_id TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS memory_eval_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	design_id TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	metrics TEXT NOT NULL DEFAULT '{}',
	sample_size INTEGER NOT NULL DEFAULT 0,
	ran_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_promotion_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_design_id TEXT NOT NULL,
	from_schema_version INTEGER NOT NULL,
	to_design_id TEXT NOT NULL,
	to_schema_version INTEGER NOT NULL,
	approved INTEGER NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	rollback_design_id TEXT NOT NULL,
	rollback_schema_version INTEGER NOT NULL,
	decided_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS character_card (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS persona_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prompt TEXT NOT NULL,
	trajectory TEXT NOT NULL DEFAULT '',
	traits TEXT NOT NULL DEFAULT '{}',
	trigger TEXT NOT NULL DEFAULT '',
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS working_memory_kv1 (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS private_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id TEXT NOT NULL,
	author TEXT NOT NULL,
	content TEXT NOT NULL,
	reply TEXT,
	processed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_private_messages_processed ON private_messages(processed);

CREATE TABLE IF NOT EXISTS turn_prompts (
	message_id INTEGER PRIMARY KEY,
	prompt TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := tx.Exec(`INSERT INTO schema_version(version, applied_at) VALUES (1, ?)`, formatTime(time.Now())); err != nil {
			return err
		}
	}

	return tx.Commit()
}
