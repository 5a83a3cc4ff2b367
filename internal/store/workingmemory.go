package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// PutWorkingMemory upserts a single working-memory key/value pair. This
// backs the kv_v1 memory design.
func (s *Store) PutWorkingMemory(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO working_memory_kv1(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, formatTime(time.Now()))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "put working memory", err)
	}
	return nil
}

// GetWorkingMemory reads one key. ok is false if the key is absent.
func (s *Store) GetWorkingMemory(key string) (entry types.WorkingMemoryEntry, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var updatedAt string
	row := s.db.QueryRow(`SELECT key, value, updated_at FROM working_memory_kv1 WHERE key = ?`, key)
	if scanErr := row.Scan(&entry.Key, &entry.Value, &updatedAt); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return types.WorkingMemoryEntry{}, false, nil
		}
		return types.WorkingMemoryEntry{}, false, apperr.WrapErr(apperr.Storage, "get working memory", scanErr)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.WorkingMemoryEntry{}, false, err
	}
	return entry, true, nil
}

// DeleteWorkingMemory removes a key.
func (s *Store) DeleteWorkingMemory(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM working_memory_kv1 WHERE key = ?`, key); err != nil {
		return apperr.WrapErr(apperr.Storage, "delete working memory", err)
	}
	return nil
}

// AllWorkingMemory returns every key/value pair, in no particular order;
// callers that need deterministic order (e.g. prompt rendering) sort it
// themselves.
func (s *Store) AllWorkingMemory() ([]types.WorkingMemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT key, value, updated_at FROM working_memory_kv1`)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query all working memory", err)
	}
	defer rows.Close()

	var out []types.WorkingMemoryEntry
	for rows.Next() {
		var e types.WorkingMemoryEntry
		var updatedAt string
		if err := rows.Scan(&e.Key, &e.Value, &updatedAt); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan working memory row", err)
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
