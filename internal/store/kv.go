package store

import (
	"database/sql"
	"time"

	"github.com/spf13/cast"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// PutState writes a scalar value into the generic agent_state key-value
// table, used for current_system_prompt, last_reflection_time, and memory
// design metadata (§4.1).
func (s *Store) PutState(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	str := cast.ToString(value)
	_, err := s.db.Exec(`
		INSERT INTO agent_state(key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, str, formatTime(time.Now()))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "put agent state", err)
	}
	return nil
}

// GetState reads a raw string value from agent_state. ok is false if the key
// is absent.
func (s *Store) GetState(key string) (value string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v string
	row := s.db.QueryRow(`SELECT value FROM agent_state WHERE key = ?`, key)
	if scanErr := row.Scan(&v); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, apperr.WrapErr(apperr.Storage, "get agent state", scanErr)
	}
	return v, true, nil
}

// GetStateInt reads an agent_state value cast to int, using spf13/cast so
// callers don't have to know whether the value was stored as "30" or 30.
func (s *Store) GetStateInt(key string, fallback int) int {
	v, ok, err := s.GetState(key)
	if err != nil || !ok {
		return fallback
	}
	n, castErr := cast.ToIntE(v)
	if castErr != nil {
		return fallback
	}
	return n
}

// GetStateBool reads an agent_state value cast to bool.
func (s *Store) GetStateBool(key string, fallback bool) bool {
	v, ok, err := s.GetState(key)
	if err != nil || !ok {
		return fallback
	}
	b, castErr := cast.ToBoolE(v)
	if castErr != nil {
		return fallback
	}
	return b
}

// DeleteState removes a key from agent_state.
func (s *Store) DeleteState(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM agent_state WHERE key = ?`, key); err != nil {
		return apperr.WrapErr(apperr.Storage, "delete agent state", err)
	}
	return nil
}
