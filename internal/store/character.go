package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
)

// PutCharacterCard atomically replaces the singleton system-prompt/character
// definition (§4.1). The table's CHECK(id=1) constraint guarantees there is
// never more than one row.
func (s *Store) PutCharacterCard(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO character_card(id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, data, formatTime(time.Now()))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "put character card", err)
	}
	return nil
}

// GetCharacterCard returns the current character card text. ok is false if
// none has ever been set.
func (s *Store) GetCharacterCard() (data string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`SELECT data FROM character_card WHERE id = 1`)
	if scanErr := row.Scan(&data); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperr.WrapErr(apperr.Storage, "get character card", scanErr)
	}
	return data, true, nil
}
