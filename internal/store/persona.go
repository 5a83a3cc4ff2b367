package store

import (
	"encoding/json"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// AppendPersonaSnapshot records a new point in the agent's personality
// trajectory. Snapshots are append-only, mirroring journal_entries.
func (s *Store) AppendPersonaSnapshot(p types.PersonaSnapshot) (int64, error) {
	traitsJSON, err := json.Marshal(p.Traits)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal persona traits", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO persona_snapshots(prompt, trajectory, traits, trigger, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, p.Prompt, p.Trajectory, string(traitsJSON), p.Trigger, formatTime(p.Timestamp))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "append persona snapshot", err)
	}
	return res.LastInsertId()
}

// LatestPersonaSnapshot returns the most recently recorded snapshot. ok is
// false if none has ever been written.
func (s *Store) LatestPersonaSnapshot() (p types.PersonaSnapshot, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`
		SELECT id, prompt, trajectory, traits, trigger, timestamp
		FROM persona_snapshots ORDER BY timestamp DESC, id DESC LIMIT 1
	`)
	var traitsJSON, ts string
	if scanErr := row.Scan(&p.ID, &p.Prompt, &p.Trajectory, &traitsJSON, &p.Trigger, &ts); scanErr != nil {
		return types.PersonaSnapshot{}, false, nil
	}
	if err := json.Unmarshal([]byte(traitsJSON), &p.Traits); err != nil {
		return types.PersonaSnapshot{}, false, err
	}
	if p.Timestamp, err = parseTime(ts); err != nil {
		return types.PersonaSnapshot{}, false, err
	}
	return p, true, nil
}

// PersonaHistory returns the n most recent snapshots, newest first.
func (s *Store) PersonaHistory(n int) ([]types.PersonaSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, prompt, trajectory, traits, trigger, timestamp
		FROM persona_snapshots ORDER BY timestamp DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query persona history", err)
	}
	defer rows.Close()

	var out []types.PersonaSnapshot
	for rows.Next() {
		var p types.PersonaSnapshot
		var traitsJSON, ts string
		if err := rows.Scan(&p.ID, &p.Prompt, &p.Trajectory, &traitsJSON, &p.Trigger, &ts); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan persona snapshot", err)
		}
		if err := json.Unmarshal([]byte(traitsJSON), &p.Traits); err != nil {
			return nil, err
		}
		if p.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
