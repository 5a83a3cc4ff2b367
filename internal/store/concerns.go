package store

import (
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// CreateConcern inserts a new concern row.
func (s *Store) CreateConcern(c types.Concern) error {
	keysJSON, err := json.Marshal(c.RelatedMemoryKeys)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal related_memory_keys", err)
	}
	ctxJSON, err := json.Marshal(c.Context)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal concern context", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO concerns(id, created_at, last_touched, summary, concern_type, salience, my_thoughts, related_memory_keys, context)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, formatTime(c.CreatedAt), formatTime(c.LastTouched), c.Summary, c.ConcernType.AsDBStr(),
		c.Salience.AsDBStr(), c.MyThoughts, string(keysJSON), string(ctxJSON))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "create concern", err)
	}
	return nil
}

// UpdateConcern replaces the full row for an existing concern.
func (s *Store) UpdateConcern(c types.Concern) error {
	keysJSON, err := json.Marshal(c.RelatedMemoryKeys)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal related_memory_keys", err)
	}
	ctxJSON, err := json.Marshal(c.Context)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal concern context", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		UPDATE concerns SET last_touched=?, summary=?, concern_type=?, salience=?, my_thoughts=?, related_memory_keys=?, context=?
		WHERE id=?
	`, formatTime(c.LastTouched), c.Summary, c.ConcernType.AsDBStr(), c.Salience.AsDBStr(),
		c.MyThoughts, string(keysJSON), string(ctxJSON), c.ID)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "update concern", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.Storage, "concern %s not found", c.ID)
	}
	return nil
}

// DeleteConcern removes a concern row (used when consolidation merges two
// concerns into one survivor).
func (s *Store) DeleteConcern(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM concerns WHERE id=?`, id); err != nil {
		return apperr.WrapErr(apperr.Storage, "delete concern", err)
	}
	return nil
}

// GetConcern returns a single concern by id, or nil if absent.
func (s *Store) GetConcern(id string) (*types.Concern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRow(`
		SELECT id, created_at, last_touched, summary, concern_type, salience, my_thoughts, related_memory_keys, context
		FROM concerns WHERE id=?
	`, id)
	c, err := scanConcern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "get concern", err)
	}
	return c, nil
}

// ListActiveConcerns returns all concerns with salience=Active.
func (s *Store) ListActiveConcerns() ([]types.Concern, error) {
	return s.queryConcerns(`
		SELECT id, created_at, last_touched, summary, concern_type, salience, my_thoughts, related_memory_keys, context
		FROM concerns WHERE salience=? ORDER BY last_touched DESC
	`, types.SalienceActive.AsDBStr())
}

// ListAllConcerns returns every concern regardless of salience tier.
func (s *Store) ListAllConcerns() ([]types.Concern, error) {
	return s.queryConcerns(`
		SELECT id, created_at, last_touched, summary, concern_type, salience, my_thoughts, related_memory_keys, context
		FROM concerns ORDER BY last_touched DESC
	`)
}

func (s *Store) queryConcerns(query string, args ...any) ([]types.Concern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query concerns", err)
	}
	defer rows.Close()

	var out []types.Concern
	for rows.Next() {
		c, err := scanConcernRows(rows)
		if err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan concern", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConcern(row scanner) (*types.Concern, error) {
	return scanConcernRows(row)
}

func scanConcernRows(row scanner) (*types.Concern, error) {
	var (
		c                                 types.Concern
		createdAt, lastTouched            string
		concernType, salience             string
		relatedKeysJSON, contextJSON      string
	)
	if err := row.Scan(&c.ID, &createdAt, &lastTouched, &c.Summary, &concernType, &salience,
		&c.MyThoughts, &relatedKeysJSON, &contextJSON); err != nil {
		return nil, err
	}

	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.LastTouched, err = parseTime(lastTouched); err != nil {
		return nil, err
	}
	ct, ok := types.ConcernTypeFromDBStr(concernType)
	if !ok {
		return nil, apperr.Wrap(apperr.Validation, "unknown concern_type %q", concernType)
	}
	c.ConcernType = ct
	sal, ok := types.SalienceFromDBStr(salience)
	if !ok {
		return nil, apperr.Wrap(apperr.Validation, "unknown salience %q", salience)
	}
	c.Salience = sal

	if err := json.Unmarshal([]byte(relatedKeysJSON), &c.RelatedMemoryKeys); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(contextJSON), &c.Context); err != nil {
		return nil, err
	}
	return &c, nil
}
