package store

import (
	"encoding/json"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// EnqueuePendingThought inserts a new candidate thought produced by the
// orientation engine, not yet surfaced to the user.
func (s *Store) EnqueuePendingThought(p types.PendingThought) error {
	relJSON, err := json.Marshal(p.RelatesTo)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal relates_to", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO pending_thoughts_queue(id, content, context, priority, relates_to, created_at, surfaced_at, dismissed_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)
	`, p.ID, p.Content, p.Context, p.Priority, string(relJSON), formatTime(p.CreatedAt))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "enqueue pending thought", err)
	}
	return nil
}

// UnsurfacedPendingThoughts returns every thought still awaiting surfacing or
// dismissal, highest priority first.
func (s *Store) UnsurfacedPendingThoughts() ([]types.PendingThought, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, content, context, priority, relates_to, created_at, surfaced_at, dismissed_at
		FROM pending_thoughts_queue WHERE surfaced_at IS NULL AND dismissed_at IS NULL ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query pending thoughts", err)
	}
	defer rows.Close()

	var out []types.PendingThought
	for rows.Next() {
		p, err := scanPendingThought(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkThoughtSurfaced stamps surfaced_at for a thought that was shown to the
// user, e.g. via a Surface disposition.
func (s *Store) MarkThoughtSurfaced(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE pending_thoughts_queue SET surfaced_at=? WHERE id=?`, formatTime(when), id)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "mark thought surfaced", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.Storage, "pending thought %s not found", id)
	}
	return nil
}

// MarkThoughtDismissed stamps dismissed_at for a thought the user rejected or
// that aged out unsurfaced.
func (s *Store) MarkThoughtDismissed(id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE pending_thoughts_queue SET dismissed_at=? WHERE id=?`, formatTime(when), id)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "mark thought dismissed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.Storage, "pending thought %s not found", id)
	}
	return nil
}

func scanPendingThought(row scanner) (*types.PendingThought, error) {
	var (
		p                          types.PendingThought
		createdAt                  string
		surfacedAt, dismissedAt    *string
		relJSON                    string
	)
	if err := row.Scan(&p.ID, &p.Content, &p.Context, &p.Priority, &relJSON, &createdAt, &surfacedAt, &dismissedAt); err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "scan pending thought", err)
	}

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(relJSON), &p.RelatesTo); err != nil {
		return nil, err
	}
	if surfacedAt != nil {
		t, err := parseTime(*surfacedAt)
		if err != nil {
			return nil, err
		}
		p.SurfacedAt = &t
	}
	if dismissedAt != nil {
		t, err := parseTime(*dismissedAt)
		if err != nil {
			return nil, err
		}
		p.DismissedAt = &t
	}
	return &p, nil
}
