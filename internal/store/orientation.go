package store

import (
	"encoding/json"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// InsertOrientationSnapshot persists a new orientation snapshot. Snapshots
// are append-only and monotonically timestamped; ties are broken by
// insertion id (autoincrement primary key), satisfying §8 invariant 1.
func (s *Store) InsertOrientationSnapshot(o types.Orientation) (int64, error) {
	salJSON, err := json.Marshal(o.SalienceMap)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal salience_map", err)
	}
	anomJSON, err := json.Marshal(o.Anomalies)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal anomalies", err)
	}
	pendingJSON, err := json.Marshal(o.PendingThoughts)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal pending_thoughts", err)
	}
	moodJSON, err := json.Marshal(o.Mood)
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "marshal mood", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO orientation_snapshots(user_state, user_state_confidence, salience_map, anomalies, pending_thoughts, disposition, disposition_reason, mood, raw_synthesis, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.UserState.AsDBStr(), o.UserStateConf, string(salJSON), string(anomJSON), string(pendingJSON),
		o.Disposition.AsDBStr(), o.DispositionReason, string(moodJSON), o.RawSynthesis, formatTime(o.GeneratedAt))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "insert orientation snapshot", err)
	}
	return res.LastInsertId()
}

// RecentOrientationSnapshots returns the n most recently generated
// snapshots, newest first.
func (s *Store) RecentOrientationSnapshots(n int) ([]types.Orientation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, user_state, user_state_confidence, salience_map, anomalies, pending_thoughts, disposition, disposition_reason, mood, raw_synthesis, generated_at
		FROM orientation_snapshots ORDER BY generated_at DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query orientation snapshots", err)
	}
	defer rows.Close()

	var out []types.Orientation
	for rows.Next() {
		o, err := scanOrientation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrientation(row scanner) (*types.Orientation, error) {
	var (
		o                                             types.Orientation
		userState, disposition, generatedAt           string
		salJSON, anomJSON, pendingJSON, moodJSON       string
	)
	if err := row.Scan(&o.ID, &userState, &o.UserStateConf, &salJSON, &anomJSON, &pendingJSON,
		&disposition, &o.DispositionReason, &moodJSON, &o.RawSynthesis, &generatedAt); err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "scan orientation snapshot", err)
	}

	us, ok := types.UserStateFromDBStr(userState)
	if !ok {
		return nil, apperr.Wrap(apperr.Validation, "unknown user_state %q", userState)
	}
	o.UserState = us
	d, ok := types.DispositionFromDBStr(disposition)
	if !ok {
		return nil, apperr.Wrap(apperr.Validation, "unknown disposition %q", disposition)
	}
	o.Disposition = d

	var err error
	if o.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(salJSON), &o.SalienceMap); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(anomJSON), &o.Anomalies); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(pendingJSON), &o.PendingThoughts); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(moodJSON), &o.Mood); err != nil {
		return nil, err
	}
	return &o, nil
}
