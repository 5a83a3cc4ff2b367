package store

import (
	"encoding/json"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// AppendJournalEntry inserts a new, immutable journal entry. Journal entries
// are append-only: there is no UpdateJournalEntry.
func (s *Store) AppendJournalEntry(e types.JournalEntry) error {
	ctxJSON, err := json.Marshal(e.Context)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal journal context", err)
	}
	relJSON, err := json.Marshal(e.RelatedConcerns)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "marshal related_concerns", err)
	}
	var moodJSON []byte
	if e.MoodAtTime != nil {
		moodJSON, err = json.Marshal(e.MoodAtTime)
		if err != nil {
			return apperr.WrapErr(apperr.Storage, "marshal mood_at_time", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`
		INSERT INTO journal_entries(id, timestamp, entry_type, content, context, related_concerns, mood_at_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, formatTime(e.Timestamp), e.EntryType.AsDBStr(), e.Content, string(ctxJSON), string(relJSON), nullableString(moodJSON))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "append journal entry", err)
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// RecentJournalEntries returns the most recent n entries, newest first.
func (s *Store) RecentJournalEntries(n int) ([]types.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, timestamp, entry_type, content, context, related_concerns, mood_at_time
		FROM journal_entries ORDER BY timestamp DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query journal entries", err)
	}
	defer rows.Close()

	var out []types.JournalEntry
	for rows.Next() {
		var (
			e                        types.JournalEntry
			ts, entryType            string
			ctxJSON, relJSON         string
			moodJSON                 *string
		)
		if err := rows.Scan(&e.ID, &ts, &entryType, &e.Content, &ctxJSON, &relJSON, &moodJSON); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan journal entry", err)
		}
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		et, ok := types.EntryTypeFromDBStr(entryType)
		if !ok {
			return nil, apperr.Wrap(apperr.Validation, "unknown entry_type %q", entryType)
		}
		e.EntryType = et
		if err := json.Unmarshal([]byte(ctxJSON), &e.Context); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(relJSON), &e.RelatedConcerns); err != nil {
			return nil, err
		}
		if moodJSON != nil {
			var m types.Mood
			if err := json.Unmarshal([]byte(*moodJSON), &m); err != nil {
				return nil, err
			}
			e.MoodAtTime = &m
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastJournalEntryTime returns the timestamp of the most recent journal
// entry, for the Journal Engine's rate-limit check. ok is false if the
// journal is empty.
func (s *Store) LastJournalEntryTime() (when time.Time, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	row := s.db.QueryRow(`SELECT timestamp FROM journal_entries ORDER BY timestamp DESC LIMIT 1`)
	if scanErr := row.Scan(&raw); scanErr != nil {
		return time.Time{}, false, nil // no rows is not an error here
	}
	when, err = parseTime(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return when, true, nil
}
