package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/MLTQ/Ponderer/internal/apperr"
	"github.com/MLTQ/Ponderer/internal/types"
)

// EnqueuePrivateMessage records an inbound message on the engaged-reaction
// path (§4.9.5), awaiting a reply.
func (s *Store) EnqueuePrivateMessage(m types.PrivateMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`
		INSERT INTO private_messages(channel_id, author, content, reply, processed, created_at)
		VALUES (?, ?, ?, NULL, 0, ?)
	`, m.ChannelID, m.Author, m.Content, formatTime(m.CreatedAt))
	if err != nil {
		return 0, apperr.WrapErr(apperr.Storage, "enqueue private message", err)
	}
	return res.LastInsertId()
}

// UnprocessedPrivateMessages returns every message not yet answered, oldest
// first.
func (s *Store) UnprocessedPrivateMessages() ([]types.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, channel_id, author, content, reply, processed, created_at
		FROM private_messages WHERE processed = 0 ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query unprocessed private messages", err)
	}
	defer rows.Close()

	var out []types.PrivateMessage
	for rows.Next() {
		m, err := scanPrivateMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// AnswerPrivateMessage atomically records the agent's reply and flips the
// message to processed, so a crash mid-reply never leaves a message both
// answered and still queued.
func (s *Store) AnswerPrivateMessage(id int64, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE private_messages SET reply=?, processed=1 WHERE id=?`, reply, id)
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "answer private message", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.Wrap(apperr.Storage, "private message %d not found", id)
	}
	return nil
}

// ConversationSummary is one distinct channel's most recent activity, for
// the GET /v1/conversations listing (§6.1).
type ConversationSummary struct {
	ChannelID     string `json:"channel_id"`
	LastMessage   string `json:"last_message"`
	LastMessageAt string `json:"last_message_at"`
	MessageCount  int    `json:"message_count"`
}

// ListConversations returns one summary row per distinct channel_id, most
// recently active first.
func (s *Store) ListConversations() ([]ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT channel_id, content, created_at, COUNT(*) OVER (PARTITION BY channel_id)
		FROM private_messages m
		WHERE created_at = (SELECT MAX(created_at) FROM private_messages WHERE channel_id = m.channel_id)
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "list conversations", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		if err := rows.Scan(&c.ChannelID, &c.LastMessage, &c.LastMessageAt, &c.MessageCount); err != nil {
			return nil, apperr.WrapErr(apperr.Storage, "scan conversation summary", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MessagesByChannel returns every message on one channel, oldest first.
func (s *Store) MessagesByChannel(channelID string) ([]types.PrivateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`
		SELECT id, channel_id, author, content, reply, processed, created_at
		FROM private_messages WHERE channel_id = ? ORDER BY created_at ASC
	`, channelID)
	if err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "query messages by channel", err)
	}
	defer rows.Close()

	var out []types.PrivateMessage
	for rows.Next() {
		m, err := scanPrivateMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// RecordTurnPrompt stores the exact prompt payload used for a private-chat
// turn, so GET /v1/turns/:id/prompt (§6.1) can return it verbatim later.
func (s *Store) RecordTurnPrompt(messageID int64, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO turn_prompts(message_id, prompt, created_at) VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET prompt=excluded.prompt, created_at=excluded.created_at
	`, messageID, prompt, formatTime(time.Now()))
	if err != nil {
		return apperr.WrapErr(apperr.Storage, "record turn prompt", err)
	}
	return nil
}

// TurnPrompt returns the stored prompt for a turn, identified by its
// private_messages id.
func (s *Store) TurnPrompt(messageID int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prompt string
	err := s.db.QueryRow(`SELECT prompt FROM turn_prompts WHERE message_id = ?`, messageID).Scan(&prompt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, apperr.WrapErr(apperr.Storage, "query turn prompt", err)
	}
	return prompt, true, nil
}

func scanPrivateMessage(row scanner) (*types.PrivateMessage, error) {
	var (
		m             types.PrivateMessage
		reply         *string
		processedInt  int
		createdAt     string
	)
	if err := row.Scan(&m.ID, &m.ChannelID, &m.Author, &m.Content, &reply, &processedInt, &createdAt); err != nil {
		return nil, apperr.WrapErr(apperr.Storage, "scan private message", err)
	}
	m.Reply = reply
	m.Processed = processedInt != 0
	var err error
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}
