package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MLTQ/Ponderer/internal/types"
)

type agentStatusResponse struct {
	Paused            bool              `json:"paused"`
	HasOrientation    bool              `json:"has_orientation"`
	UserState         types.UserState   `json:"user_state,omitempty"`
	Disposition       types.Disposition `json:"disposition,omitempty"`
	DispositionReason string            `json:"disposition_reason,omitempty"`
	LastOrientedAt    time.Time         `json:"last_oriented_at,omitempty"`
}

func (srv *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := agentStatusResponse{Paused: srv.sched.Paused()}

	snaps, err := srv.store.RecentOrientationSnapshots(1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(snaps) > 0 {
		latest := snaps[0]
		resp.HasOrientation = true
		resp.UserState = latest.UserState
		resp.Disposition = latest.Disposition
		resp.DispositionReason = latest.DispositionReason
		resp.LastOrientedAt = latest.GeneratedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *Server) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	paused := srv.sched.TogglePause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (srv *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		convos, err := srv.store.ListConversations()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, convos)
	case http.MethodPost:
		var body struct {
			ChannelID string `json:"channel_id"`
			Author    string `json:"author"`
			Content   string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ChannelID == "" || body.Content == "" {
			writeError(w, http.StatusBadRequest, "channel_id and content are required")
			return
		}
		id, err := srv.store.EnqueuePrivateMessage(types.PrivateMessage{
			ChannelID: body.ChannelID,
			Author:    body.Author,
			Content:   body.Content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleConversationMessages serves GET/POST /v1/conversations/:id/messages.
func (srv *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/conversations/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "messages" || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	channelID := parts[0]

	switch r.Method {
	case http.MethodGet:
		msgs, err := srv.store.MessagesByChannel(channelID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	case http.MethodPost:
		var body struct {
			Author  string `json:"author"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		id, err := srv.store.EnqueuePrivateMessage(types.PrivateMessage{
			ChannelID: channelID,
			Author:    body.Author,
			Content:   body.Content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTurnPrompt serves GET /v1/turns/:id/prompt.
func (srv *Server) handleTurnPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/turns/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "prompt" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid turn id")
		return
	}
	prompt, ok, err := srv.store.TurnPrompt(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no prompt recorded for this turn")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"prompt": prompt})
}
