// Package httpapi implements the §6.1 REST surface over plain net/http,
// the way internal/mcp/server.go's RunHTTP mode serves JSON-RPC: a bare
// ServeMux with no framework, one handler function per route.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/MLTQ/Ponderer/internal/config"
	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/scheduler"
	"github.com/MLTQ/Ponderer/internal/store"
	"github.com/MLTQ/Ponderer/internal/toolgate"
)

// Server wires the REST surface and the event-stream WebSocket to a running
// Scheduler and its store.
type Server struct {
	store       *store.Store
	sched       *scheduler.Scheduler
	gate        *toolgate.Gate
	broadcaster *events.Broadcaster
	configPath  string
}

// New constructs a Server. gate may be nil when no capability gate is
// wired (tool approval then always responds 503 Service Unavailable).
func New(s *store.Store, sched *scheduler.Scheduler, gate *toolgate.Gate, bcast *events.Broadcaster, configPath string) *Server {
	return &Server{store: s, sched: sched, gate: gate, broadcaster: bcast, configPath: configPath}
}

// Handler builds the ServeMux routing every §6.1/§6.2 endpoint.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/health", srv.handleHealth)
	mux.HandleFunc("/v1/agent/status", srv.handleAgentStatus)
	mux.HandleFunc("/v1/agent/toggle-pause", srv.handleTogglePause)
	mux.HandleFunc("/v1/conversations", srv.handleConversations)
	mux.HandleFunc("/v1/conversations/", srv.handleConversationMessages)
	mux.HandleFunc("/v1/turns/", srv.handleTurnPrompt)
	mux.HandleFunc("/v1/config", srv.handleConfig)
	mux.HandleFunc("/v1/tools/approve", srv.handleToolApprove)
	mux.HandleFunc("/v1/ws/events", srv.broadcaster.ServeWS)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("httpapi", "encode response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (srv *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cfg, err := config.Load(srv.configPath)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	case http.MethodPost:
		var cfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid config body")
			return
		}
		if err := cfg.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := config.Save(srv.configPath, cfg); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (srv *Server) handleToolApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Tool string `json:"tool"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tool == "" {
		writeError(w, http.StatusBadRequest, "tool name required")
		return
	}
	if srv.gate == nil {
		writeError(w, http.StatusServiceUnavailable, "no capability gate configured")
		return
	}
	srv.gate.ApproveTool(body.Tool)
	writeJSON(w, http.StatusOK, map[string]string{"tool": body.Tool, "status": "approved"})
}
