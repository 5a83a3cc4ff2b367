package events

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MLTQ/Ponderer/internal/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades r to a WebSocket and streams every subsequent Event as
// newline-delimited JSON until the client disconnects (§6.2 `/v1/ws/events`).
// Reconnecting is the client's responsibility; this handler holds no state
// across a disconnect.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("events", "websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			logging.Debug("events", "websocket write failed, dropping subscriber: %v", err)
			return
		}
	}
}
