package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriteTimeout bounds every frame write so a dead client cannot wedge the
// writer.
const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The bridge serves a LAN dashboard; same-origin enforcement is left to
	// the deployment's reverse proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket streams the status document once per second until the
// client goes away. The same device selection rules as /api/status apply.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID != "" {
		if _, ok := s.manager.Poller(deviceID); !ok {
			writeNotFound(w, "unknown device: "+deviceID)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	pingInterval := time.Duration(s.cfg.WebSocket.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pongTimeout := time.Duration(s.cfg.WebSocket.PongTimeout) * time.Second
	if pongTimeout <= 0 {
		pongTimeout = 10 * time.Second
	}

	//nolint:errcheck // Deadline setup on a fresh connection.
	conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))
	})

	// The read loop only consumes control frames; its exit means the client
	// closed or timed out.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	statusTicker := time.NewTicker(time.Second)
	defer statusTicker.Stop()
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-pingTicker.C:
			//nolint:errcheck // A failed ping surfaces as a read error.
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-statusTicker.C:
			//nolint:errcheck
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(s.wsStatus(deviceID)); err != nil {
				return
			}
		}
	}
}

// wsStatus builds the frame payload: one device's status, or the fleet map
// when no target resolves to a single device.
func (s *Server) wsStatus(deviceID string) any {
	if deviceID != "" {
		if p, ok := s.manager.Poller(deviceID); ok {
			return s.statusFor(p)
		}
		return map[string]any{"error": "device removed"}
	}

	pollers := s.manager.Pollers()
	if len(pollers) == 1 {
		for _, p := range pollers {
			return s.statusFor(p)
		}
	}
	out := make(map[string]deviceStatus, len(pollers))
	for id, p := range pollers {
		out[id] = s.statusFor(p)
	}
	return map[string]any{"devices": out, "ts": time.Now().UTC()}
}
