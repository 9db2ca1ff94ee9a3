package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// streamFrame is one message on the live action feed.
type streamFrame struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	ActionID  string    `json:"action_id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	Intent    string    `json:"intent,omitempty"`
}

// streamHub fans dispatch lifecycle frames out to connected websockets.
// Slow or broken clients are dropped rather than blocking the feed.
type streamHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan streamFrame
}

func newStreamHub() *streamHub {
	return &streamHub{conns: make(map[*websocket.Conn]chan streamFrame)}
}

func (h *streamHub) add(conn *websocket.Conn) chan streamFrame {
	ch := make(chan streamFrame, 64)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *streamHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// Broadcast queues the frame for every connection. A full buffer means the
// client is not keeping up; the frame is dropped for that client only.
func (h *streamHub) Broadcast(frame streamFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.conns {
		select {
		case ch <- frame:
		default:
		}
	}
}

// handleActionStream handles GET /api/v1/actions/stream, a websocket feed
// of dispatch lifecycle messages. Tenant-scoped tokens only see their own
// tenant's frames.
func (s *Server) handleActionStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	tenantFilter := ""
	if claims := requestClaims(r); claims != nil {
		tenantFilter = claims.TenantID
	}
	if q := r.URL.Query().Get("tenant_id"); tenantFilter == "" && q != "" {
		tenantFilter = q
	}

	frames := s.stream.add(conn)
	defer s.stream.remove(conn)

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.stream.remove(conn)
				return
			}
		}
	}()

	for frame := range frames {
		if tenantFilter != "" && frame.TenantID != tenantFilter {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.Security.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
