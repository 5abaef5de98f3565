package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/technosupport/campus-presence/internal/tokens"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsSink adapts a *websocket.Conn to Sink. Writes are serialized with a
// mutex since gorilla/websocket forbids concurrent writers on one
// connection.
type wsSink struct {
	id   string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) ID() string { return s.id }

func (s *wsSink) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *wsSink) SendBinary(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, b)
}

// Handler upgrades HTTP connections and wires them into a Hub namespace.
// One Handler instance is bound to one namespace.
type Handler struct {
	hub    *Hub
	ns     string
	tokens *tokens.Manager
}

func NewHandler(hub *Hub, ns string, tm *tokens.Manager) *Handler {
	return &Handler{hub: hub, ns: ns, tokens: tm}
}

// keyFunc extracts the subscription key (room id, camera id, or "" for the
// global namespace) from the request, e.g. via mux path params.
type KeyFunc func(r *http.Request) string

func (h *Handler) ServeWS(keyFn KeyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := h.tokens.ValidateToken(tokenStr); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("broadcast: ws upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		key := keyFn(r)
		sink := &wsSink{id: uuid.New().String(), conn: conn}
		h.hub.Subscribe(h.ns, key, sink)
		defer h.hub.Unsubscribe(h.ns, key, sink.id)

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var payload map[string]any
			if err := json.Unmarshal(msg, &payload); err != nil {
				continue
			}
			if payload["type"] == "ping" {
				_ = sink.SendJSON(PingEvent{Type: "pong"})
			}
		}
	}
}
