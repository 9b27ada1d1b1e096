// Package notify is the operator notification sink (spec §4.8 "emit a
// notification"). Adapted from ws/ws.go's SocketHub: same upgrade/broadcast
// shape, generalized from a command dispatcher into a broadcast-only event
// hub since nothing here needs to route inbound client commands.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ripcoord/ripcoord/pkg/logger"
)

var log = logger.Get("Notify")

// Event is one notification pushed to connected operators.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	DiscID  string `json:"disc_id,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// Sink accepts notifications; Hub is the production implementation, tests
// can substitute a recording fake.
type Sink interface {
	Notify(e Event)
}

// Hub broadcasts events to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// UpgradeAndRegister upgrades an incoming HTTP request to a websocket and
// tracks the connection until it closes.
func (h *Hub) UpgradeAndRegister(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.readUntilClose(conn)
	return nil
}

func (h *Hub) readUntilClose(conn *websocket.Conn) {
	defer h.deregister(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) deregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// Notify pushes e to every connected client, dropping any that error.
func (h *Hub) Notify(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Errorf("marshal notification: %s", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Warnf("dropping notification client: %s", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
