package push

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const defaultWriteTimeout = 5 * time.Second

// Hub handles WebSocket connections grouped by user.
type Hub struct {
	mu           sync.RWMutex
	clients      map[int64]map[string]*client
	writeTimeout time.Duration
}

type client struct {
	id     string
	userID int64
	conn   *websocket.Conn
	wmu    sync.Mutex // gorilla allows one concurrent writer
}

var _ Notifier = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[string]*client), writeTimeout: defaultWriteTimeout}
}

// Register adds a connection for userID and returns its id.
func (h *Hub) Register(userID int64, conn *websocket.Conn) string {
	c := &client{id: uuid.NewString(), userID: userID, conn: conn}
	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[string]*client)
	}
	h.clients[userID][c.id] = c
	total := len(h.clients[userID])
	h.mu.Unlock()
	log.WithFields(log.Fields{"user_id": userID, "conn_id": c.id, "user_conns": total}).Info("websocket client connected")
	return c.id
}

// Unregister removes and closes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(userID int64, connID string) {
	h.mu.Lock()
	c, ok := h.clients[userID][connID]
	if ok {
		delete(h.clients[userID], connID)
		if len(h.clients[userID]) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		log.WithFields(log.Fields{"user_id": userID, "conn_id": connID}).Info("websocket client disconnected")
	}
}

// Serve registers conn and blocks reading until the peer goes away.
// Inbound messages are discarded; reading is what surfaces close frames.
func (h *Hub) Serve(userID int64, conn *websocket.Conn) {
	id := h.Register(userID, conn)
	defer h.Unregister(userID, id)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Connections returns how many live connections userID has.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Notify writes n to every connection of userID. Broken connections are
// dropped. Having no connections is not an error.
func (h *Hub) Notify(ctx context.Context, userID int64, n Notification) error {
	payload, err := Encode(n)
	if err != nil {
		return err
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		werr := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.wmu.Unlock()
		if werr != nil {
			log.WithFields(log.Fields{"user_id": userID, "conn_id": c.id, "error": werr}).Warn("error sending message to client")
			h.Unregister(userID, c.id)
		}
	}
	return nil
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[int64]map[string]*client)
	h.mu.Unlock()
	for _, conns := range all {
		for _, c := range conns {
			c.conn.Close()
		}
	}
}
