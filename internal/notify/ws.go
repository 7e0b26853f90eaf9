// README: WebSocket hub delivering offers and broadcasts to connected driver
// devices. One connection per driver; unknown drivers are silently skipped so
// NATS remains the durable path.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pirideshare/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub maintains the set of connected driver clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[types.ID]*client
}

type client struct {
	driverID types.ID
	conn     *websocket.Conn
	send     chan envelope
}

func NewHub() *Hub {
	return &Hub{clients: make(map[types.ID]*client)}
}

// Notify implements Notifier for a single driver's device.
func (h *Hub) Notify(_ context.Context, driverID types.ID, event Event, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[driverID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case c.send <- envelope{Event: event, Payload: payload}:
	default:
		// Slow consumer; drop the connection rather than block dispatch.
		h.drop(c)
	}
	return nil
}

// Broadcast implements Notifier for fleet-wide events.
func (h *Hub) Broadcast(_ context.Context, event Event, payload any) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- envelope{Event: event, Payload: payload}:
		default:
			h.drop(c)
		}
	}
	return nil
}

// ServeWs upgrades an authenticated driver request to a websocket connection.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, driverID types.ID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade for %s: %v", driverID, err)
		return
	}
	c := &client{driverID: driverID, conn: conn, send: make(chan envelope, 64)}

	h.mu.Lock()
	if old, ok := h.clients[driverID]; ok {
		old.conn.Close()
	}
	h.clients[driverID] = c
	h.mu.Unlock()

	go c.writePump()
	go c.readPump(h)
}

// drop unregisters the client and closes its connection. The send channel is
// never closed; closing the conn makes writePump's next write fail and exit.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.driverID]; ok && cur == c {
		delete(h.clients, c.driverID)
	}
	h.mu.Unlock()
	c.conn.Close()
}

func (c *client) readPump(h *Hub) {
	defer h.drop(c)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
