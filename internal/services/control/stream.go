package control

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeonardoBeccarini/farmsim/internal/model/messages"
	"github.com/LeonardoBeccarini/farmsim/internal/simulation"
)

const (
	writeWait   = 5 * time.Second
	sendBacklog = 16
)

// streamMessage is every frame the server sends on /ws.
type streamMessage struct {
	Type     string                  `json:"type"` // "snapshot" or "result"
	Snapshot *messages.Snapshot      `json:"snapshot,omitempty"`
	Result   *messages.CommandResult `json:"result,omitempty"`
}

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub streams every refreshed snapshot to the connected websocket clients and accepts
// commands from them. A slow client loses frames rather than slowing the refresh.
type Hub struct {
	ctrl     *Controller
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*streamClient]struct{}
}

var _ simulation.Sink = (*Hub)(nil)

func NewHub(ctrl *Controller) *Hub {
	return &Hub{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Consume(_ context.Context, snap messages.Snapshot) error {
	data, err := json.Marshal(streamMessage{Type: "snapshot", Snapshot: &snap})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades the request, sends the current snapshot and then relays refreshes
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("control: ws upgrade failed: %v", err)
		return
	}

	c := &streamClient{conn: conn, send: make(chan []byte, sendBacklog)}
	snap := h.ctrl.Snapshot()
	if data, err := json.Marshal(streamMessage{Type: "snapshot", Snapshot: &snap}); err == nil {
		c.send <- data
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go h.writeLoop(c, done)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
	_ = conn.Close()
}

func (h *Hub) writeLoop(c *streamClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

// readLoop applies every command frame and queues its result on the same connection.
func (h *Hub) readLoop(c *streamClient) {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd messages.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("control: discarding malformed ws message: %v", err)
			continue
		}
		res, _ := h.ctrl.Apply(cmd)
		data, err := json.Marshal(streamMessage{Type: "result", Result: &res})
		if err != nil {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}
