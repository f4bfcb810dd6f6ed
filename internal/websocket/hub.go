package livews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/services"
	"go.uber.org/zap"
)

var ErrBacklogFull = errors.New("live feed backlog is full")

// Hub fans booking events out to every connected admin dashboard.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
	logger     *zap.Logger
}

type conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	hub     *Hub
	conn    conn
	adminID string
	send    chan []byte
}

type Message struct {
	Type  string          `json:"type"`
	Event *services.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logging.OrNop(logger),
	}
}

func NewClient(hub *Hub, conn conn, adminID string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		adminID: adminID,
		send:    make(chan []byte, 32),
	}
}

// Run serves the hub until ctx is done. Afterwards Register closes the new
// client right away and Unregister is a no-op.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("live feed client connected", zap.String("admin_id", client.adminID))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case payload := <-h.broadcast:
			h.deliver(payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for every connected client. It never blocks the
// booking flow: a full backlog drops the event.
func (h *Hub) Publish(_ context.Context, event services.Event) error {
	payload, err := json.Marshal(Message{Type: "booking_event", Event: &event})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- payload:
		return nil
	default:
		return ErrBacklogFull
	}
}

func (h *Hub) deliver(payload []byte) {
	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// slow reader
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ReadPump only watches for the connection closing; admins do not send
// anything over the feed.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
