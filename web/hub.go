package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gum798/CoinCompass/monitor"
	"github.com/gum798/CoinCompass/utilities"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is the envelope pushed to websocket clients.
type Event struct {
	Type string      `json:"type"` // "data_update" | "alert"
	Data interface{} `json:"data"`
}

// Hub fans snapshot and alert events out to all connected websocket clients.
// It implements monitor.Sink, so the scheduler pushes into it every tick.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *utilities.Logger

	mu   sync.RWMutex
	last []byte // latest data_update frame, replayed to new clients
}

func NewHub(logger *utilities.Logger) *Hub {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// Run processes register/unregister/broadcast events until the channel world
// shuts down with the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.LogDebug("Hub: client connected (%d total)", len(h.clients))

			// Replay the latest snapshot so the new client renders immediately.
			h.mu.RLock()
			last := h.last
			h.mu.RUnlock()
			if last != nil {
				select {
				case client.send <- last:
				default:
				}
			}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.LogDebug("Hub: client disconnected (%d total)", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// PublishSnapshot implements monitor.Sink.
func (h *Hub) PublishSnapshot(snap monitor.Snapshot) {
	frame, err := json.Marshal(Event{Type: "data_update", Data: snap})
	if err != nil {
		h.logger.LogError("Hub: could not marshal snapshot: %v", err)
		return
	}
	h.mu.Lock()
	h.last = frame
	h.mu.Unlock()

	select {
	case h.broadcast <- frame:
	default:
		h.logger.LogWarn("Hub: broadcast buffer full, dropping snapshot frame")
	}
}

// PublishAlert implements monitor.Sink.
func (h *Hub) PublishAlert(alert monitor.Alert) {
	frame, err := json.Marshal(Event{Type: "alert", Data: alert})
	if err != nil {
		h.logger.LogError("Hub: could not marshal alert: %v", err)
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.logger.LogWarn("Hub: broadcast buffer full, dropping alert frame")
	}
}

// Client is one websocket connection with its buffered outbound queue.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames (the dashboard is push-only) but keeps the
// connection's read side alive for pong handling.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.LogDebug("Hub: websocket read error: %v", err)
			}
			break
		}
	}
}

// writePump drains the send queue to the connection and pings on a timer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// serveWS upgrades an HTTP request to a websocket and attaches it to the hub.
func serveWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.LogWarn("Hub: websocket upgrade failed: %v", err)
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
