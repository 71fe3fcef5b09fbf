// Package dashboard serves live telemetry to browsers over websockets and takes command lines
// back from them.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dyluth/pigeon/internal/telemetry"
	"github.com/dyluth/pigeon/pkg/pigeon"
	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

const (
	// EventPortData is the event type of every telemetry record sent to clients.
	EventPortData = "port-data"
	// MessageCommand is the client message type carrying an input line for the robot.
	MessageCommand = "command"

	sendBuffer   = 256
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = 30 * time.Second
)

// Event is what clients receive.
type Event struct {
	Type string           `json:"type"`
	Data telemetry.Record `json:"data"`
}

// ClientMessage is what clients send.
type ClientMessage struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// Hub tracks connected websocket clients, broadcasts records to them and collects their
// commands.
type Hub struct {
	upgrader websocket.Upgrader
	log      logr.Logger
	metrics  *Metrics
	commands chan string

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. m may be nil.
func NewHub(log logr.Logger, m *Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:      log,
		metrics:  m,
		commands: make(chan string, 64),
		clients:  make(map[*client]struct{}),
	}
}

// Commands delivers command lines sent by clients. It is never closed.
func (h *Hub) Commands() <-chan string {
	return h.commands
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts rec as a port-data event. A client whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, rec telemetry.Record) error {
	data, err := json.Marshal(Event{Type: EventPortData, Data: rec})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
			h.metrics.eventSent()
		default:
			h.metrics.eventDropped()
		}
	}
	return nil
}

// ServeHTTP upgrades the request to a websocket and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.V(1).Info("websocket upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	h.log.Info("dashboard client connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)

	h.remove(c)
	h.log.Info("dashboard client disconnected", "remote", r.RemoteAddr)
}

// Close disconnects every client. The hub accepts no new clients afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.metrics.setClients(0)
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.setClients(len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.setClients(len(h.clients))
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(pigeon.LineSize * 4)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != MessageCommand {
			h.log.V(1).Info("ignoring client message", "message", string(data))
			continue
		}
		line := strings.TrimSpace(msg.Line)
		if _, err := pigeon.ParseRequest(line); err != nil {
			continue
		}

		select {
		case h.commands <- line:
			h.metrics.commandReceived()
		default:
			h.log.Info("command queue full, dropping command", "line", line)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
