package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"procurement/internal/metrics"
	"procurement/internal/service"
	"procurement/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBuffer      = 256
	broadcastBuffer = 1024
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers and the operator console connect from other origins; the token is the gate.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PermissionResolver returns the permissions of a role.
type PermissionResolver func(ctx context.Context, role string) (workflow.PermissionSet, error)

// Client is one connected subscriber.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	perms workflow.PermissionSet
}

type message struct {
	kind workflow.Kind
	data []byte
}

// Hub fans committed document events out to subscribers that may view the
// document's kind.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		log:        log.Named("ws"),
	}
}

// Publish queues ev for delivery. It never blocks; when the queue is full the
// event is dropped and subscribers catch up on their next refresh.
func (h *Hub) Publish(ev workflow.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("failed to encode event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- message{kind: ev.Entity.Kind, data: data}:
	default:
		metrics.WSEventsDropped.Inc()
		h.log.Warn("event queue full, dropping event",
			zap.String("type", string(ev.Type)),
			zap.String("id", ev.Entity.ID))
	}
}

// Clients reports the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run dispatches registrations and events until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WSClients.Set(0)
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WSClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
			h.log.Debug("client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("client disconnected")
			}
			metrics.WSClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		case msg := <-h.broadcast:
			view := workflow.Permission(msg.kind, workflow.VerbView)
			h.mu.Lock()
			for client := range h.clients {
				if !client.perms.Has(view) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer.
					close(client.send)
					delete(h.clients, client)
				}
			}
			metrics.WSClients.Set(float64(len(h.clients)))
			h.mu.Unlock()
		}
	}
}

// writePump writes queued events to the connection, batching whatever is
// pending into one frame separated by newlines.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and unregisters on disconnect.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.log.Warn("unexpected close", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs upgrades an authenticated request. The token comes from the
// token query parameter since browsers cannot set headers on websocket dials.
func (h *Hub) ServeWs(c *gin.Context, secret []byte, resolve PermissionResolver) {
	tokenString := c.Query("token")
	if tokenString == "" {
		h.log.Debug("connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := service.ParseToken(secret, tokenString)
	if err != nil {
		h.log.Debug("connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	perms, err := resolve(c.Request.Context(), claims.Role)
	if err != nil {
		h.log.Error("connection rejected: permission lookup failed", zap.String("role", claims.Role), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), perms: perms}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
