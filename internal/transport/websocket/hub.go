// Package websocket serves map clients: it forwards their input to a Handler
// and broadcasts popup, marker and view updates back to them.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/vmap/mapviewer/pkg/core"
	"github.com/vmap/mapviewer/pkg/streaming"
)

// ErrUnknownClient is returned by SendTo for ids that are not connected.
var ErrUnknownClient = errors.New("unknown client")

// Handler receives validated client messages.
type Handler interface {
	HandleMessage(clientID string, env streaming.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(clientID string, env streaming.Envelope) error

func (f HandlerFunc) HandleMessage(clientID string, env streaming.Envelope) error {
	return f(clientID, env)
}

// Config controls the upgrade.
type Config struct {
	// AllowedOrigins lists hosts allowed to connect. Empty allows same-host only.
	AllowedOrigins []string
}

// Hub tracks connected clients.
type Hub struct {
	upgrader  ws.Upgrader
	validator *streaming.Validator
	logger    *slog.Logger

	mu        sync.RWMutex
	clients   map[string]*client
	handler   Handler
	onConnect func(clientID string)
	closed    bool
	wg        sync.WaitGroup
}

// NewHub creates a hub. Messages are dropped until SetHandler is called.
func NewHub(logger *slog.Logger, cfg Config) (*Hub, error) {
	validator, err := streaming.NewValidator()
	if err != nil {
		return nil, err
	}
	h := &Hub{
		validator: validator,
		logger:    logger,
		clients:   make(map[string]*client),
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
	}
	return h, nil
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's same-host check
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, u.Host)
	}
}

// SetHandler installs the receiver of client messages.
func (h *Hub) SetHandler(handler Handler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// OnConnect registers a callback run after a client is registered.
func (h *Hub) OnConnect(fn func(clientID string)) {
	h.mu.Lock()
	h.onConnect = fn
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(uuid.NewString(), conn, h.logger)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c.id] = c
	h.wg.Add(1)
	onConnect := h.onConnect
	h.mu.Unlock()

	h.logger.Info("Client connected", "client", c.id, "remote", r.RemoteAddr)

	go c.writeLoop()
	if onConnect != nil {
		onConnect(c.id)
	}

	c.readLoop(h.receive)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
	h.wg.Done()
	h.logger.Info("Client disconnected", "client", c.id)
}

func (h *Hub) receive(c *client, raw []byte) {
	env, err := h.validator.Decode(raw)
	if err != nil {
		h.logger.Debug("Rejected client message", "client", c.id, "error", err)
		h.reply(c, streaming.ErrorMessage{Type: streaming.TypeError, Message: err.Error()})
		return
	}

	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()
	if handler == nil {
		return
	}

	if err := handler.HandleMessage(c.id, env); err != nil {
		h.reply(c, streaming.ErrorMessage{Type: streaming.TypeError, For: env.Type, Message: err.Error()})
	}
}

func (h *Hub) reply(c *client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode reply", "error", err)
		return
	}
	c.send(data)
}

// Clients returns the ids of connected clients.
func (h *Hub) Clients() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Keys(h.clients)
}

// Broadcast sends a message to every connected client.
func (h *Hub) Broadcast(msgType string, payload any) error {
	data, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	h.mu.RLock()
	targets := lo.Values(h.clients)
	h.mu.RUnlock()
	for _, c := range targets {
		c.send(data)
	}
	return nil
}

// SendTo sends a message to one client.
func (h *Hub) SendTo(clientID, msgType string, payload any) error {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}
	data, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	c.send(data)
	return nil
}

// Ack acknowledges an inbound message on the sender's connection.
func (h *Hub) Ack(clientID, msgType string, id core.MarkerID) error {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}
	h.reply(c, streaming.AckMessage{Type: streaming.TypeAck, For: msgType, ID: id})
	return nil
}

// Reject reports a failed inbound message on the sender's connection.
func (h *Hub) Reject(clientID, msgType string, err error) error {
	h.mu.RLock()
	c, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}
	h.reply(c, streaming.ErrorMessage{Type: streaming.TypeError, For: msgType, Message: err.Error()})
	return nil
}

// SetPosition broadcasts the popup placement.
func (h *Hub) SetPosition(pos core.Pixel, visible bool) {
	if err := h.Broadcast(streaming.TypePopupPosition, streaming.PopupPositionPayload{
		Visible: visible,
		X:       pos.X,
		Y:       pos.Y,
	}); err != nil {
		h.logger.Error("Failed to broadcast popup position", "error", err)
	}
}

// SetContent broadcasts the popup body.
func (h *Hub) SetContent(html string) {
	if err := h.Broadcast(streaming.TypePopupContent, streaming.PopupContentPayload{HTML: html}); err != nil {
		h.logger.Error("Failed to broadcast popup content", "error", err)
	}
}

// Close disconnects every client and waits for their handlers to return.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := lo.Values(h.clients)
	h.mu.Unlock()
	for _, c := range targets {
		c.close()
	}
	h.wg.Wait()
}
