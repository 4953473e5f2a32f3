// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message is the envelope of every outbound frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage keeps the payload raw until the router knows its type.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SessionHandler is told about connections entering and leaving the hub.
// It is called from the hub goroutine without any hub lock held.
type SessionHandler interface {
	OnConnect(conn models.Connection)
	OnDisconnect(connectionID string)
}

// Hub tracks connected clients and delivers outbound events to them.
//
// Delivery never blocks: each client has a buffered send channel and a
// message that does not fit is dropped and the client is disconnected. The
// proximity engine emits while holding its own lock, so this is what keeps
// a slow socket from stalling the map.
type Hub struct {
	clients    map[*Client]bool
	byConnID   map[string]*Client
	seenUsers  map[string]struct{}
	sessions   SessionHandler
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex

	// done is closed once the hub has stopped and no longer reads
	// Register or Unregister.
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new Hub. sessions may be nil.
func NewHub(sessions SessionHandler) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byConnID:   make(map[string]*Client),
		seenUsers:  make(map[string]struct{}),
		sessions:   sessions,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RunWithContext processes registrations until ctx is canceled, then
// closes every client. It is run by the supervisor.
//
// Lifecycle events are drained before checking for shutdown again so a
// client registered just before cancellation is still closed cleanly.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.stop(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.stop(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		}
	}
}

func (h *Hub) stop(ctx context.Context) {
	h.logGracefulShutdown(ctx)
	h.stopOnce.Do(func() { close(h.done) })
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// leave hands c to the hub for unregistration. It returns at once when
// the hub has already shut down, since shutdown closed every client.
func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.byConnID[client.conn.ID] = client
	h.seenUsers[client.conn.UserID] = struct{}{}
	total, registered := len(h.clients), len(h.seenUsers)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	if h.sessions != nil {
		h.sessions.OnConnect(client.conn)
	}

	h.SendTo(client.conn.ID, models.EventAuthSuccess, models.AuthSuccess{
		Message: "Socket conectado exitosamente",
		User:    models.UserInfo{ID: client.conn.UserID, Username: client.conn.Username},
	})
	h.Broadcast(models.EventUserOnline, models.UserPresence{
		UserID:         client.conn.UserID,
		Username:       client.conn.Username,
		TotalConnected: total,
		TotalUsers:     registered,
	})
	client.markRegistered()

	logging.Info().
		Str("connection_id", client.conn.ID).
		Str("user_id", client.conn.UserID).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	delete(h.byConnID, client.conn.ID)
	close(client.send)
	total, registered := len(h.clients), len(h.seenUsers)
	h.mu.Unlock()

	metrics.WSConnections.Set(float64(total))
	if h.sessions != nil {
		h.sessions.OnDisconnect(client.conn.ID)
	}
	h.Broadcast(models.EventUserOffline, models.UserPresence{
		UserID:         client.conn.UserID,
		Username:       client.conn.Username,
		TotalConnected: total,
		TotalUsers:     registered,
	})

	logging.Info().
		Str("connection_id", client.conn.ID).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// logGracefulShutdown closes all clients and logs the shutdown. The context
// error is not logged as an error since cancellation is the normal path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClientsLocked returns clients in connection order. Callers hold mu.
func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// closeAllClients closes every client in connection order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := h.sortedClientsLocked()
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		delete(h.byConnID, client.conn.ID)
	}
	h.mu.Unlock()

	metrics.WSConnections.Set(0)
	if h.sessions != nil {
		for _, client := range clients {
			h.sessions.OnDisconnect(client.conn.ID)
		}
	}
}

// SendTo delivers an event to one connection. Unknown connections are
// ignored.
func (h *Hub) SendTo(connectionID, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.byConnID[connectionID]; ok {
		client.enqueue(Message{Type: event, Data: payload})
	}
}

// Broadcast delivers an event to every connection.
func (h *Hub) Broadcast(event string, payload any) {
	h.BroadcastExcept("", event, payload)
}

// BroadcastExcept delivers an event to every connection but one.
func (h *Hub) BroadcastExcept(connectionID, event string, payload any) {
	msg := Message{Type: event, Data: payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.sortedClientsLocked() {
		if client.conn.ID == connectionID {
			continue
		}
		client.enqueue(msg)
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetUserCount returns the number of distinct users seen since start.
func (h *Hub) GetUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.seenUsers)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
