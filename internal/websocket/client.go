// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// clientIDCounter orders clients for deterministic broadcast.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id      uint64
	hub     *Hub
	router  *Router
	ws      *websocket.Conn
	conn    models.Connection
	send    chan Message
	limiter *rate.Limiter
	maxSize int64

	registered     chan struct{}
	registeredOnce sync.Once
	slow           atomic.Bool
}

// NewClient creates a client for an authenticated socket. ws may be nil in
// tests that only exercise delivery.
func NewClient(hub *Hub, router *Router, ws *websocket.Conn, conn models.Connection, cfg config.WebSocketConfig) *Client {
	perSecond := cfg.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 20
	}
	maxSize := cfg.MaxMessageSize
	if maxSize <= 0 {
		maxSize = maxMessageSize
	}
	return &Client{
		id:         clientIDCounter.Add(1),
		hub:        hub,
		router:     router,
		ws:         ws,
		conn:       conn,
		send:       make(chan Message, sendBuffer),
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		maxSize:    maxSize,
		registered: make(chan struct{}),
	}
}

// ID returns the client's ordering key.
func (c *Client) ID() uint64 {
	return c.id
}

// Connection returns the session identity of the client.
func (c *Client) Connection() models.Connection {
	return c.conn
}

func (c *Client) markRegistered() {
	c.registeredOnce.Do(func() { close(c.registered) })
}

// Registered is closed once the hub has taken the client.
func (c *Client) Registered() <-chan struct{} {
	return c.registered
}

// enqueue queues msg without blocking. Callers hold the hub read lock, so
// send is never closed underneath. A client that cannot keep up loses the
// message and is disconnected.
func (c *Client) enqueue(msg Message) {
	select {
	case c.send <- msg:
	default:
		metrics.WSMessagesDropped.WithLabelValues("slow_client").Inc()
		if c.slow.CompareAndSwap(false, true) {
			logging.Warn().
				Str("connection_id", c.conn.ID).
				Str("message_type", msg.Type).
				Msg("websocket send buffer full, disconnecting slow client")
			if c.ws != nil {
				// readPump sees the error and unregisters.
				go func() { _ = c.ws.Close() }()
			}
		}
	}
}

// reply sends to this client through the hub, which drops the message if
// the client was already unregistered.
func (c *Client) reply(event string, payload any) {
	c.hub.SendTo(c.conn.ID, event, payload)
}

// readPump reads frames until the socket fails and routes each one.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		_ = c.ws.Close() // best-effort cleanup
	}()

	c.ws.SetReadLimit(c.maxSize)
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("connection_id", c.conn.ID).Msg("unexpected websocket close error")
			}
			return
		}
		c.handleFrame(ctx, data)
	}
}

// handleFrame decodes and routes one inbound frame.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	if !c.limiter.Allow() {
		metrics.WSMessagesDropped.WithLabelValues("rate_limited").Inc()
		c.reply(models.EventErrorMessage, errorPayload(codeRateLimited, "", "Demasiados mensajes, intenta más tarde"))
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		metrics.WSMessagesDropped.WithLabelValues("invalid").Inc()
		c.reply(models.EventErrorMessage, errorPayload(codeInvalidMessage, "", "Mensaje inválido"))
		return
	}
	metrics.WSMessagesReceived.WithLabelValues(metricType(msg.Type)).Inc()

	c.router.Dispatch(logging.ContextWithNewCorrelationID(ctx), c, msg)
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close() // best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Str("connection_id", c.conn.ID).Msg("failed to write websocket message")
				return
			}
			metrics.WSMessagesSent.Inc()

		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	ctx := logging.ContextWithConnection(context.Background(), c.conn.ID, c.conn.UserID)
	go c.writePump()
	go c.readPump(ctx)
}

// metricType bounds the label cardinality of inbound message types.
func metricType(t string) string {
	switch t {
	case models.EventAddMarker, models.EventUpdateLocation, models.EventRemoveMarker,
		models.EventConfirmMarker, models.EventDenyMarker, models.EventRequestExistingMarkers,
		models.EventPing:
		return t
	default:
		return "unknown"
	}
}
