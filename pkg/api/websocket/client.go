package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Client is one WebSocket connection attached to a channel
type Client struct {
	id       string
	channel  Channel
	registry *Registry
	conn     *websocket.Conn
	send     chan []byte
	logger   *zap.Logger
}

// NewClient creates a client for conn on channel
func NewClient(registry *Registry, conn *websocket.Conn, channel Channel, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		channel:  channel,
		registry: registry,
		conn:     conn,
		send:     make(chan []byte, constants.DefaultClientSendBuffer),
		logger:   logger.With(zap.String("client_id", id)),
	}
}

// ID returns the client identifier
func (c *Client) ID() string {
	return c.id
}

// ReadPump reads client frames until the connection closes.
// Clients only ever send pings; everything else is answered with an error.
func (c *Client) ReadPump() {
	defer func() {
		c.registry.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes queued messages and keepalive pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The registry closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame so clients can parse each as JSON
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendEnvelope(Envelope{Type: TypeError, Data: ErrorMessage{Error: "invalid message format"}})
		return
	}

	switch msg.Type {
	case TypePing:
		c.sendEnvelope(Envelope{Type: TypePong})
	default:
		c.sendEnvelope(Envelope{Type: TypeError, Data: ErrorMessage{Error: "unknown message type: " + msg.Type}})
	}
}

func (c *Client) sendEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	// The registry may close send concurrently on shutdown or eviction.
	defer func() { _ = recover() }()
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message")
	}
}
