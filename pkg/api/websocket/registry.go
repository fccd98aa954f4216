package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/internal/constants"
	applog "github.com/0xmhha/token-screener/internal/logger"
	"github.com/0xmhha/token-screener/pkg/metrics"
)

const (
	// DefaultMaxClients is the maximum number of concurrent WebSocket clients
	DefaultMaxClients = 10000
)

type outbound struct {
	channel Channel
	data    []byte
}

// Registry owns the live clients of every channel. It is created by the
// server process and passed to the Broadcaster; nothing about it is global.
type Registry struct {
	clients map[Channel]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound

	// done signals the Run goroutine to exit
	done     chan struct{}
	stopOnce sync.Once

	maxClients int
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewRegistry creates a registry; call Run to start it
func NewRegistry(logger *zap.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		clients: map[Channel]map[*Client]struct{}{
			ChannelGeneral: {},
			ChannelAdmin:   {},
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, constants.DefaultBroadcastBuffer),
		done:       make(chan struct{}),
		maxClients: DefaultMaxClients,
		logger:     applog.WithComponent(logger, "ws-registry"),
		metrics:    m,
	}
}

// Run runs the registry event loop. It exits when Stop() is called.
func (r *Registry) Run() {
	for {
		select {
		case <-r.done:
			return

		case client := <-r.register:
			r.mu.Lock()
			if r.totalLocked() >= r.maxClients {
				r.mu.Unlock()
				r.logger.Warn("max clients reached, rejecting connection",
					zap.Int("max_clients", r.maxClients))
				close(client.send)
				continue
			}
			r.clients[client.channel][client] = struct{}{}
			count := len(r.clients[client.channel])
			r.mu.Unlock()
			r.metrics.UpdateWSClients(string(client.channel), count)
			r.logger.Info("client registered",
				zap.String("id", client.id),
				zap.String("channel", string(client.channel)),
				zap.Int("channel_clients", count))

		case client := <-r.unregister:
			r.mu.Lock()
			r.removeLocked(client)
			count := len(r.clients[client.channel])
			r.mu.Unlock()
			r.metrics.UpdateWSClients(string(client.channel), count)
			r.logger.Info("client unregistered",
				zap.String("id", client.id),
				zap.String("channel", string(client.channel)))

		case msg := <-r.broadcast:
			r.deliver(msg)
		}
	}
}

// Register queues a client for registration
func (r *Registry) Register(c *Client) {
	select {
	case r.register <- c:
	case <-r.done:
		close(c.send)
	}
}

// Unregister queues a client for removal
func (r *Registry) Unregister(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Broadcast queues data for every client of channel.
// It never blocks; it reports false when the queue is full.
func (r *Registry) Broadcast(channel Channel, data []byte) bool {
	select {
	case r.broadcast <- outbound{channel: channel, data: data}:
		return true
	default:
		r.logger.Warn("broadcast queue full, dropping message",
			zap.String("channel", string(channel)))
		r.metrics.RecordBroadcastDropped(string(channel))
		return false
	}
}

// deliver sends to each client without waiting; slow clients are dropped
func (r *Registry) deliver(msg outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := 0
	for client := range r.clients[msg.channel] {
		select {
		case client.send <- msg.data:
			sent++
		default:
			r.logger.Warn("client buffer full, closing connection",
				zap.String("id", client.id))
			r.metrics.RecordBroadcastDropped(string(msg.channel))
			r.removeLocked(client)
		}
	}
	r.metrics.UpdateWSClients(string(msg.channel), len(r.clients[msg.channel]))

	r.logger.Debug("message broadcasted",
		zap.String("channel", string(msg.channel)),
		zap.Int("recipients", sent))
}

func (r *Registry) removeLocked(c *Client) {
	if _, ok := r.clients[c.channel][c]; ok {
		delete(r.clients[c.channel], c)
		close(c.send)
	}
}

func (r *Registry) totalLocked() int {
	n := 0
	for _, set := range r.clients {
		n += len(set)
	}
	return n
}

// ClientCount returns the number of clients on channel
func (r *Registry) ClientCount(channel Channel) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients[channel])
}

// Stop stops the registry and closes all client connections.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)

		r.mu.Lock()
		defer r.mu.Unlock()
		for _, set := range r.clients {
			for client := range set {
				close(client.send)
				delete(set, client)
			}
		}
		r.logger.Info("websocket registry stopped")
	})
}
