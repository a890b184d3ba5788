// Package relay implements the real-time chat relay: a WebSocket hub where
// connections join chat rooms and fan sendMessage frames out to the other
// members of the room.
//
// Delivery is at-most-once. Every connection has a bounded outbound buffer
// and a frame that does not fit is dropped for that connection only.
package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/gorilla/websocket"
)

// ErrHubClosed is returned by ServeWS after Close.
var ErrHubClosed = errors.New("relay hub closed")

// Authorizer decides whether a user may join a chat room.
type Authorizer interface {
	CanJoin(ctx context.Context, chatID, userID string) error
}

// Hub owns the room table. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool

	authorizer Authorizer
	logger     logging.Logger
	metrics    *metrics.Metrics
	sendBuffer int
	upgrader   websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(a Authorizer, logger logging.Logger, m *metrics.Metrics, sendBuffer int) *Hub {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Hub{
		rooms:      map[string]map[*Client]struct{}{},
		clients:    map[*Client]struct{}{},
		authorizer: a,
		logger:     logger.With("module", "relay"),
		metrics:    m,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the API is served to any origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled or Close is called and then closes
// every connection.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info(ctx, "Starting relay hub")

	select {
	case <-ctx.Done():
	case <-h.done:
	}

	h.logger.Info(ctx, "Stopping relay hub...")
	h.Close()
	return nil
}

// Close disconnects all clients. Further upgrades are refused.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		clients := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			clients = append(clients, c)
		}
		h.mu.Unlock()

		close(h.done)
		for _, c := range clients {
			c.close()
		}
	})
}

// ServeWS upgrades the request and serves the connection for userID until
// it disconnects. The caller is responsible for authenticating userID.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "relay is shutting down", http.StatusServiceUnavailable)
		return ErrHubClosed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the response.
		return err
	}

	c := newClient(h, conn, userID)
	if !h.register(c) {
		conn.Close()
		return ErrHubClosed
	}
	defer h.unregister(c)

	ctx := r.Context()
	h.logger.Debug(ctx, "relay connection opened", "user_id", userID)

	go c.writePump()
	c.readPump(ctx)

	h.logger.Debug(ctx, "relay connection closed", "user_id", userID)
	return nil
}

// RoomSize returns the number of connections joined to chatID.
func (h *Hub) RoomSize(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[chatID])
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.RelayConnections.Inc()
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		for chatID := range c.rooms {
			h.removeFromRoom(c, chatID)
		}
		h.metrics.RelayConnections.Dec()
	}
	h.mu.Unlock()

	c.close()
}

// join checks membership with the authorizer and adds c to the room.
func (h *Hub) join(ctx context.Context, c *Client, chatID string) error {
	if err := h.authorizer.CanJoin(ctx, chatID, c.userID); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return ErrHubClosed
	}
	room, ok := h.rooms[chatID]
	if !ok {
		room = map[*Client]struct{}{}
		h.rooms[chatID] = room
	}
	room[c] = struct{}{}
	c.rooms[chatID] = struct{}{}
	return nil
}

func (h *Hub) leave(c *Client, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, chatID)
}

// removeFromRoom requires h.mu held for writing.
func (h *Hub) removeFromRoom(c *Client, chatID string) {
	delete(c.rooms, chatID)
	room := h.rooms[chatID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, chatID)
	}
}

func (h *Hub) joined(c *Client, chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[chatID]
	return ok
}

// broadcast queues frame for every member of chatID except from. It returns
// the number of connections the frame was queued for.
func (h *Hub) broadcast(from *Client, chatID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[chatID] {
		if c == from {
			continue
		}
		if c.enqueue(frame) {
			delivered++
			continue
		}
		h.metrics.RelayFramesDropped.Inc()
	}
	return delivered
}
