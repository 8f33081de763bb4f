// Package ws holds the live-connection layer: the per-user connection
// registry, the broadcast engine and the websocket transport handler.
package ws

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendQueueSize bounds the per-connection outbound queue. A client that
// cannot drain its queue starts losing pushes; it can always re-fetch and
// re-sort by timestamp.
const sendQueueSize = 32

// Client is one live connection tagged with its authenticated user.
// A user may hold several clients at once (multiple open tabs).
type Client struct {
	ID     uuid.UUID
	UserID int64

	conn *websocket.Conn

	// send carries every outbound frame; the write pump is the only writer
	// on the underlying connection.
	send chan any

	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(userID int64, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		conn:   conn,
		send:   make(chan any, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Push queues a payload for delivery. Returns false when the client is
// closed or its queue is full; delivery is best-effort either way.
func (c *Client) Push(p any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- p:
		return true
	default:
		return false
	}
}

// Close marks the client dead. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry maps user ids to their live connections. Register, Unregister
// and broadcast lookups interleave freely across request goroutines, so all
// access to the map is serialized here.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64][]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64][]*Client)}
}

// Register appends a client to its user's connection list.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.UserID] = append(r.conns[c.UserID], c)
}

// Unregister removes a client. The user's entry is dropped entirely once its
// last connection is gone, keeping the map bounded by connected users.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.conns[c.UserID]
	for i, existing := range list {
		if existing.ID == c.ID {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.conns, c.UserID)
		return
	}
	r.conns[c.UserID] = list
}

// ListFor snapshots the user's live connections.
func (r *Registry) ListFor(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.conns[userID]
	if len(list) == 0 {
		return nil
	}
	out := make([]*Client, len(list))
	copy(out, list)
	return out
}
