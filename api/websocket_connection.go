package api

import (
	"sort"
	"sync"
	"time"

	"github.com/eventhub/eventchat/auth"
)

// AccessLevel is a connection's right within one joined room
type AccessLevel int

const (
	// AccessReadOnly members receive broadcasts but cannot post or type
	AccessReadOnly AccessLevel = iota
	// AccessFull members are the event creator or a confirmed participant
	AccessFull
)

func (a AccessLevel) String() string {
	if a == AccessFull {
		return "full"
	}
	return "read_only"
}

// Connection is one live transport endpoint. Its identity is fixed after
// authentication; its joined rooms are mutated by the room router.
//
// The send queue is never closed. Producers observe Done instead, so a
// broadcast racing a disconnect cannot panic.
type Connection struct {
	ID          string
	ConnectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onDrop    func()

	mu       sync.RWMutex
	identity *auth.Identity
	rooms    map[string]AccessLevel
}

// NewConnection creates a connection with a bounded outbound queue
func NewConnection(id string, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Connection{
		ID:          id,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan []byte, bufferSize),
		done:        make(chan struct{}),
		rooms:       make(map[string]AccessLevel),
	}
}

// Send queues one encoded frame without blocking. A full queue marks the
// connection as a slow consumer and closes it.
func (c *Connection) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		if c.onDrop != nil {
			c.onDrop()
		}
		c.Close()
		return false
	}
}

// Queue exposes the outbound queue to the transport writer
func (c *Connection) Queue() <-chan []byte {
	return c.send
}

// Done is closed when the connection has been closed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// IsOpen reports whether the connection still accepts frames
func (c *Connection) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close marks the connection closed. The transport writer observes Done,
// sends a close frame and releases the socket. Safe to call repeatedly.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Identity returns the authenticated identity or nil
func (c *Connection) Identity() *auth.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// UserID returns the authenticated identity id or an empty string
func (c *Connection) UserID() string {
	if identity := c.Identity(); identity != nil {
		return identity.ID
	}
	return ""
}

func (c *Connection) setIdentity(identity *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Access returns the access level held in a room and whether the room is joined
func (c *Connection) Access(roomID string) (AccessLevel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	level, ok := c.rooms[roomID]
	return level, ok
}

// Rooms returns the joined room ids in sorted order
func (c *Connection) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	sort.Strings(rooms)
	return rooms
}

func (c *Connection) setRoom(roomID string, level AccessLevel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.rooms[roomID]
	c.rooms[roomID] = level
	return existed
}

func (c *Connection) removeRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rooms[roomID]; !ok {
		return false
	}
	delete(c.rooms, roomID)
	return true
}

func (c *Connection) clearRooms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[string]AccessLevel)
}
