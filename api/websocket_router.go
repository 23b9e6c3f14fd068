package api

import (
	"sort"
	"sync"
)

// RoomRouter keeps the many-to-many relation between rooms and connections
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Connection
	byConn map[string]map[string]struct{}

	lockMu sync.Mutex
	locks  map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

// NewRoomRouter creates an empty router
func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[string]map[string]*Connection),
		byConn: make(map[string]map[string]struct{}),
		locks:  make(map[string]*roomLock),
	}
}

// LockRoom serializes persist-then-broadcast and join sequences for one room.
// The returned function releases the lock.
func (r *RoomRouter) LockRoom(roomID string) func() {
	r.lockMu.Lock()
	lock, ok := r.locks[roomID]
	if !ok {
		lock = &roomLock{}
		r.locks[roomID] = lock
	}
	lock.refs++
	r.lockMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		r.lockMu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(r.locks, roomID)
		}
		r.lockMu.Unlock()
	}
}

// Join adds conn to roomID with the given access. Joining again only
// refreshes the access level and reports alreadyJoined.
func (r *RoomRouter) Join(conn *Connection, roomID string, access AccessLevel) (alreadyJoined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Connection)
		r.rooms[roomID] = members
	}
	members[conn.ID] = conn

	joined, ok := r.byConn[conn.ID]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[conn.ID] = joined
	}
	joined[roomID] = struct{}{}

	return conn.setRoom(roomID, access)
}

// Leave removes conn from roomID and reports whether it was a member
func (r *RoomRouter) Leave(conn *Connection, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(conn, roomID)
}

func (r *RoomRouter) leaveLocked(conn *Connection, roomID string) bool {
	members, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, member := members[conn.ID]; !member {
		return false
	}
	delete(members, conn.ID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	if joined, ok := r.byConn[conn.ID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.byConn, conn.ID)
		}
	}
	conn.removeRoom(roomID)
	return true
}

// MembersOf returns a snapshot of the connections in roomID
func (r *RoomRouter) MembersOf(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	conns := make([]*Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}

// RoomsOf returns the rooms conn has joined, sorted
func (r *RoomRouter) RoomsOf(conn *Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.byConn[conn.ID])
}

// RemoveConnection drops conn from every room and returns the rooms it was in
func (r *RoomRouter) RemoveConnection(conn *Connection) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rooms := sortedKeys(r.byConn[conn.ID])
	for _, roomID := range rooms {
		r.leaveLocked(conn, roomID)
	}
	conn.clearRooms()
	return rooms
}

// RoomCount returns the number of non-empty rooms
func (r *RoomRouter) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
