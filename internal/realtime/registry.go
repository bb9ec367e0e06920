package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrUnknownConnection is returned for operations on an id that is not
	// (or no longer) registered.
	ErrUnknownConnection = errors.New("realtime: unknown connection")
	// ErrRegistryClosed is returned by Register once shutdown has begun.
	ErrRegistryClosed = errors.New("realtime: registry closed")
)

// Identity is the (user, role, room number) tuple bound to a connection by
// an authenticate message. At most one identity per connection; a fresh
// authenticate fully replaces the previous binding.
type Identity struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	RoomNumber string `json:"roomNumber,omitempty"`
}

// Stats is the registry snapshot reported by the health endpoint.
type Stats struct {
	TotalConnections           int            `json:"totalConnections"`
	DistinctAuthenticatedUsers int            `json:"distinctAuthenticatedUsers"`
	ActiveRooms                int            `json:"activeRooms"`
	ConnectionsByRole          map[string]int `json:"connectionsByRole"`
}

// Registry owns the set of live connections and the reverse indices used
// for targeted fan-out. All index mutation happens under one coarse lock;
// transport I/O never does.
type Registry struct {
	mu     sync.RWMutex
	closed bool
	conns  map[string]*client
	byUser map[string]map[string]*client
	byRoom map[string]map[string]*client
	byRole map[string]map[string]*client
	clock  clockwork.Clock
}

func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		conns:  make(map[string]*client),
		byUser: make(map[string]map[string]*client),
		byRoom: make(map[string]map[string]*client),
		byRole: make(map[string]map[string]*client),
		clock:  clock,
	}
}

// Register adds a connection for the given transport and returns its
// freshly generated id. The connection starts unauthenticated: it is alive
// but not reachable by user/room/role-targeted sends.
func (r *Registry) Register(transport Transport) (string, error) {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrRegistryClosed
	}
	r.conns[id] = newClient(id, transport, r.clock.Now())
	return id, nil
}

// Bind attaches an identity to a connection, replacing any prior binding
// and re-indexing byUser/byRole. The binding is visible to every lookup
// before Bind returns.
func (r *Registry) Bind(id string, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if prev := c.identity; prev != nil {
		removeIndexEntry(r.byUser, prev.UserID, id)
		removeIndexEntry(r.byRole, prev.Role, id)
	}
	c.identity = &identity
	addIndexEntry(r.byUser, identity.UserID, c)
	addIndexEntry(r.byRole, identity.Role, c)
	return nil
}

// Identity returns the connection's current binding, or false when the
// connection is unknown or not yet authenticated.
func (r *Registry) Identity(id string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok || c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// JoinRoom adds the connection to a room. It reports whether membership
// changed: joining a room already joined is a no-op.
func (r *Registry) JoinRoom(id, room string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false, ErrUnknownConnection
	}
	if _, member := c.rooms[room]; member {
		return false, nil
	}
	c.rooms[room] = struct{}{}
	addIndexEntry(r.byRoom, room, c)
	return true, nil
}

// LeaveRoom removes the connection from a room. Leaving a room not joined
// is a no-op, reported as unchanged.
func (r *Registry) LeaveRoom(id, room string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return false, ErrUnknownConnection
	}
	if _, member := c.rooms[room]; !member {
		return false, nil
	}
	delete(c.rooms, room)
	removeIndexEntry(r.byRoom, room, id)
	return true, nil
}

// Touch updates the connection's liveness timestamp.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		c.lastSeen = r.clock.Now()
	}
}

// Unregister removes the connection from the primary set and every index
// it participates in, all under one critical section. It is idempotent and
// returns the last-known identity and joined rooms so the caller can emit
// departure notifications. The transport is not closed here; the caller
// owns that.
func (r *Registry) Unregister(id string) (Identity, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return Identity{}, nil, false
	}
	delete(r.conns, id)
	var identity Identity
	if c.identity != nil {
		identity = *c.identity
		removeIndexEntry(r.byUser, identity.UserID, id)
		removeIndexEntry(r.byRole, identity.Role, id)
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
		removeIndexEntry(r.byRoom, room, id)
	}
	return identity, rooms, true
}

// LookupByUser returns the ids of connections bound to the given user.
// Unknown users yield an empty set, never an error.
func (r *Registry) LookupByUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return idsOf(r.byUser[userID])
}

// LookupByRoom returns the ids of connections currently in the room.
func (r *Registry) LookupByRoom(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return idsOf(r.byRoom[room])
}

// LookupByRole returns the ids of connections whose bound role matches.
func (r *Registry) LookupByRole(role string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return idsOf(r.byRole[role])
}

// SnapshotAll returns the ids of every live connection.
func (r *Registry) SnapshotAll() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stats summarizes the registry for health reporting.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byRole := make(map[string]int, len(r.byRole))
	for role, members := range r.byRole {
		byRole[role] = len(members)
	}
	return Stats{
		TotalConnections:           len(r.conns),
		DistinctAuthenticatedUsers: len(r.byUser),
		ActiveRooms:                len(r.byRoom),
		ConnectionsByRole:          byRole,
	}
}

// Close marks the registry closed, removes every connection, and returns
// the evicted clients so the caller can close their transports outside the
// lock. Further Register calls fail.
func (r *Registry) Close() []*client {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	evicted := make([]*client, 0, len(r.conns))
	for id, c := range r.conns {
		evicted = append(evicted, c)
		delete(r.conns, id)
	}
	r.byUser = make(map[string]map[string]*client)
	r.byRoom = make(map[string]map[string]*client)
	r.byRole = make(map[string]map[string]*client)
	return evicted
}

// getClient resolves an id to its live client, for in-package senders.
func (r *Registry) getClient(id string) (*client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// clientsByUser, clientsByRoom, clientsByRole and allClients take the
// snapshot the dispatcher writes against after releasing the lock.
func (r *Registry) clientsByUser(userID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byUser[userID], "")
}

func (r *Registry) clientsByRoom(room, excludeID string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byRoom[room], excludeID)
}

func (r *Registry) clientsByRole(role string) []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return collect(r.byRole[role], "")
}

func (r *Registry) allClients() []*client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// scanLiveness partitions connections into those due a probe and those
// whose silence exceeded the timeout window, as of now.
func (r *Registry) scanLiveness(timeout time.Duration) (probe, stale []*client) {
	now := r.clock.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		if now.Sub(c.lastSeen) > timeout {
			stale = append(stale, c)
		} else {
			probe = append(probe, c)
		}
	}
	return probe, stale
}

func addIndexEntry(index map[string]map[string]*client, key string, c *client) {
	if key == "" {
		return
	}
	members, ok := index[key]
	if !ok {
		members = make(map[string]*client)
		index[key] = members
	}
	members[c.id] = c
}

// removeIndexEntry drops an id from an index key, deleting the key when its
// last member goes. No empty index entries are retained.
func removeIndexEntry(index map[string]map[string]*client, key, id string) {
	members, ok := index[key]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(index, key)
	}
}

func idsOf(members map[string]*client) []string {
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

func collect(members map[string]*client, excludeID string) []*client {
	out := make([]*client, 0, len(members))
	for id, c := range members {
		if id == excludeID {
			continue
		}
		out = append(out, c)
	}
	return out
}
