package presence

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
)

// Sink is the transport side of a registered connection.
type Sink interface {
	ID() string
	UserID() uuid.UUID
	Send(event string, payload any) error
	Close() error
}

type entry struct {
	conn  models.Connection
	sink  Sink
	beats int
}

// Registry tracks live connections per user. A user is online exactly while at least one of
// their connections is registered. It performs no I/O; callers own persistence and broadcasts.
type Registry struct {
	clock        clock.Clock
	persistEvery int

	mu     sync.RWMutex
	conns  map[string]*entry
	byUser map[uuid.UUID]map[string]struct{}
}

func NewRegistry(clk clock.Clock, persistEvery int) *Registry {
	if persistEvery <= 0 {
		persistEvery = 1
	}
	return &Registry{
		clock:        clk,
		persistEvery: persistEvery,
		conns:        make(map[string]*entry),
		byUser:       make(map[uuid.UUID]map[string]struct{}),
	}
}

// Register adds the connection and reports whether it is the user's first live one.
// Registering an id that is already present is a no-op.
func (r *Registry) Register(sink Sink) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[sink.ID()]; exists {
		return false
	}

	userID := sink.UserID()
	r.conns[sink.ID()] = &entry{
		conn: models.Connection{ID: sink.ID(), UserID: userID, JoinedAt: now, LastSeen: now},
		sink: sink,
	}

	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[userID] = set
	}
	set[sink.ID()] = struct{}{}
	return len(set) == 1
}

// Unregister removes the connection. last reports whether the user has no connections left;
// ok is false when the id was not registered, which makes repeated cleanup harmless.
func (r *Registry) Unregister(connID string) (userID uuid.UUID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.conns[connID]
	if !found {
		return uuid.Nil, false, false
	}
	delete(r.conns, connID)

	userID = e.conn.UserID
	set := r.byUser[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.byUser, userID)
		return userID, true, true
	}
	return userID, false, true
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// OnlineUsers reports the local online state of every requested user.
func (r *Registry) OnlineUsers(userIDs []uuid.UUID) map[uuid.UUID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make(map[uuid.UUID]bool, len(userIDs))
	for _, id := range userIDs {
		online[id] = len(r.byUser[id]) > 0
	}
	return online
}

func (r *Registry) UserConnections(userID uuid.UUID) []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		sinks = append(sinks, r.conns[id].sink)
	}
	return sinks
}

func (r *Registry) Sink(connID string) (Sink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return e.sink, true
}

func (r *Registry) Connection(connID string) (models.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok {
		return models.Connection{}, false
	}
	return e.conn, true
}

// Sinks returns every registered connection handle.
func (r *Registry) Sinks() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]Sink, 0, len(r.conns))
	for _, e := range r.conns {
		sinks = append(sinks, e.sink)
	}
	return sinks
}

// Count returns the number of live connections and distinct online users.
func (r *Registry) Count() (connections, users int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns), len(r.byUser)
}

// Heartbeat refreshes the connection's lastSeen. persist is true on every Nth heartbeat of the
// connection, signalling that lastSeen should also be written to durable storage.
func (r *Registry) Heartbeat(connID string) (persist bool, ok bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.conns[connID]
	if !found {
		return false, false
	}
	e.conn.LastSeen = now
	e.beats++
	return e.beats%r.persistEvery == 0, true
}

// Touch refreshes lastSeen without counting towards the persistence cadence.
func (r *Registry) Touch(connID string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.conns[connID]
	if !found {
		return false
	}
	e.conn.LastSeen = now
	return true
}

// Stale returns a snapshot of connections whose lastSeen is strictly older than threshold.
func (r *Registry) Stale(threshold time.Duration) []models.Connection {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []models.Connection
	for _, e := range r.conns {
		if now.Sub(e.conn.LastSeen) > threshold {
			stale = append(stale, e.conn)
		}
	}
	return stale
}

// staleSink returns the sink for connID only if the connection is still stale, guarding
// against a heartbeat that landed after the Stale snapshot was taken.
func (r *Registry) staleSink(connID string, threshold time.Duration) (Sink, bool) {
	now := r.clock.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.conns[connID]
	if !ok || now.Sub(e.conn.LastSeen) <= threshold {
		return nil, false
	}
	return e.sink, true
}
