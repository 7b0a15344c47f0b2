package realtime

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/presence"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Hub fans events out to the connections subscribed to a topic. Connection handles are looked
// up in the registry at send time, so a connection that has gone away is simply skipped.
type Hub struct {
	registry *presence.Registry
	logger   zerolog.Logger

	mu     sync.RWMutex
	topics map[string]map[string]struct{}
	byConn map[string]map[string]struct{}
}

func NewHub(registry *presence.Registry, logger zerolog.Logger) *Hub {
	return &Hub{
		registry: registry,
		logger:   logger.With().Str("component", "Hub").Logger(),
		topics:   make(map[string]map[string]struct{}),
		byConn:   make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Subscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]struct{})
	}
	h.topics[topic][connID] = struct{}{}

	if h.byConn[connID] == nil {
		h.byConn[connID] = make(map[string]struct{})
	}
	h.byConn[connID][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unsubscribeLocked(connID, topic)
}

func (h *Hub) unsubscribeLocked(connID, topic string) bool {
	subs, ok := h.topics[topic]
	if !ok {
		return false
	}
	if _, ok := subs[connID]; !ok {
		return false
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
	if topics := h.byConn[connID]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(h.byConn, connID)
		}
	}
	return true
}

// UnsubscribePrefix removes the connection from every topic starting with prefix.
func (h *Hub) UnsubscribePrefix(connID, prefix string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for topic := range h.byConn[connID] {
		if strings.HasPrefix(topic, prefix) && h.unsubscribeLocked(connID, topic) {
			removed++
		}
	}
	return removed
}

// Topics lists the connection's subscriptions that start with prefix.
func (h *Hub) Topics(connID, prefix string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var topics []string
	for topic := range h.byConn[connID] {
		if strings.HasPrefix(topic, prefix) {
			topics = append(topics, topic)
		}
	}
	return topics
}

func (h *Hub) IsSubscribed(connID, topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.topics[topic][connID]
	return ok
}

// Drop removes every subscription the connection holds.
func (h *Hub) Drop(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range h.byConn[connID] {
		if subs := h.topics[topic]; subs != nil {
			delete(subs, connID)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.byConn, connID)
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Emit sends the event to every subscriber of topic except the excluded connections and
// returns how many sends succeeded.
func (h *Hub) Emit(topic, event string, payload any, exclude ...string) int {
	h.mu.RLock()
	targets := make([]string, 0, len(h.topics[topic]))
	for connID := range h.topics[topic] {
		targets = append(targets, connID)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, connID := range targets {
		if lo.Contains(exclude, connID) {
			continue
		}
		if h.SendTo(connID, event, payload) {
			delivered++
		}
	}
	return delivered
}

// EmitToUser sends the event to every live connection of the user.
func (h *Hub) EmitToUser(userID uuid.UUID, event string, payload any) int {
	delivered := 0
	for _, sink := range h.registry.UserConnections(userID) {
		if err := sink.Send(event, payload); err != nil {
			h.logger.Debug().Err(err).Str("connection_id", sink.ID()).Str("event", event).Msg("Send failed")
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) SendTo(connID, event string, payload any) bool {
	sink, ok := h.registry.Sink(connID)
	if !ok {
		return false
	}
	if err := sink.Send(event, payload); err != nil {
		h.logger.Debug().Err(err).Str("connection_id", connID).Str("event", event).Msg("Send failed")
		return false
	}
	return true
}
