package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Typing tracks which users are currently typing in each conversation.
type Typing struct {
	mu   sync.Mutex
	sets map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewTyping() *Typing {
	return &Typing{sets: make(map[uuid.UUID]map[uuid.UUID]struct{})}
}

// Set records the user's typing state and reports whether it changed.
func (t *Typing) Set(conversationID, userID uuid.UUID, typing bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	set := t.sets[conversationID]
	_, present := set[userID]
	switch {
	case typing && !present:
		if set == nil {
			set = make(map[uuid.UUID]struct{})
			t.sets[conversationID] = set
		}
		set[userID] = struct{}{}
		return true
	case !typing && present:
		delete(set, userID)
		if len(set) == 0 {
			delete(t.sets, conversationID)
		}
		return true
	}
	return false
}

// ClearUser removes the user from every conversation and returns the ones they were typing in.
func (t *Typing) ClearUser(userID uuid.UUID) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []uuid.UUID
	for conversationID, set := range t.sets {
		if _, ok := set[userID]; !ok {
			continue
		}
		delete(set, userID)
		if len(set) == 0 {
			delete(t.sets, conversationID)
		}
		cleared = append(cleared, conversationID)
	}
	return cleared
}

func (t *Typing) Users(conversationID uuid.UUID) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]uuid.UUID, 0, len(t.sets[conversationID]))
	for id := range t.sets[conversationID] {
		users = append(users, id)
	}
	return users
}
