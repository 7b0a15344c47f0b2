package presence

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

type fakeSink struct {
	id       string
	userID   uuid.UUID
	closeErr error

	mu     sync.Mutex
	closed int
}

func newFakeSink(id string, userID uuid.UUID) *fakeSink {
	return &fakeSink{id: id, userID: userID}
}

func (s *fakeSink) ID() string { return s.id }
func (s *fakeSink) UserID() uuid.UUID { return s.userID }
func (s *fakeSink) Send(string, any) error { return nil }
func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

func (s *fakeSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// registryCleanup mimics the engine's disconnect path: unregister, optionally failing for some ids.
type registryCleanup struct {
	registry *Registry
	failFor  map[string]bool
	calls    []string
}

func (c *registryCleanup) Disconnect(_ context.Context, connID string) error {
	c.calls = append(c.calls, connID)
	if c.failFor[connID] {
		return errors.New("store unavailable")
	}
	c.registry.Unregister(connID)
	return nil
}
