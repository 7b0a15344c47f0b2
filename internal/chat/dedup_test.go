package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupTable_Window(t *testing.T) {
	mock := clock.NewMock()
	table := NewDedupTable(mock, 2*time.Second, 1000, 500)
	key := newDedupKey(uuid.New(), uuid.New(), "  Hello ")

	_, ok := table.Accept(key)
	require.True(t, ok)

	mock.Add(500 * time.Millisecond)
	_, ok = table.Accept(newDedupKey(key.sender, key.conversation, "Hello"))
	assert.False(t, ok, "trimmed content within the window is a duplicate")

	mock.Add(1500 * time.Millisecond)
	_, ok = table.Accept(key)
	assert.True(t, ok, "window has passed")
}

func TestDedupTable_KeyComponents(t *testing.T) {
	table := NewDedupTable(clock.NewMock(), 2*time.Second, 1000, 500)
	sender, conversation := uuid.New(), uuid.New()

	_, ok := table.Accept(newDedupKey(sender, conversation, "Hello"))
	require.True(t, ok)

	_, ok = table.Accept(newDedupKey(uuid.New(), conversation, "Hello"))
	assert.True(t, ok, "different sender")
	_, ok = table.Accept(newDedupKey(sender, uuid.New(), "Hello"))
	assert.True(t, ok, "different conversation")
	_, ok = table.Accept(newDedupKey(sender, conversation, "hello"))
	assert.True(t, ok, "different content")
}

func TestDedupTable_Release(t *testing.T) {
	table := NewDedupTable(clock.NewMock(), 2*time.Second, 1000, 500)
	key := newDedupKey(uuid.New(), uuid.New(), "Hello")

	at, ok := table.Accept(key)
	require.True(t, ok)
	table.Release(key, at)

	_, ok = table.Accept(key)
	assert.True(t, ok)
}

// TestDedupTable_TrimsOldest checks the table drops the oldest half once it passes its cap
func TestDedupTable_TrimsOldest(t *testing.T) {
	mock := clock.NewMock()
	table := NewDedupTable(mock, time.Hour, 10, 5)
	sender, conversation := uuid.New(), uuid.New()

	for i := 0; i < 10; i++ {
		_, ok := table.Accept(newDedupKey(sender, conversation, fmt.Sprintf("m%d", i)))
		require.True(t, ok)
		mock.Add(time.Millisecond)
	}
	require.Equal(t, 10, table.Len())

	// ACT: the 11th entry pushes the table over its cap
	_, ok := table.Accept(newDedupKey(sender, conversation, "m10"))
	require.True(t, ok)

	// ASSERT
	assert.Equal(t, 6, table.Len())
	_, ok = table.Accept(newDedupKey(sender, conversation, "m0"))
	assert.True(t, ok, "oldest entry was evicted")
	_, ok = table.Accept(newDedupKey(sender, conversation, "m9"))
	assert.False(t, ok, "recent entry survives the trim")
}
