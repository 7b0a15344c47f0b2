package chat

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

type dedupKey struct {
	sender       uuid.UUID
	conversation uuid.UUID
	content      string
}

func newDedupKey(sender, conversation uuid.UUID, content string) dedupKey {
	return dedupKey{sender: sender, conversation: conversation, content: strings.TrimSpace(content)}
}

// DedupTable remembers recently accepted submissions. It is bounded: once it holds more than
// maxEntries keys the trimCount oldest are dropped. Keys are never expired by time, only
// treated as stale once their window has passed.
type DedupTable struct {
	clock      clock.Clock
	window     time.Duration
	maxEntries int
	trimCount  int

	mu      sync.Mutex
	entries map[dedupKey]time.Time
}

func NewDedupTable(clk clock.Clock, window time.Duration, maxEntries, trimCount int) *DedupTable {
	return &DedupTable{
		clock:      clk,
		window:     window,
		maxEntries: maxEntries,
		trimCount:  trimCount,
		entries:    make(map[dedupKey]time.Time),
	}
}

// Accept marks key as seen now unless it was accepted within the window, in which case it
// reports false and leaves the entry untouched.
func (d *DedupTable) Accept(key dedupKey) (time.Time, bool) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.entries[key]; ok && now.Sub(last) < d.window {
		return time.Time{}, false
	}
	d.entries[key] = now
	if len(d.entries) > d.maxEntries {
		d.trim()
	}
	return now, true
}

// Release forgets key if it still carries the mark made at acceptedAt, so a submission that
// failed downstream can be retried immediately.
func (d *DedupTable) Release(key dedupKey, acceptedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.entries[key]; ok && at.Equal(acceptedAt) {
		delete(d.entries, key)
	}
}

func (d *DedupTable) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *DedupTable) trim() {
	type aged struct {
		key dedupKey
		at  time.Time
	}
	all := make([]aged, 0, len(d.entries))
	for k, at := range d.entries {
		all = append(all, aged{k, at})
	}
	slices.SortFunc(all, func(a, b aged) int { return a.at.Compare(b.at) })

	for _, e := range all[:min(d.trimCount, len(all))] {
		delete(d.entries, e.key)
	}
}
