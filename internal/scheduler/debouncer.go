package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer runs at most one pending action per key. Scheduling a key that already has a
// pending action cancels it and restarts the window, so a burst collapses into the last call.
type Debouncer struct {
	clock  clock.Clock
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingAction
	seq     uint64
}

type pendingAction struct {
	timer *clock.Timer
	seq   uint64
}

func NewDebouncer(clk clock.Clock, window time.Duration) *Debouncer {
	return &Debouncer{
		clock:   clk,
		window:  window,
		pending: make(map[string]*pendingAction),
	}
}

// Schedule arranges for fn to run once the window elapses without another Schedule for key.
// It never blocks on fn; fn runs on a timer goroutine.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	d.seq++
	seq := d.seq
	action := &pendingAction{seq: seq}
	action.timer = d.clock.AfterFunc(d.window, func() {
		d.mu.Lock()
		current, ok := d.pending[key]
		if !ok || current.seq != seq {
			// Superseded after the timer had already fired.
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		fn()
	})
	d.pending[key] = action
}

// Cancel drops the pending action for key, reporting whether there was one.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	action, ok := d.pending[key]
	if !ok {
		return false
	}
	action.timer.Stop()
	delete(d.pending, key)
	return true
}

func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending action.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, action := range d.pending {
		action.timer.Stop()
		delete(d.pending, key)
	}
}
