package session

import (
	"fmt"
	"sync"
	"time"
)

// Tick is one countdown update. The Expired tick is emitted exactly once,
// after which the channel closes.
type Tick struct {
	Remaining int
	Display   string
	Expired   bool
}

// Timer is a single deadline-driven clock. It is started once, ticks once
// per interval, and fires the submission trigger exactly once when the
// remaining count reaches zero. Once stopped it holds no further
// responsibility.
type Timer struct {
	total    int
	interval time.Duration
	out      chan Tick
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTimer creates a countdown over totalSeconds with a one-second tick.
func NewTimer(totalSeconds int) *Timer {
	return &Timer{
		total:    totalSeconds,
		interval: time.Second,
		out:      make(chan Tick, 8),
		stop:     make(chan struct{}),
	}
}

// WithInterval overrides the tick interval. Call before Start; tests use
// this to compress the countdown.
func (t *Timer) WithInterval(d time.Duration) *Timer {
	t.interval = d
	return t
}

// Start begins ticking. The returned channel first carries the full
// remaining time, then one decrement per interval, then a single Expired
// tick before closing. Stop() closes the channel without the Expired tick.
func (t *Timer) Start() <-chan Tick {
	go t.run()
	return t.out
}

// Stop halts the countdown and releases the underlying ticker. Idempotent.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Timer) run() {
	defer close(t.out)

	remaining := t.total
	t.emit(Tick{Remaining: remaining, Display: FormatClock(remaining)})

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			remaining--
			if remaining <= 0 {
				t.emit(Tick{Remaining: 0, Display: FormatClock(0), Expired: true})
				return
			}
			t.emit(Tick{Remaining: remaining, Display: FormatClock(remaining)})
		}
	}
}

func (t *Timer) emit(tick Tick) {
	select {
	case t.out <- tick:
	case <-t.stop:
	}
}

// FormatClock renders seconds as zero-padded, non-negative MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
