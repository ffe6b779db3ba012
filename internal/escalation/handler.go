// Package escalation consumes server-pushed warning and termination events
// and drives the user-visible escalation state. The warning count is
// advisory only: the client never terminates itself from the tally — the
// authoritative termination decision always arrives as its own event.
package escalation

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/protocol"
)

// State of the escalation machine.
type State int

const (
	StateNoWarning State = iota
	StateWarned
	StateTerminated // absorbing
)

// Warning is a transient, non-blocking notice.
type Warning struct {
	Message   string
	Count     int
	Max       int
	Remaining int
}

// Termination is the blocking, non-dismissible terminal notice.
type Termination struct {
	Reason   string
	Redirect *string
}

// Outcome tells the caller what, if anything, to present after applying an
// inbound event.
type Outcome struct {
	Warning    *Warning
	Terminated *Termination
}

// Handler is the warning escalation state machine. Intercept may be called
// from the channel's read goroutine; everything else runs on the engine
// loop.
type Handler struct {
	log        zerolog.Logger
	max        int
	terminated atomic.Bool

	mu    sync.Mutex
	state State
	count int
	term  Termination
}

// New creates a handler with the session's warning ceiling.
func New(log zerolog.Logger, maxWarnings int) *Handler {
	return &Handler{
		log: log.With().Str("component", "escalation").Logger(),
		max: maxWarnings,
	}
}

// Intercept latches a termination the moment it is read off the wire, so an
// in-flight submission can observe it before presenting results. Safe to
// call from any goroutine; the full transition still happens in Apply.
func (h *Handler) Intercept(e protocol.EventEnvelope) {
	if e.Event == protocol.EventTerminated {
		h.terminated.Store(true)
	}
}

// Apply runs one inbound event through the machine and returns what to
// present. Events after termination are discarded.
func (h *Handler) Apply(e protocol.EventEnvelope) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateTerminated {
		return Outcome{}
	}

	switch e.Event {
	case protocol.EventWarning:
		// Count is monotonically non-decreasing; a stale push never
		// rolls it back.
		if e.Count > h.count {
			h.count = e.Count
		}
		h.state = StateWarned
		h.log.Warn().
			Int("count", h.count).
			Int("max", h.max).
			Str("message", e.Message).
			Msg("Violation warning received")
		return Outcome{Warning: &Warning{
			Message:   e.Message,
			Count:     h.count,
			Max:       h.max,
			Remaining: h.max - h.count,
		}}

	case protocol.EventTerminated:
		h.terminated.Store(true)
		h.state = StateTerminated
		h.term = Termination{Reason: e.Reason, Redirect: e.Redirect}
		h.log.Error().Str("reason", e.Reason).Msg("Session terminated by server")
		return Outcome{Terminated: &h.term}
	}

	return Outcome{}
}

// Terminated reports whether a termination has been received, even if not
// yet applied.
func (h *Handler) Terminated() bool { return h.terminated.Load() }

// State returns the current machine state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Count returns the running warning tally.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
