// Package monitor converts raw environment signals (window visibility,
// focus, key chords) into discrete violation samples. It is passive: every
// detected signal is forwarded, with no debouncing or rate limiting —
// best-effort filtering belongs to the proctoring collaborator.
package monitor

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/proctorly/examroom/internal/model"
)

// SignalKind is a raw environment signal observed by the hosting surface.
type SignalKind int

const (
	// SignalHidden fires when the page/window visibility changes to hidden.
	SignalHidden SignalKind = iota
	// SignalBlur fires when the window loses focus.
	SignalBlur
	// SignalKey fires on any key chord; only restricted chords produce a
	// violation.
	SignalKey
)

// Signal is one observed environment event.
type Signal struct {
	Kind SignalKind
	Key  KeyChord
}

// KeyChord describes a key press with its modifiers.
type KeyChord struct {
	Key  string
	Ctrl bool
	Alt  bool
}

// Restricted reports whether the chord is one of the forbidden input
// combinations: the developer-tools key, copy/cut/paste accelerators, or an
// alt-based window switch. Restricted chords must have their default
// handling suppressed by the hosting surface.
func (k KeyChord) Restricted() bool {
	key := strings.ToLower(k.Key)
	switch {
	case key == "f12":
		return true
	case k.Ctrl && (key == "c" || key == "v" || key == "x"):
		return true
	case k.Alt && key == "tab":
		return true
	}
	return false
}

// Classify maps a signal to its violation type. ok is false for signals
// that are not violations (e.g. an unrestricted key press). suppress is
// true when the hosting surface must cancel the signal's default handling.
func Classify(sig Signal) (vt model.ViolationType, suppress, ok bool) {
	switch sig.Kind {
	case SignalHidden:
		return model.ViolationTabSwitch, false, true
	case SignalBlur:
		return model.ViolationFocusLost, false, true
	case SignalKey:
		if sig.Key.Restricted() {
			return model.ViolationRestrictedKey, true, true
		}
	}
	return "", false, false
}

// Monitor forwards classified signals as discrete violation samples while
// the session is active.
type Monitor struct {
	log    zerolog.Logger
	active func() bool
	out    chan<- model.ViolationSample
}

// New creates a monitor. active gates emission: signals observed outside an
// active session are discarded. out receives one sample per detection.
func New(log zerolog.Logger, active func() bool, out chan<- model.ViolationSample) *Monitor {
	return &Monitor{
		log:    log.With().Str("component", "monitor").Logger(),
		active: active,
		out:    out,
	}
}

// Observe handles one raw signal, forwarding a violation sample when the
// signal classifies as a violation and the session is active. It returns
// whether the signal's default handling must be suppressed; suppression
// applies regardless of session state.
func (m *Monitor) Observe(sig Signal) (suppress bool) {
	vt, suppress, ok := Classify(sig)
	if !ok {
		return suppress
	}
	if !m.active() {
		return suppress
	}
	m.log.Debug().Str("violation", string(vt)).Msg("Violation detected")
	m.out <- model.EventSample(vt)
	return suppress
}
