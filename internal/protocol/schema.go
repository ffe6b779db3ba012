// Package protocol defines the message schema of the persistent proctoring
// channel, shared by the client reporter and the server stream handler.
package protocol

import (
	"github.com/proctorly/examroom/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSample       Action = "sample"
	ActionSessionEnded Action = "session_ended"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SampleRequest carries one ViolationSample. Exactly one of
// {Image+AudioLevel} or {ViolationType} is meaningful.
type SampleRequest struct {
	Action        Action               `json:"action"`
	Image         *string              `json:"image"`
	AudioLevel    float64              `json:"audio_level"`
	ViolationType *model.ViolationType `json:"violation_type"`
}

// NewSampleRequest wraps a ViolationSample for the wire.
func NewSampleRequest(s model.ViolationSample) SampleRequest {
	return SampleRequest{
		Action:        ActionSample,
		Image:         s.Image,
		AudioLevel:    s.AudioLevel,
		ViolationType: s.ViolationType,
	}
}

// Sample unwraps the wire shape back into a ViolationSample.
func (r SampleRequest) Sample() model.ViolationSample {
	return model.ViolationSample{
		Image:         r.Image,
		AudioLevel:    r.AudioLevel,
		ViolationType: r.ViolationType,
	}
}

// SessionEndedRequest is sent once after a confirmed normal submission.
type SessionEndedRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventWarning    Event = "warning_alert"
	EventTerminated Event = "exam_terminated"
	EventError      Event = "error"
)

// EventEnvelope carries any server push. Fields beyond Event are populated
// per event type; the envelope keeps the client read loop to a single
// decode.
type EventEnvelope struct {
	Event Event `json:"event"`

	// warning_alert
	Message string `json:"message,omitempty"`
	Count   int    `json:"count,omitempty"`

	// exam_terminated
	Reason   string  `json:"reason,omitempty"`
	Redirect *string `json:"redirect,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// WarningEvent builds a warning_alert push.
func WarningEvent(message string, count int) EventEnvelope {
	return EventEnvelope{Event: EventWarning, Message: message, Count: count}
}

// TerminatedEvent builds an exam_terminated push.
func TerminatedEvent(reason string, redirect *string) EventEnvelope {
	return EventEnvelope{Event: EventTerminated, Reason: reason, Redirect: redirect}
}

// ErrorEvent builds an error push.
func ErrorEvent(msg string) EventEnvelope {
	return EventEnvelope{Event: EventError, Error: msg}
}
