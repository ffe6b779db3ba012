package service

import (
	"context"
	"time"
)

// Server-side session lifecycle values. The status key is the single source
// of truth the submit path and the proctoring channel both consult.
const (
	SessionActive     = "active"
	SessionSubmitted  = "submitted"
	SessionTerminated = "terminated"
)

// SessionStore is the hot-path state shared between the REST handlers and
// the proctoring channel: status, warning tally, per-violation cooldowns and
// the persistence queue. Backed by Redis in production.
type SessionStore interface {
	SetStatus(ctx context.Context, sessionID, status string, ttl time.Duration) error
	Status(ctx context.Context, sessionID string) (string, error)

	// IncrWarnings bumps the tally and returns the new value.
	IncrWarnings(ctx context.Context, sessionID string) (int, error)

	// TryCooldown atomically claims the cooldown slot for one violation
	// kind. It returns false while a previous claim is still live.
	TryCooldown(ctx context.Context, sessionID, kind string, window time.Duration) (bool, error)

	// BumpNoiseStreak increments the consecutive loud-sample counter and
	// returns the new value.
	BumpNoiseStreak(ctx context.Context, sessionID string) (int, error)
	ResetNoiseStreak(ctx context.Context, sessionID string) error

	// SetResult caches the scored result so repeat submits can replay it.
	// Result returns nil with no error when nothing is cached.
	SetResult(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error
	Result(ctx context.Context, sessionID string) ([]byte, error)

	// QueueViolation enqueues one violation record for asynchronous
	// persistence by the worker.
	QueueViolation(ctx context.Context, payload []byte) error
}
