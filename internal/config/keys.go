package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

// SessionStatusKey returns the cache key for a proctoring session's status.
func (r *CacheKeyStruct) SessionStatusKey(sessionID string) string {
	return fmt.Sprintf("session:%s:status", sessionID)
}

// SessionWarningsKey returns the cache key for a session's warning tally.
func (r *CacheKeyStruct) SessionWarningsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:warnings", sessionID)
}

// SessionCooldownKey returns the cache key gating repeat violations of one
// kind within the cooldown window.
func (r *CacheKeyStruct) SessionCooldownKey(sessionID, kind string) string {
	return fmt.Sprintf("session:%s:cooldown:%s", sessionID, kind)
}

// SessionNoiseStreakKey returns the cache key for a session's consecutive
// loud-sample counter.
func (r *CacheKeyStruct) SessionNoiseStreakKey(sessionID string) string {
	return fmt.Sprintf("session:%s:noise_streak", sessionID)
}

// SessionResultKey returns the cache key for a session's recorded result.
func (r *CacheKeyStruct) SessionResultKey(sessionID string) string {
	return fmt.Sprintf("session:%s:result", sessionID)
}

var CacheKey = &CacheKeyStruct{}

type WorkerKeyStruct struct {
	PersistViolationsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistViolationsQueue: "persist_violations_queue",
}
