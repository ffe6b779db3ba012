package service

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory SessionStore for tests.
type memStore struct {
	mu        sync.Mutex
	status    map[string]string
	warnings  map[string]int
	cooldowns map[string]time.Time
	streaks   map[string]int
	results   map[string][]byte
	queue     [][]byte
}

func newMemStore() *memStore {
	return &memStore{
		status:    make(map[string]string),
		warnings:  make(map[string]int),
		cooldowns: make(map[string]time.Time),
		streaks:   make(map[string]int),
		results:   make(map[string][]byte),
	}
}

func (m *memStore) SetStatus(_ context.Context, sessionID, status string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[sessionID] = status
	return nil
}

func (m *memStore) Status(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[sessionID], nil
}

func (m *memStore) IncrWarnings(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings[sessionID]++
	return m.warnings[sessionID], nil
}

func (m *memStore) TryCooldown(_ context.Context, sessionID, kind string, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := sessionID + ":" + kind
	if until, ok := m.cooldowns[key]; ok && time.Now().Before(until) {
		return false, nil
	}
	m.cooldowns[key] = time.Now().Add(window)
	return true, nil
}

func (m *memStore) BumpNoiseStreak(_ context.Context, sessionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streaks[sessionID]++
	return m.streaks[sessionID], nil
}

func (m *memStore) ResetNoiseStreak(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.streaks, sessionID)
	return nil
}

func (m *memStore) SetResult(_ context.Context, sessionID string, payload []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[sessionID] = payload
	return nil
}

func (m *memStore) Result(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.results[sessionID], nil
}

func (m *memStore) QueueViolation(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, payload)
	return nil
}

func (m *memStore) queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
