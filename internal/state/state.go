// ABOUTME: Thread-safe conversation state store with sliding expiration.
// ABOUTME: Tracks the multi-step email linking flow per chat account.

package state

import (
	"log/slog"
	"sync"
	"time"
)

// Phase identifies where a conversation is in the linking flow.
type Phase string

const (
	PhaseAwaitingEmail Phase = "awaiting_email"
	PhaseVerified      Phase = "verified"
	PhaseExpired       Phase = "expired"
)

// Conversation is one user's linking-flow record.
// At most one record exists per user key.
type Conversation struct {
	UserKey      string
	Phase        Phase
	PendingEmail string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Stats summarizes live records by phase for observability.
type Stats struct {
	Total         int
	AwaitingEmail int
	Verified      int
	Expired       int
}

// Manager provides a thread-safe store of conversation records with sliding
// expiration: each successful read refreshes the record's activity window.
// A background goroutine periodically sweeps records nobody reads, bounding
// worst-case staleness to timeout + sweepInterval.
type Manager struct {
	mu            sync.RWMutex
	records       map[string]*Conversation
	timeout       time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	closed        bool
}

// NewManager creates a conversation state manager. Records expire after
// timeout without activity; the sweep goroutine runs every sweepInterval.
func NewManager(timeout, sweepInterval time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		records:       make(map[string]*Conversation),
		timeout:       timeout,
		sweepInterval: sweepInterval,
		logger:        logger.With("component", "state"),
		done:          make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Set unconditionally replaces any existing record for the user key.
func (m *Manager) Set(userKey string, phase Phase, pendingEmail string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.records[userKey] = &Conversation{
		UserKey:      userKey,
		Phase:        phase,
		PendingEmail: pendingEmail,
		CreatedAt:    now,
		LastActivity: now,
	}
	m.logger.Debug("state set", "user_key", userKey, "phase", phase)
}

// Get returns the live record for the user key, refreshing its activity
// window. A record idle longer than the timeout is removed and reported
// absent, regardless of whether the sweep has run.
func (m *Manager) Get(userKey string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[userKey]
	if !ok {
		return Conversation{}, false
	}

	now := time.Now()
	if now.Sub(record.LastActivity) > m.timeout {
		delete(m.records, userKey)
		m.logger.Debug("state expired", "user_key", userKey)
		return Conversation{}, false
	}

	record.LastActivity = now
	return *record, true
}

// Update applies fn to the live record for the user key and refreshes its
// activity window. No-op when the record is absent or stale.
func (m *Manager) Update(userKey string, fn func(*Conversation)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[userKey]
	if !ok {
		return
	}

	now := time.Now()
	if now.Sub(record.LastActivity) > m.timeout {
		delete(m.records, userKey)
		m.logger.Debug("state expired", "user_key", userKey)
		return
	}

	fn(record)
	record.UserKey = userKey // key is immutable
	record.LastActivity = now
	m.logger.Debug("state updated", "user_key", userKey, "phase", record.Phase)
}

// Clear removes the record if present. Safe to call on an absent key.
func (m *Manager) Clear(userKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[userKey]; ok {
		delete(m.records, userKey)
		m.logger.Debug("state cleared", "user_key", userKey)
	}
}

// InPhase reports whether the user has a live record in the given phase.
func (m *Manager) InPhase(userKey string, phase Phase) bool {
	record, ok := m.Get(userKey)
	return ok && record.Phase == phase
}

// Stats counts records by phase. Stale records not yet swept are still
// counted; liveness is only decided on read.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Total: len(m.records)}
	for _, record := range m.records {
		switch record.Phase {
		case PhaseAwaitingEmail:
			stats.AwaitingEmail++
		case PhaseVerified:
			stats.Verified++
		case PhaseExpired:
			stats.Expired++
		}
	}
	return stats
}

// sweep runs in a background goroutine, periodically removing stale records.
func (m *Manager) sweep() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runSweep()
		case <-m.done:
			return
		}
	}
}

// runSweep removes all stale records from the store.
func (m *Manager) runSweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for userKey, record := range m.records {
		if now.Sub(record.LastActivity) > m.timeout {
			delete(m.records, userKey)
			cleaned++
		}
	}

	if cleaned > 0 {
		m.logger.Debug("swept stale conversation records", "count", cleaned)
	}
}

// Close stops the sweep goroutine and releases all records.
// It is safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		close(m.done)
		m.closed = true
		m.records = make(map[string]*Conversation)
	}
}
