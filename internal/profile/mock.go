// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package profile

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	byEmail  map[string]*Profile // keyed by lowercased email
	byKey    map[string]string   // keyed by userKey -> email
	failWith error               // when set, every operation returns this error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		byEmail: make(map[string]*Profile),
		byKey:   make(map[string]string),
	}
}

// FailWith makes every subsequent operation return err.
// Pass nil to restore normal behavior. Used to simulate an unreachable store.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MockStore) errLocked() error {
	return m.failWith
}

// GetByUserKey retrieves a profile by chat-account key.
func (m *MockStore) GetByUserKey(ctx context.Context, userKey string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.errLocked(); err != nil {
		return nil, err
	}

	email, ok := m.byKey[userKey]
	if !ok {
		return nil, ErrNotFound
	}

	p := *m.byEmail[email]
	return &p, nil
}

// GetByEmail retrieves a profile by email address.
func (m *MockStore) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.errLocked(); err != nil {
		return nil, err
	}

	p, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}

	copied := *p
	return &copied, nil
}

// Link attaches a chat account to the profile owning the email.
func (m *MockStore) Link(ctx context.Context, userKey, email string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errLocked(); err != nil {
		return nil, err
	}

	p, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now()
	p.UserKey = userKey
	p.BotRegisteredAt = &now
	p.LastBotActivity = &now
	p.BotActive = true
	p.UpdatedAt = now
	m.byKey[userKey] = strings.ToLower(email)

	copied := *p
	return &copied, nil
}

// TouchActivity updates last activity for a linked profile.
func (m *MockStore) TouchActivity(ctx context.Context, userKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errLocked(); err != nil {
		return err
	}

	email, ok := m.byKey[userKey]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	p := m.byEmail[email]
	p.LastBotActivity = &now
	p.BotActive = true
	p.UpdatedAt = now
	return nil
}

// GetSubscription reads subscription fields for a linked profile.
func (m *MockStore) GetSubscription(ctx context.Context, userKey string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.errLocked(); err != nil {
		return nil, err
	}

	email, ok := m.byKey[userKey]
	if !ok {
		return nil, ErrNotFound
	}

	p := m.byEmail[email]
	return &Subscription{
		Status:          p.SubscriptionStatus,
		CustomerRef:     p.CustomerRef,
		SubscriptionRef: p.SubscriptionRef,
	}, nil
}

// CreateProfile stores a new profile.
func (m *MockStore) CreateProfile(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errLocked(); err != nil {
		return err
	}

	email := strings.ToLower(p.Email)
	if _, exists := m.byEmail[email]; exists {
		return ErrDuplicateProfile
	}
	if p.UserKey != "" {
		if _, exists := m.byKey[p.UserKey]; exists {
			return ErrDuplicateProfile
		}
	}

	// Make a copy to avoid external modification
	copied := *p
	copied.Email = email
	m.byEmail[email] = &copied
	if copied.UserKey != "" {
		m.byKey[copied.UserKey] = email
	}

	return nil
}

// Deactivate marks a linked profile inactive.
func (m *MockStore) Deactivate(ctx context.Context, userKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.errLocked(); err != nil {
		return err
	}

	email, ok := m.byKey[userKey]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	p := m.byEmail[email]
	p.BotActive = false
	p.LastBotActivity = &now
	p.UpdatedAt = now
	return nil
}

// MemberStats returns aggregate counts over linked profiles.
func (m *MockStore) MemberStats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.errLocked(); err != nil {
		return nil, err
	}

	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	stats := &Stats{}
	for _, email := range m.byKey {
		p := m.byEmail[email]
		stats.TotalMembers++
		if p.BotActive {
			stats.ActiveMembers++
		}
		if p.BotRegisteredAt != nil && !p.BotRegisteredAt.Before(dayStart) {
			stats.NewMembersToday++
		}
	}

	return stats, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
