// ABOUTME: Store interface and data types for member profiles and subscriptions
// ABOUTME: Defines Profile, Subscription structs and the Store interface consumed by the gate and cache

package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested profile does not exist
var ErrNotFound = errors.New("profile not found")

// ErrDuplicateProfile is returned when trying to create a profile whose
// user key or email is already taken
var ErrDuplicateProfile = errors.New("profile already exists")

// SubscriptionStatus constants for the subscription_status column.
// An empty string means the profile has no subscription data.
const (
	SubscriptionActive    = "active"
	SubscriptionInactive  = "inactive"
	SubscriptionCancelled = "cancelled"
)

// Profile represents a member profile row, optionally linked to a chat account
type Profile struct {
	ID       string
	UserKey  string // opaque chat-account id; empty until linked
	Email    string
	FullName string

	// Subscription fields, maintained by the billing collaborator
	SubscriptionStatus string // active, inactive, cancelled, or "" for none
	CustomerRef        string
	SubscriptionRef    string

	BotRegisteredAt *time.Time
	LastBotActivity *time.Time
	BotActive       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscription is the narrow read the subscription cache performs on a miss
type Subscription struct {
	Status          string
	CustomerRef     string
	SubscriptionRef string
}

// Stats summarizes bot-linked membership for the /status command and ops API
type Stats struct {
	TotalMembers    int
	ActiveMembers   int
	NewMembersToday int
}

// Store defines the interface for member profile persistence.
// Implementations must be safe for concurrent use; the gate and the
// subscription cache call into the same store from many sessions.
type Store interface {
	// GetByUserKey returns the profile linked to a chat account
	GetByUserKey(ctx context.Context, userKey string) (*Profile, error)

	// GetByEmail returns the profile for an email address (case-insensitive)
	GetByEmail(ctx context.Context, email string) (*Profile, error)

	// Link attaches a chat account to the profile owning the email.
	// Returns ErrNotFound if no profile has that email.
	Link(ctx context.Context, userKey, email string) (*Profile, error)

	// TouchActivity updates last_bot_activity for a linked profile
	TouchActivity(ctx context.Context, userKey string) error

	// GetSubscription reads the subscription fields for a linked profile.
	// Used by the subscription cache on a miss.
	GetSubscription(ctx context.Context, userKey string) (*Subscription, error)

	// CreateProfile inserts a new profile (seed tooling and tests)
	CreateProfile(ctx context.Context, p *Profile) error

	// Deactivate marks a linked profile's bot access inactive
	Deactivate(ctx context.Context, userKey string) error

	// MemberStats returns aggregate membership counts
	MemberStats(ctx context.Context) (*Stats, error)

	// Close releases any resources held by the store
	Close() error
}
