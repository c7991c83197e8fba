// ABOUTME: SQLite implementation of the profile Store interface using modernc.org/sqlite
// ABOUTME: Provides member profile persistence with automatic schema creation

package profile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "profile")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite profile store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS profiles (
			id                  TEXT PRIMARY KEY,
			user_key            TEXT,
			email               TEXT NOT NULL,
			full_name           TEXT NOT NULL DEFAULT '',
			subscription_status TEXT NOT NULL DEFAULT '',
			customer_ref        TEXT NOT NULL DEFAULT '',
			subscription_ref    TEXT NOT NULL DEFAULT '',
			bot_registered_at   TEXT,
			last_bot_activity   TEXT,
			bot_active          INTEGER NOT NULL DEFAULT 0,
			created_at          TEXT NOT NULL,
			updated_at          TEXT NOT NULL,

			CHECK (subscription_status IN ('', 'active', 'inactive', 'cancelled'))
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_email
			ON profiles(email);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_user_key
			ON profiles(user_key) WHERE user_key IS NOT NULL AND user_key != '';

		CREATE INDEX IF NOT EXISTS idx_profiles_activity
			ON profiles(last_bot_activity);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}

	return nil
}

const profileColumns = `id, user_key, email, full_name, subscription_status,
	customer_ref, subscription_ref, bot_registered_at, last_bot_activity,
	bot_active, created_at, updated_at`

// scanProfile reads one profile row from a row scanner
func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	var userKey sql.NullString
	var botRegisteredAt, lastBotActivity sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&p.ID,
		&userKey,
		&p.Email,
		&p.FullName,
		&p.SubscriptionStatus,
		&p.CustomerRef,
		&p.SubscriptionRef,
		&botRegisteredAt,
		&lastBotActivity,
		&p.BotActive,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning profile: %w", err)
	}

	p.UserKey = userKey.String

	if p.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if botRegisteredAt.Valid && botRegisteredAt.String != "" {
		t, err := time.Parse(time.RFC3339, botRegisteredAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing bot_registered_at: %w", err)
		}
		p.BotRegisteredAt = &t
	}
	if lastBotActivity.Valid && lastBotActivity.String != "" {
		t, err := time.Parse(time.RFC3339, lastBotActivity.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_bot_activity: %w", err)
		}
		p.LastBotActivity = &t
	}

	return &p, nil
}

// GetByUserKey returns the profile linked to a chat account
func (s *SQLiteStore) GetByUserKey(ctx context.Context, userKey string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_key = ?`
	return scanProfile(s.db.QueryRowContext(ctx, query, userKey))
}

// GetByEmail returns the profile for an email address (case-insensitive)
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?`
	return scanProfile(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

// Link attaches a chat account to the profile owning the email
func (s *SQLiteStore) Link(ctx context.Context, userKey, email string) (*Profile, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE profiles
		SET user_key = ?, bot_registered_at = ?, last_bot_activity = ?,
			bot_active = 1, updated_at = ?
		WHERE email = ?
	`
	res, err := s.db.ExecContext(ctx, query, userKey, now, now, now, strings.ToLower(email))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrDuplicateProfile
		}
		return nil, fmt.Errorf("linking profile: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking link result: %w", err)
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("profile linked", "user_key", userKey)
	return s.GetByUserKey(ctx, userKey)
}

// TouchActivity updates last_bot_activity for a linked profile
func (s *SQLiteStore) TouchActivity(ctx context.Context, userKey string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE profiles
		SET last_bot_activity = ?, bot_active = 1, updated_at = ?
		WHERE user_key = ?
	`
	res, err := s.db.ExecContext(ctx, query, now, now, userKey)
	if err != nil {
		return fmt.Errorf("touching activity: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking touch result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// GetSubscription reads the subscription fields for a linked profile
func (s *SQLiteStore) GetSubscription(ctx context.Context, userKey string) (*Subscription, error) {
	query := `
		SELECT subscription_status, customer_ref, subscription_ref
		FROM profiles
		WHERE user_key = ?
	`

	var sub Subscription
	err := s.db.QueryRowContext(ctx, query, userKey).Scan(
		&sub.Status,
		&sub.CustomerRef,
		&sub.SubscriptionRef,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscription: %w", err)
	}

	return &sub, nil
}

// CreateProfile inserts a new profile
func (s *SQLiteStore) CreateProfile(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var botRegisteredAt, lastBotActivity any
	if p.BotRegisteredAt != nil {
		botRegisteredAt = p.BotRegisteredAt.UTC().Format(time.RFC3339)
	}
	if p.LastBotActivity != nil {
		lastBotActivity = p.LastBotActivity.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.UserKey,
		strings.ToLower(p.Email),
		p.FullName,
		p.SubscriptionStatus,
		p.CustomerRef,
		p.SubscriptionRef,
		botRegisteredAt,
		lastBotActivity,
		p.BotActive,
		p.CreatedAt.UTC().Format(time.RFC3339),
		p.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateProfile
		}
		return fmt.Errorf("inserting profile: %w", err)
	}

	s.logger.Debug("created profile", "id", p.ID, "email", p.Email)
	return nil
}

// Deactivate marks a linked profile's bot access inactive
func (s *SQLiteStore) Deactivate(ctx context.Context, userKey string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		UPDATE profiles
		SET bot_active = 0, last_bot_activity = ?, updated_at = ?
		WHERE user_key = ?
	`
	res, err := s.db.ExecContext(ctx, query, now, now, userKey)
	if err != nil {
		return fmt.Errorf("deactivating profile: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deactivate result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// MemberStats returns aggregate membership counts for bot-linked profiles
func (s *SQLiteStore) MemberStats(ctx context.Context) (*Stats, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN bot_active = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN bot_registered_at >= ? THEN 1 ELSE 0 END), 0)
		FROM profiles
		WHERE user_key IS NOT NULL AND user_key != ''
	`

	var stats Stats
	err := s.db.QueryRowContext(ctx, query, dayStart).Scan(
		&stats.TotalMembers,
		&stats.ActiveMembers,
		&stats.NewMembersToday,
	)
	if err != nil {
		return nil, fmt.Errorf("querying member stats: %w", err)
	}

	return &stats, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks whether an error is a SQLite constraint failure
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}
