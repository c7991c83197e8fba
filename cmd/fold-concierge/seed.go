// ABOUTME: Seed subcommand that loads member profiles from a TOML fixture
// ABOUTME: Used for local development and staging environments

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/fold-concierge/internal/config"
	"github.com/2389/fold-concierge/internal/profile"
)

// seedFixture is the TOML layout for `fold-concierge seed`.
//
//	[[members]]
//	email = "ada@example.com"
//	full_name = "Ada Lovelace"
//	subscription_status = "active"
//	user_key = "42"          # optional: pre-linked chat account
//	customer_ref = "cus_123" # optional
type seedFixture struct {
	Members []seedMember `toml:"members"`
}

type seedMember struct {
	Email              string `toml:"email"`
	FullName           string `toml:"full_name"`
	SubscriptionStatus string `toml:"subscription_status"`
	UserKey            string `toml:"user_key"`
	CustomerRef        string `toml:"customer_ref"`
	SubscriptionRef    string `toml:"subscription_ref"`
}

func runSeed(ctx context.Context) error {
	var file string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--file" || arg == "-f":
			if i+1 >= len(args) {
				return fmt.Errorf("--file requires a value")
			}
			file = args[i+1]
			i++
		case strings.HasPrefix(arg, "--file="):
			file = strings.TrimPrefix(arg, "--file=")
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if file == "" {
		return fmt.Errorf("--file flag is required")
	}

	var fixture seedFixture
	if _, err := toml.DecodeFile(file, &fixture); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}
	if len(fixture.Members) == 0 {
		return fmt.Errorf("fixture contains no members")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := profile.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	created, skipped := 0, 0
	for _, m := range fixture.Members {
		if m.Email == "" {
			return fmt.Errorf("fixture member missing email")
		}
		status := m.SubscriptionStatus
		if status == "" {
			status = profile.SubscriptionInactive
		}

		p := &profile.Profile{
			ID:                 uuid.NewString(),
			UserKey:            m.UserKey,
			Email:              m.Email,
			FullName:           m.FullName,
			SubscriptionStatus: status,
			CustomerRef:        m.CustomerRef,
			SubscriptionRef:    m.SubscriptionRef,
		}

		if err := store.CreateProfile(ctx, p); err != nil {
			if errors.Is(err, profile.ErrDuplicateProfile) {
				yellow.Printf("  - skipped %s (already exists)\n", m.Email)
				skipped++
				continue
			}
			return fmt.Errorf("creating profile for %s: %w", m.Email, err)
		}
		green.Printf("  ✓ %s (%s)\n", m.Email, status)
		created++
	}

	fmt.Printf("\nSeeded %d member(s), skipped %d\n", created, skipped)
	return nil
}
