// ABOUTME: Tests for gateway lifecycle and component wiring.
// ABOUTME: Covers construction, run/shutdown, and the end-to-end linking flow.

package gateway

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fold-concierge/internal/gate"
	"github.com/2389/fold-concierge/internal/profile"
)

func TestGateway_New_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = "/proc/invalid/members.db"

	_, err := New(cfg, nil, slog.Default())
	assert.Error(t, err)
}

func TestGateway_RunStopsOnContextCancel(t *testing.T) {
	gw, err := New(testConfig(t), nil, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	// Let the server come up, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down after context cancel")
	}
}

func TestGateway_EndToEndLinkingFlow(t *testing.T) {
	gw := newTestGateway(t, testConfig(t))
	ctx := context.Background()

	// A membership exists but is not linked to any chat account
	require.NoError(t, gw.profiles.CreateProfile(ctx, &profile.Profile{
		ID:                 "prof-1",
		Email:              "ada@example.com",
		FullName:           "Ada Lovelace",
		SubscriptionStatus: profile.SubscriptionActive,
	}))

	// /start begins the linking flow
	reply := gw.Inbound(ctx, gate.Message{UserKey: "42", Text: "/start", FirstName: "Ada"})
	assert.Contains(t, reply.Text, "email")

	// Submitting the email links the account
	reply = gw.Inbound(ctx, gate.Message{UserKey: "42", Text: "ada@example.com"})
	assert.Contains(t, reply.Text, "linked")

	// The member now passes every guard
	reply = gw.Inbound(ctx, gate.Message{UserKey: "42", Text: "hello"})
	assert.NotContains(t, reply.Text, "Send /start")

	linked, err := gw.profiles.GetByUserKey(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", linked.Email)
}
