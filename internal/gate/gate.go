// ABOUTME: Access gate that authorizes every inbound chat message.
// ABOUTME: Runs ordered guards (authentication, conversation state, subscription) and the email linking flow.

package gate

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/2389/fold-concierge/internal/profile"
	"github.com/2389/fold-concierge/internal/state"
	"github.com/2389/fold-concierge/internal/subcache"
)

// Message is one inbound chat message, normalized by the transport.
type Message struct {
	UserKey   string
	Text      string
	FirstName string
}

// Reply is the text the transport should deliver back to the user.
type Reply struct {
	Text string
}

// Dispatcher handles feature traffic for members with an active
// subscription. The gate only forwards messages that passed every guard.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) (Reply, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, msg Message) (Reply, error)

// Dispatch calls f(ctx, msg).
func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) (Reply, error) {
	return f(ctx, msg)
}

// emailRegex is deliberately strict: exactly one @, and at least one dot in
// the domain part.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// request carries per-message context between pipeline guards.
type request struct {
	msg Message

	// profile is set by the authentication guard when the user is linked
	profile *profile.Profile
}

// guard inspects a request and either produces a terminal reply
// (done = true) or lets the pipeline continue.
type guard func(ctx context.Context, req *request) (reply Reply, done bool)

// Gate authorizes inbound messages. Checks always run in a fixed order:
// authentication (profile existence), then conversation state, then
// subscription status, which gates feature dispatch. A user mid-linking is
// never evaluated for subscription status, and an unauthenticated user is
// never shown subscription messaging.
type Gate struct {
	states     *state.Manager
	cache      *subcache.Cache
	profiles   profile.Store
	dispatcher Dispatcher
	logger     *slog.Logger
	pipeline   []guard
}

// New creates an access gate. The dispatcher may be nil, in which case
// active members get a placeholder acknowledgement.
func New(states *state.Manager, cache *subcache.Cache, profiles profile.Store, dispatcher Dispatcher, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		states:     states,
		cache:      cache,
		profiles:   profiles,
		dispatcher: dispatcher,
		logger:     logger.With("component", "gate"),
	}
	g.pipeline = []guard{
		g.checkAuthentication,
		g.checkConversationState,
		g.checkSubscription,
		g.dispatch,
	}
	return g
}

// HandleMessage authorizes one inbound message and returns the reply to
// deliver. It never panics and never returns an error to the scheduler:
// collaborator failures are logged and collapsed into a retry-later reply.
func (g *Gate) HandleMessage(ctx context.Context, msg Message) Reply {
	text := strings.TrimSpace(msg.Text)
	msg.Text = text

	switch {
	case text == "/start":
		return g.handleStart(ctx, msg)
	case text == "/help":
		return Reply{Text: helpText}
	case text == "/status":
		return g.handleStatus(ctx, msg)
	case strings.HasPrefix(text, "/"):
		return Reply{Text: unknownCommandText}
	}

	req := &request{msg: msg}
	for _, check := range g.pipeline {
		if reply, done := check(ctx, req); done {
			return reply
		}
	}

	// The dispatch guard is always terminal; reaching here is a bug.
	g.logger.Error("guard pipeline fell through", "user_key", msg.UserKey)
	return Reply{Text: retryLaterText}
}

// handleStart is the entry command: it authenticates the user and either
// welcomes them back or begins the email linking flow.
func (g *Gate) handleStart(ctx context.Context, msg Message) Reply {
	p, err := g.profiles.GetByUserKey(ctx, msg.UserKey)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			g.states.Set(msg.UserKey, state.PhaseAwaitingEmail, "")
			return Reply{Text: emailPromptText(msg.FirstName)}
		}
		g.logger.Error("authentication check failed", "user_key", msg.UserKey, "error", err)
		return Reply{Text: retryLaterText}
	}

	// Already linked: welcome back with the subscription tier
	result := g.cache.GetSubscriptionStatus(ctx, msg.UserKey)
	g.touchActivity(ctx, msg.UserKey)
	return Reply{Text: welcomeBackText(displayName(p, msg), result.Status)}
}

// handleStatus reports membership and store health. A failing profile store
// degrades to a reduced report rather than an error.
func (g *Gate) handleStatus(ctx context.Context, msg Message) Reply {
	stateStats := g.states.Stats()
	cacheStats := g.cache.Stats()

	memberStats, err := g.profiles.MemberStats(ctx)
	if err != nil {
		g.logger.Error("member stats unavailable", "error", err)
		return Reply{Text: statusFallbackText(msg.UserKey, stateStats, cacheStats)}
	}

	return Reply{Text: statusText(msg.UserKey, memberStats, stateStats, cacheStats)}
}

// checkAuthentication resolves the user's profile. A missing profile is not
// terminal here; the conversation-state guard decides what to tell them.
func (g *Gate) checkAuthentication(ctx context.Context, req *request) (Reply, bool) {
	p, err := g.profiles.GetByUserKey(ctx, req.msg.UserKey)
	if err == nil {
		req.profile = p
		return Reply{}, false
	}
	if errors.Is(err, profile.ErrNotFound) {
		return Reply{}, false
	}

	g.logger.Error("authentication check failed", "user_key", req.msg.UserKey, "error", err)
	return Reply{Text: retryLaterText}, true
}

// checkConversationState drives the email linking flow for unlinked users.
// Once a profile exists, any leftover conversation record is irrelevant.
func (g *Gate) checkConversationState(ctx context.Context, req *request) (Reply, bool) {
	if req.profile != nil {
		return Reply{}, false
	}

	if g.states.InPhase(req.msg.UserKey, state.PhaseAwaitingEmail) {
		return g.handleEmailSubmission(ctx, req.msg), true
	}

	return Reply{Text: restartFlowText}, true
}

// handleEmailSubmission processes free text from a user in the awaiting
// email phase. Nothing is mutated unless the link fully succeeds.
func (g *Gate) handleEmailSubmission(ctx context.Context, msg Message) Reply {
	email := strings.ToLower(msg.Text)
	if !emailRegex.MatchString(email) {
		return Reply{Text: emailFormatErrorText}
	}

	// Remember what they typed while the lookup is in flight
	g.states.Update(msg.UserKey, func(c *state.Conversation) {
		c.PendingEmail = email
	})

	_, err := g.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return Reply{Text: emailNotRecognizedText}
		}
		g.logger.Error("email lookup failed", "user_key", msg.UserKey, "error", err)
		return Reply{Text: retryLaterText}
	}

	linked, err := g.profiles.Link(ctx, msg.UserKey, email)
	if err != nil {
		g.logger.Error("linking failed", "user_key", msg.UserKey, "error", err)
		return Reply{Text: retryLaterText}
	}

	// Two independent, individually-atomic steps; a crash between them is
	// self-correcting on the user's next message.
	g.cache.Invalidate(msg.UserKey)
	g.states.Clear(msg.UserKey)

	g.logger.Info("account linked", "user_key", msg.UserKey)
	return Reply{Text: linkSuccessText(displayName(linked, msg))}
}

// checkSubscription gates feature dispatch on an active subscription.
func (g *Gate) checkSubscription(ctx context.Context, req *request) (Reply, bool) {
	result := g.cache.GetSubscriptionStatus(ctx, req.msg.UserKey)
	if result.Status == profile.SubscriptionActive {
		return Reply{}, false
	}

	return Reply{Text: tierMessageText(result.Status)}, true
}

// dispatch forwards the message to downstream feature handling. Terminal.
func (g *Gate) dispatch(ctx context.Context, req *request) (Reply, bool) {
	g.touchActivity(ctx, req.msg.UserKey)

	if g.dispatcher == nil {
		return Reply{Text: dispatchPlaceholderText}, true
	}

	reply, err := g.dispatcher.Dispatch(ctx, req.msg)
	if err != nil {
		g.logger.Error("dispatch failed", "user_key", req.msg.UserKey, "error", err)
		return Reply{Text: retryLaterText}, true
	}
	return reply, true
}

// touchActivity updates the member's last-activity marker; failures are
// logged but never affect the reply.
func (g *Gate) touchActivity(ctx context.Context, userKey string) {
	if err := g.profiles.TouchActivity(ctx, userKey); err != nil {
		g.logger.Warn("touch activity failed", "user_key", userKey, "error", err)
	}
}

// displayName prefers the profile's full name, then the chat first name.
func displayName(p *profile.Profile, msg Message) string {
	if p != nil && p.FullName != "" {
		return p.FullName
	}
	if msg.FirstName != "" {
		return msg.FirstName
	}
	return "there"
}
