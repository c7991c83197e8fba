// ABOUTME: User-facing reply texts for the access gate.
// ABOUTME: Kept in one place so wording changes never touch the guard logic.

package gate

import (
	"fmt"

	"github.com/2389/fold-concierge/internal/profile"
	"github.com/2389/fold-concierge/internal/state"
	"github.com/2389/fold-concierge/internal/subcache"
)

const helpText = `Available commands:

/start - Link your account or sign in
/help - Show this message
/status - Service and membership status

Once your account is linked, just send a message and I'll take it from there.`

const unknownCommandText = `I don't know that command. Try /help for the list of commands.`

const retryLaterText = `Something went wrong on our side. Please try again in a moment.`

const restartFlowText = `I don't recognize this account yet. Send /start to link it to your membership.`

const emailFormatErrorText = `That doesn't look like an email address. Please send it like name@example.com.`

const emailNotRecognizedText = `I couldn't find a membership for that email. Check the spelling, or sign up through the web app first.`

const dispatchPlaceholderText = `You're all set. Feature handling is coming online shortly.`

// emailPromptText asks a new user for the email on their membership.
func emailPromptText(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf(`Hi %s! I couldn't find a membership linked to this chat account.

Reply with the email address you signed up with and I'll connect the two.`, firstName)
}

// welcomeBackText greets a linked member, with a line for their tier.
func welcomeBackText(name, status string) string {
	greeting := fmt.Sprintf("Welcome back, %s!", name)
	switch status {
	case profile.SubscriptionActive:
		return greeting + "\n\nYour subscription is active. Send a message whenever you're ready."
	case profile.SubscriptionInactive, profile.SubscriptionCancelled:
		return greeting + "\n\n" + tierMessageText(status)
	default:
		return greeting + "\n\n" + tierMessageText(status)
	}
}

// linkSuccessText confirms the email flow completed.
func linkSuccessText(name string) string {
	return fmt.Sprintf(`Done, %s: your account is linked.

Send /start to see your membership status, or just send a message to get going.`, name)
}

// tierMessageText is shown instead of feature dispatch when the
// subscription is not active.
func tierMessageText(status string) string {
	switch status {
	case profile.SubscriptionInactive:
		return `Your subscription is currently inactive. Reactivate it in the web app to use premium features.`
	case profile.SubscriptionCancelled:
		return `Your subscription was cancelled. You can restart it any time from the web app.`
	default:
		return `You don't have a subscription yet. Sign up through the web app to unlock premium features.`
	}
}

// statusText is the full /status report.
func statusText(userKey string, members *profile.Stats, states state.Stats, cache subcache.Stats) string {
	return fmt.Sprintf(`Status report

Members: %d total, %d active, %d new today
Linking flows in progress: %d
Cache: %d entries, %.2f%% hit rate (%d requests)

Your chat ID: %s`,
		members.TotalMembers, members.ActiveMembers, members.NewMembersToday,
		states.AwaitingEmail,
		cache.TotalEntries, cache.HitRate, cache.TotalRequests,
		userKey)
}

// statusFallbackText is the degraded /status report when the profile store
// is unreachable.
func statusFallbackText(userKey string, states state.Stats, cache subcache.Stats) string {
	return fmt.Sprintf(`Status report

Member database: limited access right now
Linking flows in progress: %d
Cache: %d entries, %.2f%% hit rate (%d requests)

Your chat ID: %s`,
		states.AwaitingEmail,
		cache.TotalEntries, cache.HitRate, cache.TotalRequests,
		userKey)
}
