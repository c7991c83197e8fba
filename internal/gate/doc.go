// Package gate authorizes every inbound chat message before any feature
// handling runs.
//
// # Guard Pipeline
//
// Free-text messages flow through an ordered pipeline of guards, each of
// which either produces a terminal reply or passes the request on:
//
//  1. Authentication: does a member profile exist for this chat account?
//  2. Conversation state: is the user mid-way through the email linking
//     flow? (Only reached for unauthenticated users.)
//  3. Subscription: is the member's subscription active?
//  4. Dispatch: forward to downstream feature handling.
//
// The ordering is a hard invariant. A user who has never linked an account
// is never evaluated for subscription status, and subscription messaging is
// never shown before authentication messaging.
//
// # Linking Flow
//
// /start for an unknown account creates an awaiting-email conversation
// record and prompts for the membership email. The next free-text message
// is validated and looked up; on a match the chat account is linked to the
// profile, the subscription cache entry is invalidated, and the
// conversation record cleared. Failures leave state and cache untouched.
//
// # Failure Semantics
//
// HandleMessage never returns an error: collaborator failures are logged
// and collapsed into a generic retry-later reply, so the message scheduler
// never sees a panic or an error from the gate.
package gate
