// Package auth provides JWT verification for the operations API.
//
// Tokens are HS256 signed with a shared secret from configuration. The
// RequireToken middleware guards every /api/ endpoint; the health endpoint
// stays unauthenticated so load balancers can probe it.
package auth
