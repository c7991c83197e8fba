// Package gateway assembles the fold-concierge server.
//
// A Gateway owns every long-lived component: the SQLite member profile
// store, the in-memory conversation state manager, the subscription cache,
// and the access gate that authorizes inbound chat messages. It also runs
// the operations HTTP API.
//
// # Operations API
//
// All /api/ endpoints require a bearer token signed with auth.jwt_secret.
// The health endpoint is unauthenticated for load balancer probes.
//
//	GET  /healthz                          liveness probe
//	GET  /api/cache/stats                  subscription cache counters
//	POST /api/cache/invalidate/{userKey}   drop one cached status
//	POST /api/cache/invalidate-all         flush the cache
//	POST /api/cache/prewarm/{userKey}      eagerly re-fetch one status
//	POST /api/billing/events               subscription change notification
//
// # Lifecycle
//
// Run blocks until the context is canceled, then shuts down the HTTP
// server and closes every component. The in-memory stores discard their
// contents on shutdown; only the profile database persists.
package gateway
