// Package profile provides persistent storage for member profiles and
// their subscription fields using SQLite.
//
// # Architecture
//
// The package is interface-driven: consumers depend on the Store interface,
// never on a concrete implementation. Two implementations exist:
//
//   - SQLiteStore: production storage (modernc.org/sqlite, WAL mode)
//   - MockStore: in-memory maps for unit tests
//
// The subscription cache depends only on the GetSubscription method, wired
// through its own narrow SubscriptionLookup capability, which keeps the
// cache free of a concrete store dependency.
//
// # Data Model
//
// A Profile is a member account created through the web app. It may be
// linked to a chat account via its UserKey; linking is what the access
// gate's email flow performs. Subscription fields (status, customer ref,
// subscription ref) are owned by the billing collaborator and only read
// here.
//
// # Error Handling
//
//   - ErrNotFound: no profile matches the key or email
//   - ErrDuplicateProfile: user key or email already taken
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package profile
