// Package state tracks per-user conversation records for the email linking
// flow, with sliding expiration and a periodic background sweep.
//
// A record stays alive as long as it keeps being read: every Get refreshes
// the activity window. Only an idle period longer than the configured
// timeout expires a record. The sweep exists purely to bound memory for
// abandoned conversations; correctness is enforced by the lazy staleness
// check on every read.
package state
