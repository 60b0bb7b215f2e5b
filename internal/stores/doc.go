// Package stores provides the Redis-backed state of the confirmation flow:
// per-device attempt records and per-page re-entrancy latches.
//
// # Design
//
// Attempt records are Redis hashes keyed by device ID whose field names match
// the browser-side storage keys (confirmation_attempts,
// confirmation_last_attempt). Page latches are SET NX keys with a TTL.
//
// # Architecture boundaries
//
// This package owns persistence only. Window expiry and the attempt cap are
// policy and live in internal/limiters.
//
// # What this package must NOT do
//
//   - Import medconfirm or any sibling internal package.
//   - Interpret attempt counts.
package stores
