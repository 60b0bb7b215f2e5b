// Package limiters provides the per-device confirmation attempt limiter.
//
// [ConfirmationLimiter] caps failed confirmation attempts per device within a
// fixed window measured from the most recent failure. Persistence is
// delegated to an [AttemptBackend]; the limiter only interprets records.
//
// # What this package must NOT do
//
//   - Import medconfirm or any sibling internal package.
//   - Decide what a failure is. Flow functions call RecordFailure.
package limiters
