// Package flows contains the confirmation flow as a pure function over a
// typed dependency struct.
//
// [RunConfirmation] checks the origin, consults the attempt limiter,
// extracts and shape-checks the token, exchanges it, locates the doctor
// record and finalizes navigation. Every side effect goes through a
// function field of [ConfirmationDeps]; the root package supplies them.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import medconfirm (to avoid import cycles).
//   - Perform I/O directly.
package flows
