// Package medconfirm confirms doctor email addresses for the subscription
// admin dashboard.
//
// A doctor follows the confirmation link from their signup email and lands on
// the confirmation page. The page reports its URL and origin to the server,
// which runs one [Flow] for that page instance:
//
//  1. The reporting origin must exactly match an allow-listed origin.
//  2. A per-device attempt record caps failures at five per hour.
//  3. The confirmation token is taken from the URL fragment
//     (access_token, refresh_token) or, failing that, the query (token, type).
//  4. Fragment tokens must look like a JWT before any network call.
//  5. The token is exchanged with the identity service under a 30 second
//     deadline, the doctor record is located by email, and the page is told
//     to strip the token from its URL and open the mobile app.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. A Flow is single-use.
//
// # Boundaries
//
// The identity provider, the doctor record store and the page's navigation
// are reached only through [IdentityService], [RecordStore] and [Navigator].
// Adapters live in identity/ and internal/repositories; the HTTP surface
// lives in internal/httpapi.
package medconfirm
