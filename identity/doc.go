// Package identity adapts the hosted identity provider's REST API to
// [medconfirm.IdentityService].
//
// Calls go through one circuit breaker. Provider client errors (4xx) never
// trip it; transport failures and 5xx answers do. Rejections are returned
// wrapping [medconfirm.ErrIdentityTokenExpired], [medconfirm.ErrIdentityTokenInvalid]
// or [medconfirm.ErrIdentityUnavailable].
package identity
