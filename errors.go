package medconfirm

import "errors"

var (
	// ErrFlowInProgress is returned when a flow instance is run more than once.
	ErrFlowInProgress = errors.New("confirmation already in progress")
	// ErrUntrustedOrigin is returned when the reporting origin is not allow-listed.
	ErrUntrustedOrigin = errors.New("unauthorized request origin")
	// ErrConfirmationRateLimited is returned when the device reached the attempt cap.
	ErrConfirmationRateLimited = errors.New("confirmation rate limited")
	// ErrMissingToken is returned when the entry URL carries no confirmation token.
	ErrMissingToken = errors.New("confirmation token missing")
	// ErrMalformedToken is returned when the access token fails the shape check.
	ErrMalformedToken = errors.New("confirmation token malformed")
	// ErrExchangeTimeout is returned when the identity exchange exceeded its deadline.
	ErrExchangeTimeout = errors.New("confirmation exchange timed out")
	// ErrLinkExpired is returned when the identity service reports the link as expired or invalid.
	ErrLinkExpired = errors.New("confirmation link expired or invalid")
	// ErrExchangeRejected is returned for any other identity exchange failure.
	ErrExchangeRejected = errors.New("confirmation exchange rejected")
	// ErrAccountNotFound is returned when no doctor record matches the confirmed email.
	ErrAccountNotFound = errors.New("doctor account not found")
	// ErrRecordStoreUnavailable is returned when the doctor record lookup fails.
	ErrRecordStoreUnavailable = errors.New("record store unavailable")
	// ErrLatchUnavailable is returned when the re-entrancy latch cannot be acquired.
	ErrLatchUnavailable = errors.New("flow latch unavailable")
	// ErrInvalidPageID is returned when a page latch is requested without a page ID.
	ErrInvalidPageID = errors.New("invalid page instance id")
	// ErrEngineNotReady is returned when a required collaborator was not configured.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrIdentityTokenExpired marks provider rejections of expired tokens or links.
	// Identity adapters wrap it; the engine never inspects provider text.
	ErrIdentityTokenExpired = errors.New("identity token expired")
	// ErrIdentityTokenInvalid marks provider rejections of invalid tokens.
	ErrIdentityTokenInvalid = errors.New("identity token invalid")
	// ErrIdentityTimeout marks provider calls abandoned by the adapter's own
	// deadline. The engine reports it as [ErrExchangeTimeout].
	ErrIdentityTimeout = errors.New("identity call timed out")
	// ErrIdentityUnavailable marks transport failures, 5xx answers and open breakers.
	ErrIdentityUnavailable = errors.New("identity service unavailable")
)
