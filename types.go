package medconfirm

import (
	"context"
	"time"
)

// OutcomeStatus is the user-visible state of a confirmation flow.
type OutcomeStatus string

const (
	// StatusLoading is the initial state; it is also returned for a duplicate run.
	StatusLoading OutcomeStatus = "loading"
	// StatusSuccess is the terminal state after a confirmed email.
	StatusSuccess OutcomeStatus = "success"
	// StatusError is the terminal state after any failure.
	StatusError OutcomeStatus = "error"
)

// Outcome is the result of one confirmation flow. A flow reaches at most one
// terminal Outcome.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message"`

	// DeepLink is set on success so a page can offer a manual "open app"
	// action when the scheduled redirect does not happen.
	DeepLink      string        `json:"deep_link,omitempty"`
	RedirectAfter time.Duration `json:"-"`
}

// Terminal reports whether the outcome is success or error.
func (o Outcome) Terminal() bool {
	return o.Status == StatusSuccess || o.Status == StatusError
}

// AttemptRecord is the per-device failed-attempt counter. LastAttempt is epoch
// milliseconds.
type AttemptRecord struct {
	Count       int
	LastAttempt int64
}

// IdentityUser is the user the identity service returns after an exchange.
type IdentityUser struct {
	ID             string
	Email          string
	EmailConfirmed bool
}

// DoctorRecord is the application-level doctor row matched by email after a
// successful exchange.
type DoctorRecord struct {
	ID             string
	Email          string
	FullName       string
	Status         string
	EmailConfirmed bool
	UpdatedAt      time.Time
}

// OTPKind selects the verification kind for query-token links.
type OTPKind string

const (
	// OTPSignup verifies a signup confirmation token.
	OTPSignup OTPKind = "signup"
	// OTPEmail verifies any other email token.
	OTPEmail OTPKind = "email"
)

// IdentityService is the hosted identity provider as seen by the engine.
//
// Implementations translate provider rejections into errors wrapping
// [ErrIdentityTokenExpired], [ErrIdentityTokenInvalid] or
// [ErrIdentityUnavailable]. Blocking calls must honor ctx cancellation.
type IdentityService interface {
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (IdentityUser, error)
	VerifyOneTimeToken(ctx context.Context, token string, kind OTPKind) (IdentityUser, error)
	MarkEmailConfirmed(ctx context.Context, userID string) error
}

// RecordStore resolves doctor records. FindByEmail returns (nil, nil) when no
// record matches.
type RecordStore interface {
	FindByEmail(ctx context.Context, email string) (*DoctorRecord, error)
	TouchUpdatedAt(ctx context.Context, id string) error
}

// AttemptStore persists the per-device attempt record.
type AttemptStore interface {
	Load(ctx context.Context, deviceID string) (AttemptRecord, error)
	Save(ctx context.Context, deviceID string, record AttemptRecord) error
	Clear(ctx context.Context, deviceID string) error
}

// Navigator applies the navigation side effects of a successful flow.
type Navigator interface {
	ReplaceURL(cleanURL string) error
	ScheduleRedirect(target string, after time.Duration) error
}

// Latch guards a flow against re-entrant runs. Acquire returns true exactly
// once per latch.
type Latch interface {
	Acquire(ctx context.Context) (bool, error)
}
