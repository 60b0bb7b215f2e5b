package medconfirm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/medconfirm/internal/flows"
	"github.com/MrEthical07/medconfirm/internal/limiters"
	"github.com/MrEthical07/medconfirm/jwt"
)

const (
	messageSuccess          = "Your email has been confirmed. Opening the app..."
	messageUntrustedOrigin  = "Unauthorized request."
	messageRateLimited      = "Too many confirmation attempts. Please try again in an hour."
	messageMissingToken     = "This confirmation link is incomplete. Please use the full link from your email."
	messageMalformedToken   = "Invalid token format."
	messageExchangeTimeout  = "The confirmation request timed out. Please check your connection and try again."
	messageLinkExpired      = "This confirmation link has expired or is invalid. Please request a new confirmation email."
	messageAccountNotFound  = "No doctor account matches this email address. Please contact support."
	messageGeneric          = "An error occurred while confirming your email. Please try again."
	messageFlowInProgress   = "Confirmation in progress..."
	messageServiceUnhealthy = "The confirmation service is temporarily unavailable. Please try again shortly."
)

// Outcome codes returned in [Outcome.Code].
const (
	CodeConfirmed       = "confirmed"
	CodeUntrustedOrigin = "untrusted_origin"
	CodeRateLimited     = "rate_limited"
	CodeMissingToken    = "missing_token"
	CodeMalformedToken  = "malformed_token"
	CodeExchangeTimeout = "exchange_timeout"
	CodeLinkExpired     = "link_expired"
	CodeExchangeFailed  = "exchange_failed"
	CodeAccountNotFound = "account_not_found"
	CodeInProgress      = "in_progress"
	CodeUnavailable     = "unavailable"
)

// expiredLinkCodes are provider redirect error codes meaning the link can no
// longer be used.
var expiredLinkCodes = []string{"otp_expired", "flow_state_expired", "flow_state_not_found"}

// FlowOption customizes a [Flow].
type FlowOption func(*Flow)

// WithLatch replaces the flow's in-process latch, e.g. with [Engine.PageLatch].
func WithLatch(latch Latch) FlowOption {
	return func(f *Flow) {
		if latch != nil {
			f.latch = latch
		}
	}
}

// WithNavigator sets where URL replacement and the deep-link redirect go.
func WithNavigator(navigator Navigator) FlowOption {
	return func(f *Flow) {
		if navigator != nil {
			f.navigator = navigator
		}
	}
}

// Flow is the confirmation controller of one page instance. Run succeeds at
// most once per latch; later calls report [ErrFlowInProgress].
type Flow struct {
	engine    *Engine
	deviceID  string
	latch     Latch
	navigator Navigator

	mu      sync.Mutex
	outcome Outcome
}

// NewFlow creates a flow for the device identified by deviceID. The device ID
// keys the attempt record.
func (e *Engine) NewFlow(deviceID string, opts ...FlowOption) *Flow {
	f := &Flow{
		engine:    e,
		deviceID:  deviceID,
		latch:     &localLatch{},
		navigator: noopNavigator{},
		outcome:   Outcome{Status: StatusLoading, Message: messageFlowInProgress},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Outcome returns the flow's current outcome.
func (f *Flow) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

// Run validates currentOrigin, applies the attempt limiter, extracts and
// checks the token in currentURL, exchanges it with the identity service and
// hands off to the app.
//
// The returned Outcome is always user-presentable. The error is nil on
// success and otherwise wraps one of the package's sentinel errors. A repeated
// call returns a loading Outcome with [ErrFlowInProgress] and has no side
// effects.
func (f *Flow) Run(ctx context.Context, currentURL, currentOrigin string) (Outcome, error) {
	e := f.engine
	if e == nil || e.limiter == nil || e.identity == nil || e.records == nil {
		return f.finish(ErrEngineNotReady, flows.ConfirmationResult{}), ErrEngineNotReady
	}

	result, err := flows.RunConfirmation(ctx, currentURL, currentOrigin, f.confirmationDeps())
	if errors.Is(err, ErrFlowInProgress) {
		return Outcome{Status: StatusLoading, Code: CodeInProgress, Message: messageFlowInProgress}, err
	}
	return f.finish(err, result), err
}

func (f *Flow) finish(err error, result flows.ConfirmationResult) Outcome {
	var outcome Outcome
	if err == nil {
		outcome = Outcome{
			Status:        StatusSuccess,
			Code:          CodeConfirmed,
			Message:       messageSuccess,
			DeepLink:      result.DeepLink,
			RedirectAfter: result.RedirectAfter,
		}
	} else {
		code, message := outcomeForError(err)
		outcome = Outcome{
			Status:  StatusError,
			Code:    code,
			Message: message,
		}
	}

	f.mu.Lock()
	f.outcome = outcome
	f.mu.Unlock()
	return outcome
}

func outcomeForError(err error) (string, string) {
	switch {
	case errors.Is(err, ErrUntrustedOrigin):
		return CodeUntrustedOrigin, messageUntrustedOrigin
	case errors.Is(err, ErrConfirmationRateLimited):
		return CodeRateLimited, messageRateLimited
	case errors.Is(err, ErrMissingToken):
		return CodeMissingToken, messageMissingToken
	case errors.Is(err, ErrMalformedToken):
		return CodeMalformedToken, messageMalformedToken
	case errors.Is(err, ErrExchangeTimeout):
		return CodeExchangeTimeout, messageExchangeTimeout
	case errors.Is(err, ErrLinkExpired):
		return CodeLinkExpired, messageLinkExpired
	case errors.Is(err, ErrAccountNotFound):
		return CodeAccountNotFound, messageAccountNotFound
	case errors.Is(err, ErrLatchUnavailable), errors.Is(err, ErrEngineNotReady):
		return CodeUnavailable, messageServiceUnhealthy
	default:
		return CodeExchangeFailed, messageGeneric
	}
}

func (f *Flow) confirmationDeps() flows.ConfirmationDeps {
	e := f.engine
	cfg := e.config.Confirmation
	deviceID := f.deviceID
	shape := jwt.ShapeRule{MinLength: cfg.MinTokenLength, MaxLength: cfg.MaxTokenLength}

	return flows.ConfirmationDeps{
		AllowedOrigins:   cfg.AllowedOrigins,
		ExchangeTimeout:  cfg.ExchangeTimeout,
		DeepLink:         cfg.DeepLink,
		RedirectDelay:    cfg.RedirectDelay,
		SignupKind:       string(OTPSignup),
		GenericKind:      string(OTPEmail),
		ExpiredLinkCodes: expiredLinkCodes,
		Now:              e.now,

		AcquireLatch: f.latch.Acquire,
		CheckAttempts: func(ctx context.Context) error {
			_, err := e.limiter.Check(ctx, deviceID)
			return err
		},
		RecordFailure: func(ctx context.Context) error {
			_, err := e.limiter.RecordFailure(ctx, deviceID)
			return err
		},
		ResetAttempts: func(ctx context.Context) error {
			return e.limiter.Reset(ctx, deviceID)
		},
		MapLimiterError: mapConfirmationLimiterError,

		CheckTokenShape: func(token string) error {
			return jwt.CheckShape(token, shape)
		},

		EstablishSession: func(ctx context.Context, access, refresh string) (flows.ConfirmationUser, error) {
			user, err := e.identity.EstablishSession(ctx, access, refresh)
			return flows.ConfirmationUser(user), err
		},
		VerifyOneTimeToken: func(ctx context.Context, token, kind string) (flows.ConfirmationUser, error) {
			user, err := e.identity.VerifyOneTimeToken(ctx, token, OTPKind(kind))
			return flows.ConfirmationUser(user), err
		},
		MarkEmailConfirmed: e.identity.MarkEmailConfirmed,
		FindRecordByEmail: func(ctx context.Context, email string) (string, bool, error) {
			email = strings.TrimSpace(email)
			if email == "" {
				return "", false, nil
			}
			record, err := e.records.FindByEmail(ctx, email)
			if err != nil || record == nil {
				return "", false, err
			}
			return record.ID, true, nil
		},
		TouchRecord:           e.records.TouchUpdatedAt,
		ClassifyExchangeError: classifyExchangeError,

		ReplaceURL:       f.navigator.ReplaceURL,
		ScheduleRedirect: f.navigator.ScheduleRedirect,

		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		ObserveLatency: func(id int, d time.Duration) {
			e.metricObserve(MetricID(id), d)
		},
		EmitAudit: func(ctx context.Context, event string, success bool, userID string, err error, metadata func() map[string]string) {
			e.emitAudit(ctx, deviceID, event, success, userID, err, metadata)
		},
		LogBestEffort: func(ctx context.Context, task string, err error) {
			e.logger.Warn().
				Err(err).
				Str("task", task).
				Str("device_id", deviceID).
				Str("request_id", RequestIDFromContext(ctx)).
				Msg("confirmation step failed; continuing")
		},

		Metrics: flows.ConfirmationMetrics{
			Started:           int(MetricConfirmationStarted),
			Success:           int(MetricConfirmationSuccess),
			Failure:           int(MetricConfirmationFailure),
			DuplicateRun:      int(MetricDuplicateRun),
			UntrustedOrigin:   int(MetricUntrustedOrigin),
			RateLimited:       int(MetricConfirmationRateLimited),
			MissingToken:      int(MetricMissingToken),
			MalformedToken:    int(MetricMalformedToken),
			ExchangeTimeout:   int(MetricExchangeTimeout),
			LinkExpired:       int(MetricLinkExpired),
			ExchangeRejected:  int(MetricExchangeRejected),
			AccountNotFound:   int(MetricAccountNotFound),
			RecordLookup:      int(MetricRecordLookupFailure),
			BestEffortFailure: int(MetricBestEffortFailure),
			ExchangeLatency:   int(MetricExchangeLatency),
		},
		Events: flows.ConfirmationEvents{
			Confirm:     auditEventConfirmation,
			RateLimited: auditEventConfirmationRateLimited,
			Duplicate:   auditEventConfirmationDuplicate,
		},
		Errors: flows.ConfirmationErrors{
			EngineNotReady:         ErrEngineNotReady,
			LatchUnavailable:       ErrLatchUnavailable,
			FlowInProgress:         ErrFlowInProgress,
			UntrustedOrigin:        ErrUntrustedOrigin,
			RateLimited:            ErrConfirmationRateLimited,
			MissingToken:           ErrMissingToken,
			MalformedToken:         ErrMalformedToken,
			ExchangeTimeout:        ErrExchangeTimeout,
			LinkExpired:            ErrLinkExpired,
			ExchangeRejected:       ErrExchangeRejected,
			AccountNotFound:        ErrAccountNotFound,
			RecordStoreUnavailable: ErrRecordStoreUnavailable,
		},
	}
}

func mapConfirmationLimiterError(err error) error {
	if errors.Is(err, limiters.ErrConfirmationRateLimited) {
		return ErrConfirmationRateLimited
	}
	return err
}

// classifyExchangeError maps adapter error kinds onto flow errors.
func classifyExchangeError(err error) error {
	switch {
	case errors.Is(err, ErrIdentityTimeout):
		return fmt.Errorf("%w: %v", ErrExchangeTimeout, err)
	case errors.Is(err, ErrIdentityTokenExpired), errors.Is(err, ErrIdentityTokenInvalid):
		return fmt.Errorf("%w: %v", ErrLinkExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrExchangeRejected, err)
	}
}

type noopNavigator struct{}

func (noopNavigator) ReplaceURL(string) error                    { return nil }
func (noopNavigator) ScheduleRedirect(string, time.Duration) error { return nil }
