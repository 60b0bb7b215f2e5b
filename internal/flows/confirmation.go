package flows

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type ConfirmationUser struct {
	ID             string
	Email          string
	EmailConfirmed bool
}

type ConfirmationResult struct {
	UserID   string
	Email    string
	RecordID string

	CleanURL          string
	DeepLink          string
	RedirectAfter     time.Duration
	RedirectScheduled bool
}

type ConfirmationMetrics struct {
	Started           int
	Success           int
	Failure           int
	DuplicateRun      int
	UntrustedOrigin   int
	RateLimited       int
	MissingToken      int
	MalformedToken    int
	ExchangeTimeout   int
	LinkExpired       int
	ExchangeRejected  int
	AccountNotFound   int
	RecordLookup      int
	BestEffortFailure int
	ExchangeLatency   int
}

type ConfirmationEvents struct {
	Confirm     string
	RateLimited string
	Duplicate   string
}

type ConfirmationErrors struct {
	EngineNotReady         error
	LatchUnavailable       error
	FlowInProgress         error
	UntrustedOrigin        error
	RateLimited            error
	MissingToken           error
	MalformedToken         error
	ExchangeTimeout        error
	LinkExpired            error
	ExchangeRejected       error
	AccountNotFound        error
	RecordStoreUnavailable error
}

type ConfirmationDeps struct {
	AllowedOrigins  []string
	ExchangeTimeout time.Duration
	DeepLink        string
	RedirectDelay   time.Duration
	SignupKind      string
	GenericKind     string

	// ExpiredLinkCodes are provider redirect error codes reported as an
	// expired link.
	ExpiredLinkCodes []string

	Now func() time.Time

	AcquireLatch    func(context.Context) (bool, error)
	CheckAttempts   func(context.Context) error
	RecordFailure   func(context.Context) error
	ResetAttempts   func(context.Context) error
	MapLimiterError func(error) error

	CheckTokenShape func(string) error

	EstablishSession      func(context.Context, string, string) (ConfirmationUser, error)
	VerifyOneTimeToken    func(context.Context, string, string) (ConfirmationUser, error)
	MarkEmailConfirmed    func(context.Context, string) error
	FindRecordByEmail     func(context.Context, string) (string, bool, error)
	TouchRecord           func(context.Context, string) error
	ClassifyExchangeError func(error) error

	ReplaceURL       func(string) error
	ScheduleRedirect func(string, time.Duration) error

	MetricInc      func(int)
	ObserveLatency func(int, time.Duration)
	EmitAudit      func(context.Context, string, bool, string, error, func() map[string]string)
	LogBestEffort  func(context.Context, string, error)

	Metrics ConfirmationMetrics
	Events  ConfirmationEvents
	Errors  ConfirmationErrors
}

// RunConfirmation drives one confirmation attempt for the page that reported
// currentURL from currentOrigin.
//
// Every failure except rate limiting records exactly one failed attempt.
// Origin, rate-limit, token presence and token shape checks all complete
// before any identity call.
func RunConfirmation(ctx context.Context, currentURL, currentOrigin string, deps ConfirmationDeps) (ConfirmationResult, error) {
	normalizeConfirmationDeps(&deps)

	if deps.AcquireLatch == nil || deps.CheckAttempts == nil || deps.RecordFailure == nil ||
		deps.ResetAttempts == nil || deps.EstablishSession == nil || deps.VerifyOneTimeToken == nil ||
		deps.FindRecordByEmail == nil || deps.ReplaceURL == nil || deps.ScheduleRedirect == nil {
		return ConfirmationResult{}, deps.Errors.EngineNotReady
	}

	acquired, err := deps.AcquireLatch(ctx)
	if err != nil {
		return ConfirmationResult{}, fmt.Errorf("%w: %v", deps.Errors.LatchUnavailable, err)
	}
	if !acquired {
		deps.MetricInc(deps.Metrics.DuplicateRun)
		deps.EmitAudit(ctx, deps.Events.Duplicate, false, "", deps.Errors.FlowInProgress, nil)
		return ConfirmationResult{}, deps.Errors.FlowInProgress
	}
	deps.MetricInc(deps.Metrics.Started)

	fail := func(metric int, cause error, metadata func() map[string]string) (ConfirmationResult, error) {
		if err := deps.RecordFailure(ctx); err != nil {
			deps.LogBestEffort(ctx, "record_failure", err)
		}
		deps.MetricInc(metric)
		deps.MetricInc(deps.Metrics.Failure)
		deps.EmitAudit(ctx, deps.Events.Confirm, false, "", cause, metadata)
		return ConfirmationResult{}, cause
	}

	if !originAllowed(deps.AllowedOrigins, currentOrigin) {
		return fail(deps.Metrics.UntrustedOrigin, deps.Errors.UntrustedOrigin, func() map[string]string {
			return map[string]string{
				"origin": currentOrigin,
			}
		})
	}

	if err := deps.CheckAttempts(ctx); err != nil {
		mapped := deps.MapLimiterError(err)
		if errors.Is(mapped, deps.Errors.RateLimited) {
			deps.MetricInc(deps.Metrics.RateLimited)
			deps.MetricInc(deps.Metrics.Failure)
			deps.EmitAudit(ctx, deps.Events.RateLimited, false, "", mapped, nil)
			return ConfirmationResult{}, mapped
		}
		// The attempt record is a heuristic; a broken store does not block confirmation.
		deps.LogBestEffort(ctx, "check_attempts", err)
	}

	tokens := ExtractConfirmationTokens(currentURL)
	if !tokens.HasAny() {
		if tokens.ProviderError != "" || tokens.ProviderErrorCode != "" || tokens.ProviderErrorDescription != "" {
			cause := deps.Errors.ExchangeRejected
			metric := deps.Metrics.ExchangeRejected
			if tokens.LinkExpired(deps.ExpiredLinkCodes) {
				cause = deps.Errors.LinkExpired
				metric = deps.Metrics.LinkExpired
			}
			return fail(metric, cause, func() map[string]string {
				return map[string]string{
					"provider_error":      tokens.ProviderError,
					"provider_error_code": tokens.ProviderErrorCode,
					"provider_error_desc": tokens.ProviderErrorDescription,
				}
			})
		}
		return fail(deps.Metrics.MissingToken, deps.Errors.MissingToken, nil)
	}

	if tokens.HasPair() {
		if err := deps.CheckTokenShape(tokens.AccessToken); err != nil {
			return fail(deps.Metrics.MalformedToken, deps.Errors.MalformedToken, func() map[string]string {
				return map[string]string{
					"reason": err.Error(),
				}
			})
		}
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, deps.ExchangeTimeout)
	start := deps.Now()
	var user ConfirmationUser
	if tokens.HasPair() {
		user, err = deps.EstablishSession(exchangeCtx, tokens.AccessToken, tokens.RefreshToken)
	} else {
		kind := deps.GenericKind
		if tokens.Type == deps.SignupKind {
			kind = deps.SignupKind
		}
		user, err = deps.VerifyOneTimeToken(exchangeCtx, tokens.QueryToken, kind)
	}
	timedOut := errors.Is(exchangeCtx.Err(), context.DeadlineExceeded)
	cancel()
	deps.ObserveLatency(deps.Metrics.ExchangeLatency, deps.Now().Sub(start))

	if err != nil {
		if timedOut {
			return fail(deps.Metrics.ExchangeTimeout, deps.Errors.ExchangeTimeout, nil)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ConfirmationResult{}, ctxErr
		}
		mapped := deps.ClassifyExchangeError(err)
		metric := deps.Metrics.ExchangeRejected
		switch {
		case errors.Is(mapped, deps.Errors.ExchangeTimeout):
			metric = deps.Metrics.ExchangeTimeout
		case errors.Is(mapped, deps.Errors.LinkExpired):
			metric = deps.Metrics.LinkExpired
		}
		return fail(metric, mapped, nil)
	}

	result := ConfirmationResult{
		UserID: user.ID,
		Email:  user.Email,
	}

	if tokens.HasPair() {
		if user.ID != "" && !user.EmailConfirmed {
			runBestEffort(ctx, deps, "mark_email_confirmed", func(ctx context.Context) error {
				return deps.MarkEmailConfirmed(ctx, user.ID)
			})
		}

		recordID, found, err := deps.FindRecordByEmail(ctx, user.Email)
		if err != nil {
			return fail(deps.Metrics.RecordLookup, fmt.Errorf("%w: %v", deps.Errors.RecordStoreUnavailable, err), nil)
		}
		if !found {
			return fail(deps.Metrics.AccountNotFound, deps.Errors.AccountNotFound, func() map[string]string {
				return map[string]string{
					"user_id": user.ID,
				}
			})
		}
		result.RecordID = recordID
		runBestEffort(ctx, deps, "touch_updated_at", func(ctx context.Context) error {
			return deps.TouchRecord(ctx, recordID)
		})
	} else if user.Email != "" {
		runBestEffort(ctx, deps, "touch_updated_at", func(ctx context.Context) error {
			recordID, found, err := deps.FindRecordByEmail(ctx, user.Email)
			if err != nil || !found {
				return err
			}
			result.RecordID = recordID
			return deps.TouchRecord(ctx, recordID)
		})
	}

	result.CleanURL = StripConfirmationTokens(currentURL)
	if err := deps.ReplaceURL(result.CleanURL); err != nil {
		deps.LogBestEffort(ctx, "replace_url", err)
	}
	if err := deps.ResetAttempts(ctx); err != nil {
		deps.LogBestEffort(ctx, "reset_attempts", err)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, deps.Events.Confirm, true, user.ID, nil, func() map[string]string {
		return map[string]string{
			"record_id": result.RecordID,
		}
	})

	result.DeepLink = deps.DeepLink
	result.RedirectAfter = deps.RedirectDelay
	if err := deps.ScheduleRedirect(deps.DeepLink, deps.RedirectDelay); err != nil {
		deps.LogBestEffort(ctx, "deep_link", err)
	} else {
		result.RedirectScheduled = true
	}

	return result, nil
}

// runBestEffort runs task and reports, but never propagates, its failure.
func runBestEffort(ctx context.Context, deps ConfirmationDeps, name string, task func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			deps.MetricInc(deps.Metrics.BestEffortFailure)
			deps.LogBestEffort(ctx, name, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := task(ctx); err != nil {
		deps.MetricInc(deps.Metrics.BestEffortFailure)
		deps.LogBestEffort(ctx, name, err)
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	return containsString(allowed, origin)
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func normalizeConfirmationDeps(deps *ConfirmationDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ExchangeTimeout <= 0 {
		deps.ExchangeTimeout = 30 * time.Second
	}
	if deps.SignupKind == "" {
		deps.SignupKind = "signup"
	}
	if deps.GenericKind == "" {
		deps.GenericKind = "email"
	}
	if deps.CheckTokenShape == nil {
		deps.CheckTokenShape = func(string) error { return nil }
	}
	if deps.MarkEmailConfirmed == nil {
		deps.MarkEmailConfirmed = func(context.Context, string) error { return nil }
	}
	if deps.TouchRecord == nil {
		deps.TouchRecord = func(context.Context, string) error { return nil }
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.LogBestEffort == nil {
		deps.LogBestEffort = func(context.Context, string, error) {}
	}
	if deps.MapLimiterError == nil {
		deps.MapLimiterError = func(error) error { return nil }
	}
	if deps.ClassifyExchangeError == nil {
		deps.ClassifyExchangeError = func(error) error { return deps.Errors.ExchangeRejected }
	}
}
