package medconfirm

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventConfirmation            = "email_confirmation"
	auditEventConfirmationRateLimited = "email_confirmation_rate_limited"
	auditEventConfirmationDuplicate   = "email_confirmation_duplicate"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrUntrustedOrigin  AuditErrorCode = "untrusted_origin"
	auditErrRateLimited      AuditErrorCode = "rate_limited"
	auditErrMissingToken     AuditErrorCode = "missing_token"
	auditErrMalformedToken   AuditErrorCode = "malformed_token"
	auditErrExchangeTimeout  AuditErrorCode = "exchange_timeout"
	auditErrLinkExpired      AuditErrorCode = "link_expired"
	auditErrExchangeRejected AuditErrorCode = "exchange_rejected"
	auditErrAccountNotFound  AuditErrorCode = "account_not_found"
	auditErrFlowInProgress   AuditErrorCode = "flow_in_progress"
	auditErrUnavailable      AuditErrorCode = "backend_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	deviceID string,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		DeviceID:  deviceID,
		RequestID: RequestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUntrustedOrigin):
		return auditErrUntrustedOrigin
	case errors.Is(err, ErrConfirmationRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMissingToken):
		return auditErrMissingToken
	case errors.Is(err, ErrMalformedToken):
		return auditErrMalformedToken
	case errors.Is(err, ErrExchangeTimeout):
		return auditErrExchangeTimeout
	case errors.Is(err, ErrLinkExpired):
		return auditErrLinkExpired
	case errors.Is(err, ErrExchangeRejected):
		return auditErrExchangeRejected
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrFlowInProgress):
		return auditErrFlowInProgress
	case errors.Is(err, ErrRecordStoreUnavailable),
		errors.Is(err, ErrLatchUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
