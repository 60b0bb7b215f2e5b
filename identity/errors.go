package identity

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/medconfirm"
	"github.com/goccy/go-json"
)

// errorPayload covers both the current and the legacy provider error shapes.
type errorPayload struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p errorPayload) code() string {
	if p.ErrorCode != "" {
		return p.ErrorCode
	}
	if s, ok := p.Code.(string); ok {
		return s
	}
	return p.Error
}

func (p errorPayload) message() string {
	for _, m := range []string{p.Msg, p.Message, p.ErrorDescription, p.Error} {
		if m != "" {
			return m
		}
	}
	return ""
}

var expiredCodes = map[string]struct{}{
	"otp_expired":        {},
	"session_expired":    {},
	"flow_state_expired": {},
}

var invalidCodes = map[string]struct{}{
	"bad_jwt":                    {},
	"invalid_grant":              {},
	"invalid_credentials":        {},
	"refresh_token_not_found":    {},
	"refresh_token_already_used": {},
	"session_not_found":          {},
	"user_not_found":             {},
	"flow_state_not_found":       {},
	"validation_failed":          {},
}

// classify maps a non-2xx provider answer onto the engine's error kinds.
func classify(resp *response) error {
	var payload errorPayload
	// A non-JSON body leaves payload empty; classification then falls back to
	// the status code.
	_ = json.Unmarshal(resp.body, &payload)

	code := payload.code()
	msg := payload.message()
	detail := fmt.Sprintf("status %d", resp.status)
	if code != "" {
		detail += " " + code
	}
	if msg != "" {
		detail += ": " + msg
	}

	if _, ok := expiredCodes[code]; ok {
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenExpired, detail)
	}
	if _, ok := invalidCodes[code]; ok {
		if strings.Contains(strings.ToLower(msg), "expired") {
			return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenExpired, detail)
		}
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenInvalid, detail)
	}

	if resp.status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityUnavailable, detail)
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "expired"):
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenExpired, detail)
	case strings.Contains(lower, "invalid"):
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenInvalid, detail)
	case resp.status == http.StatusUnauthorized, resp.status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", medconfirm.ErrIdentityTokenInvalid, detail)
	default:
		return fmt.Errorf("identity provider rejected request: %s", detail)
	}
}
