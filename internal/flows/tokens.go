package flows

import (
	"net/url"
	"strings"
)

// ConfirmationTokens is what a confirmation link carries. The fragment pair
// takes precedence over the query token.
type ConfirmationTokens struct {
	AccessToken  string
	RefreshToken string
	QueryToken   string
	Type         string

	// Provider error redirect, e.g. #error=access_denied&error_code=otp_expired.
	ProviderError            string
	ProviderErrorCode        string
	ProviderErrorDescription string
}

// LinkExpired reports whether the provider error redirect describes an
// expired or invalid link, by code or by description.
func (t ConfirmationTokens) LinkExpired(expiredCodes []string) bool {
	if t.ProviderErrorCode != "" && containsString(expiredCodes, t.ProviderErrorCode) {
		return true
	}
	description := strings.ToLower(t.ProviderErrorDescription)
	return strings.Contains(description, "expired") || strings.Contains(description, "invalid")
}

// HasPair reports whether the fragment carried both session tokens.
func (t ConfirmationTokens) HasPair() bool {
	return t.AccessToken != "" && t.RefreshToken != ""
}

// HasAny reports whether any exchangeable token was found.
func (t ConfirmationTokens) HasAny() bool {
	return t.HasPair() || t.QueryToken != ""
}

var strippedQueryParams = []string{"token", "type"}

// ExtractConfirmationTokens reads tokens from rawURL. An unparsable URL
// yields an empty set.
func ExtractConfirmationTokens(rawURL string) ConfirmationTokens {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ConfirmationTokens{}
	}

	var tokens ConfirmationTokens
	if fragment := u.EscapedFragment(); fragment != "" {
		values, err := url.ParseQuery(fragment)
		if err == nil {
			tokens.AccessToken = strings.TrimSpace(values.Get("access_token"))
			tokens.RefreshToken = strings.TrimSpace(values.Get("refresh_token"))
			tokens.Type = values.Get("type")
			tokens.ProviderError = values.Get("error")
			tokens.ProviderErrorCode = values.Get("error_code")
			tokens.ProviderErrorDescription = values.Get("error_description")
		}
	}
	if tokens.HasPair() {
		return tokens
	}

	query := u.Query()
	if token := strings.TrimSpace(query.Get("token")); token != "" {
		tokens.AccessToken = ""
		tokens.RefreshToken = ""
		tokens.QueryToken = token
		tokens.Type = query.Get("type")
	}
	return tokens
}

// StripConfirmationTokens removes the fragment and the token query
// parameters from rawURL. Other query parameters are kept.
func StripConfirmationTokens(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	u.Fragment = ""
	u.RawFragment = ""
	query := u.Query()
	for _, name := range strippedQueryParams {
		query.Del(name)
	}
	u.RawQuery = query.Encode()
	return u.String()
}
