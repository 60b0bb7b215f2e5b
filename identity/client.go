package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

const maxResponseBytes = 1 << 20

// Config configures the provider client.
type Config struct {
	// BaseURL is the project URL, e.g. https://abc.supabase.co.
	BaseURL string
	// AnonKey is sent as the apikey header on every call.
	AnonKey string
	// ServiceRoleKey authorizes admin calls. Without it MarkEmailConfirmed
	// fails with ErrIdentityUnavailable.
	ServiceRoleKey string

	// HTTPTimeout bounds one provider call through its request context. Keep
	// it above the engine's exchange timeout so the engine's deadline fires
	// first.
	HTTPTimeout time.Duration

	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerMinRequests uint32
	BreakerFailRatio   float64
}

// DefaultConfig returns the breaker and timeout defaults.
func DefaultConfig() Config {
	return Config{
		HTTPTimeout:        45 * time.Second,
		BreakerMaxRequests: 3,
		BreakerInterval:    time.Minute,
		BreakerTimeout:     30 * time.Second,
		BreakerMinRequests: 10,
		BreakerFailRatio:   0.6,
	}
}

// Client talks to the provider's /auth/v1 endpoints.
type Client struct {
	base        *url.URL
	anonKey     string
	serviceKey  string
	httpTimeout time.Duration
	httpClient  *http.Client
	cb         *gobreaker.CircuitBreaker[*response]
	logger     zerolog.Logger
}

var _ medconfirm.IdentityService = (*Client)(nil)

type response struct {
	status int
	body   []byte
}

type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("identity provider returned status %d", e.status)
}

// New validates cfg and returns a client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("identity BaseURL required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("identity BaseURL invalid: %q", cfg.BaseURL)
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("identity AnonKey required")
	}

	defaults := DefaultConfig()
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = defaults.BreakerMaxRequests
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = defaults.BreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = defaults.BreakerMinRequests
	}
	if cfg.BreakerFailRatio <= 0 || cfg.BreakerFailRatio > 1 {
		cfg.BreakerFailRatio = defaults.BreakerFailRatio
	}

	logger = logger.With().Str("component", "identity").Logger()
	c := &Client{
		base:        base,
		anonKey:     cfg.AnonKey,
		serviceKey:  cfg.ServiceRoleKey,
		httpTimeout: cfg.HTTPTimeout,
		httpClient:  &http.Client{},
		logger:      logger,
	}
	c.cb = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "identity-provider",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellations say nothing about provider health.
			return err == nil || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return c, nil
}

// BreakerState reports the circuit breaker state, for health checks.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

type userPayload struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

func (u userPayload) toIdentityUser() medconfirm.IdentityUser {
	return medconfirm.IdentityUser{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != nil && !u.EmailConfirmedAt.IsZero(),
	}
}

type sessionPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *userPayload `json:"user"`
}

// EstablishSession validates accessToken against the provider. When the
// provider rejects it and a refresh token is available, the session is
// refreshed once.
func (c *Client) EstablishSession(ctx context.Context, accessToken, refreshToken string) (medconfirm.IdentityUser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, nil)
	if err != nil {
		return medconfirm.IdentityUser{}, err
	}
	if resp.status == http.StatusOK {
		var user userPayload
		if err := json.Unmarshal(resp.body, &user); err != nil {
			return medconfirm.IdentityUser{}, fmt.Errorf("%w: decode user: %v", medconfirm.ErrIdentityUnavailable, err)
		}
		return user.toIdentityUser(), nil
	}

	userErr := classify(resp)
	if refreshToken == "" || (resp.status != http.StatusUnauthorized && resp.status != http.StatusForbidden) {
		return medconfirm.IdentityUser{}, userErr
	}

	c.logger.Debug().Int("status", resp.status).Msg("access token rejected; refreshing session")
	query := url.Values{"grant_type": {"refresh_token"}}
	resp, err = c.do(ctx, http.MethodPost, "/auth/v1/token", query, "", map[string]string{
		"refresh_token": refreshToken,
	})
	if err != nil {
		return medconfirm.IdentityUser{}, err
	}
	return decodeSession(resp)
}

// VerifyOneTimeToken verifies a token_hash style link token.
func (c *Client) VerifyOneTimeToken(ctx context.Context, token string, kind medconfirm.OTPKind) (medconfirm.IdentityUser, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/verify", nil, "", map[string]string{
		"type":       string(kind),
		"token_hash": token,
	})
	if err != nil {
		return medconfirm.IdentityUser{}, err
	}
	return decodeSession(resp)
}

// MarkEmailConfirmed sets the user's email as confirmed through the admin API.
func (c *Client) MarkEmailConfirmed(ctx context.Context, userID string) error {
	if c.serviceKey == "" {
		return fmt.Errorf("%w: service role key not configured", medconfirm.ErrIdentityUnavailable)
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", medconfirm.ErrIdentityTokenInvalid)
	}
	resp, err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+url.PathEscape(userID), nil, c.serviceKey, map[string]bool{
		"email_confirm": true,
	})
	if err != nil {
		return err
	}
	if resp.status >= 300 {
		return classify(resp)
	}
	return nil
}

func decodeSession(resp *response) (medconfirm.IdentityUser, error) {
	if resp.status >= 300 {
		return medconfirm.IdentityUser{}, classify(resp)
	}
	var session sessionPayload
	if err := json.Unmarshal(resp.body, &session); err != nil {
		return medconfirm.IdentityUser{}, fmt.Errorf("%w: decode session: %v", medconfirm.ErrIdentityUnavailable, err)
	}
	if session.User == nil || session.User.ID == "" {
		return medconfirm.IdentityUser{}, fmt.Errorf("%w: session has no user", medconfirm.ErrIdentityTokenInvalid)
	}
	return session.User.toIdentityUser(), nil
}

// errCallerDone marks calls that ended because the caller's context did.
var errCallerDone = errors.New("caller context done")

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, payload any) (*response, error) {
	resp, err := c.cb.Execute(func() (*response, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.httpTimeout)
		defer cancel()

		resp, err := c.send(callCtx, method, path, query, bearer, payload)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", errCallerDone, err)
		}
		return resp, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", medconfirm.ErrIdentityUnavailable, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", medconfirm.ErrIdentityTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", medconfirm.ErrIdentityUnavailable, err)
	}
	return resp, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, bearer string, payload any) (*response, error) {
	endpoint := *c.base
	endpoint.Path = c.base.Path + path
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", httpResp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("identity call")

	resp := &response{status: httpResp.StatusCode, body: data}
	if httpResp.StatusCode >= 500 {
		return resp, &serverError{status: httpResp.StatusCode}
	}
	return resp, nil
}
