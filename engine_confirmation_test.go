package medconfirm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testOrigin   = "https://admin.medconfirm.app"
	testDeviceID = "device-1"
	testPageURL  = "https://admin.medconfirm.app/confirme"
)

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

type fakeIdentity struct {
	mu sync.Mutex

	user       IdentityUser
	sessionErr error
	verifyErr  error
	markErr    error

	sessionCalls int
	verifyCalls  int
	verifyKinds  []OTPKind
	marked       []string
}

func (f *fakeIdentity) EstablishSession(_ context.Context, _, _ string) (IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls++
	if f.sessionErr != nil {
		return IdentityUser{}, f.sessionErr
	}
	return f.user, nil
}

func (f *fakeIdentity) VerifyOneTimeToken(_ context.Context, _ string, kind OTPKind) (IdentityUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	f.verifyKinds = append(f.verifyKinds, kind)
	if f.verifyErr != nil {
		return IdentityUser{}, f.verifyErr
	}
	return f.user, nil
}

func (f *fakeIdentity) MarkEmailConfirmed(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, userID)
	return f.markErr
}

func (f *fakeIdentity) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionCalls + f.verifyCalls
}

type fakeRecords struct {
	mu      sync.Mutex
	byEmail map[string]DoctorRecord
	findErr error
	touched []string
}

func (f *fakeRecords) FindByEmail(_ context.Context, email string) (*DoctorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	record, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (f *fakeRecords) TouchUpdatedAt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type recordingNavigator struct {
	replaced    []string
	redirects   []string
	delays      []time.Duration
	redirectErr error
}

func (n *recordingNavigator) ReplaceURL(cleanURL string) error {
	n.replaced = append(n.replaced, cleanURL)
	return nil
}

func (n *recordingNavigator) ScheduleRedirect(target string, after time.Duration) error {
	n.redirects = append(n.redirects, target)
	n.delays = append(n.delays, after)
	return n.redirectErr
}

type confirmationFixture struct {
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	engine   *Engine
	identity *fakeIdentity
	records  *fakeRecords
	now      time.Time
}

func newConfirmationFixture(t *testing.T) *confirmationFixture {
	t.Helper()

	mr, rdb := newTestRedis(t)
	fx := &confirmationFixture{
		mr:  mr,
		rdb: rdb,
		identity: &fakeIdentity{
			user: IdentityUser{ID: "user-1", Email: "dr.house@example.com"},
		},
		records: &fakeRecords{
			byEmail: map[string]DoctorRecord{
				"dr.house@example.com": {ID: "doc-1", Email: "dr.house@example.com"},
			},
		},
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	engine, err := New().
		WithRedis(rdb).
		WithIdentityService(fx.identity).
		WithRecordStore(fx.records).
		WithClock(func() time.Time { return fx.now }).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	fx.engine = engine
	return fx
}

func (fx *confirmationFixture) attemptKey() string {
	return "mc:att:" + testDeviceID
}

func (fx *confirmationFixture) attemptCount(t *testing.T) int {
	t.Helper()
	raw, err := fx.rdb.HGet(context.Background(), fx.attemptKey(), "confirmation_attempts").Result()
	if errors.Is(err, redis.Nil) {
		return 0
	}
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("attempt count not numeric: %q", raw)
	}
	return n
}

func (fx *confirmationFixture) seedAttempts(t *testing.T, count int, last time.Time) {
	t.Helper()
	err := fx.rdb.HSet(context.Background(), fx.attemptKey(),
		"confirmation_attempts", count,
		"confirmation_last_attempt", last.UnixMilli(),
	).Err()
	if err != nil {
		t.Fatalf("HSet failed: %v", err)
	}
}

// testAccessToken returns a three-segment base64url token of roughly 300
// characters.
func testAccessToken() string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"sub":"user-1","email":"dr.house@example.com","pad":"` + strings.Repeat("x", 110) + `"}`))
	signature := enc.EncodeToString([]byte(strings.Repeat("s", 32)))
	return header + "." + payload + "." + signature
}

func fragmentURL(access string) string {
	return testPageURL + "#access_token=" + access + "&refresh_token=refresh-1&type=signup"
}

func TestConfirmationFragmentSuccess(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.seedAttempts(t, 2, fx.now.Add(-time.Minute))
	nav := &recordingNavigator{}

	flow := fx.engine.NewFlow(testDeviceID, WithNavigator(nav))
	outcome, err := flow.Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Status != StatusSuccess || outcome.Code != CodeConfirmed {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.DeepLink != "app-scheme://auth/confirmed" || outcome.RedirectAfter != 3*time.Second {
		t.Fatalf("unexpected redirect in outcome: %+v", outcome)
	}
	if len(nav.replaced) != 1 || nav.replaced[0] != testPageURL {
		t.Fatalf("expected URL stripped to %q, got %v", testPageURL, nav.replaced)
	}
	if len(nav.redirects) != 1 || nav.redirects[0] != outcome.DeepLink || nav.delays[0] != 3*time.Second {
		t.Fatalf("expected one deep-link redirect after 3s, got %v %v", nav.redirects, nav.delays)
	}
	if len(fx.identity.marked) != 1 || fx.identity.marked[0] != "user-1" {
		t.Fatalf("expected email to be marked confirmed, got %v", fx.identity.marked)
	}
	if len(fx.records.touched) != 1 || fx.records.touched[0] != "doc-1" {
		t.Fatalf("expected doctor record touched, got %v", fx.records.touched)
	}
	if n := fx.attemptCount(t); n != 0 {
		t.Fatalf("expected attempts reset, got %d", n)
	}
	if flow.Outcome() != outcome {
		t.Fatalf("expected Outcome() to match Run result")
	}
	if got := fx.engine.MetricsSnapshot().Counters[MetricConfirmationSuccess]; got != 1 {
		t.Fatalf("expected success counter 1, got %d", got)
	}
}

func TestConfirmationUntrustedOriginRecordsFailure(t *testing.T) {
	fx := newConfirmationFixture(t)

	flow := fx.engine.NewFlow(testDeviceID)
	outcome, err := flow.Run(context.Background(), fragmentURL(testAccessToken()), "https://evil.example")
	if !errors.Is(err, ErrUntrustedOrigin) {
		t.Fatalf("expected ErrUntrustedOrigin, got %v", err)
	}
	if outcome.Status != StatusError || outcome.Message != "Unauthorized request." {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if fx.identity.calls() != 0 {
		t.Fatal("identity service must not be called for an untrusted origin")
	}
	if n := fx.attemptCount(t); n != 1 {
		t.Fatalf("expected one recorded attempt, got %d", n)
	}
}

func TestConfirmationOriginMatchIsExact(t *testing.T) {
	for _, origin := range []string{"https://admin.medconfirm.app/", "HTTPS://admin.medconfirm.app", "https://admin.medconfirm.app.evil.example", ""} {
		t.Run(fmt.Sprintf("%q", origin), func(t *testing.T) {
			fx := newConfirmationFixture(t)
			_, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), origin)
			if !errors.Is(err, ErrUntrustedOrigin) {
				t.Fatalf("expected ErrUntrustedOrigin, got %v", err)
			}
		})
	}
}

func TestConfirmationRateLimitedDoesNotRecord(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.seedAttempts(t, 5, fx.now.Add(-10*time.Minute))

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrConfirmationRateLimited) {
		t.Fatalf("expected ErrConfirmationRateLimited, got %v", err)
	}
	if outcome.Code != CodeRateLimited {
		t.Fatalf("expected rate_limited code, got %q", outcome.Code)
	}
	if fx.identity.calls() != 0 {
		t.Fatal("identity service must not be called when rate limited")
	}
	if n := fx.attemptCount(t); n != 5 {
		t.Fatalf("expected count to stay at 5, got %d", n)
	}
}

func TestConfirmationWindowExpiryResetsCount(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.seedAttempts(t, 5, fx.now.Add(-2*time.Hour))

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if err != nil {
		t.Fatalf("expected stale attempts to be ignored, got %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
}

func TestConfirmationExpiredLink(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.identity.sessionErr = fmt.Errorf("%w: token is expired", ErrIdentityTokenExpired)

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
	if outcome.Code != CodeLinkExpired || !strings.Contains(outcome.Message, "expired or is invalid") {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if n := fx.attemptCount(t); n != 1 {
		t.Fatalf("expected one recorded attempt, got %d", n)
	}
}

func TestConfirmationGenericRejection(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.identity.sessionErr = fmt.Errorf("%w: status 503", ErrIdentityUnavailable)

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrExchangeRejected) {
		t.Fatalf("expected ErrExchangeRejected, got %v", err)
	}
	if outcome.Code != CodeExchangeFailed || outcome.Message != messageGeneric {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestConfirmationMalformedToken(t *testing.T) {
	fx := newConfirmationFixture(t)

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL("abc.def.ghi"), testOrigin)
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if outcome.Message != "Invalid token format." {
		t.Fatalf("unexpected message %q", outcome.Message)
	}
	if fx.identity.calls() != 0 {
		t.Fatal("identity service must not be called for a malformed token")
	}
}

func TestConfirmationMissingToken(t *testing.T) {
	fx := newConfirmationFixture(t)

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), testPageURL, testOrigin)
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if outcome.Code != CodeMissingToken {
		t.Fatalf("unexpected code %q", outcome.Code)
	}
	if n := fx.attemptCount(t); n != 1 {
		t.Fatalf("expected one recorded attempt, got %d", n)
	}
}

func TestConfirmationAccountNotFound(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.identity.user.Email = "unknown@example.com"

	outcome, err := fx.engine.NewFlow(testDeviceID).Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if outcome.Code != CodeAccountNotFound {
		t.Fatalf("unexpected code %q", outcome.Code)
	}
}

func TestConfirmationQueryTokenSignup(t *testing.T) {
	fx := newConfirmationFixture(t)
	nav := &recordingNavigator{}

	outcome, err := fx.engine.NewFlow(testDeviceID, WithNavigator(nav)).
		Run(context.Background(), testPageURL+"?token=pkce_abc&type=signup&lang=fr", testOrigin)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(fx.identity.verifyKinds) != 1 || fx.identity.verifyKinds[0] != OTPSignup {
		t.Fatalf("expected signup verification, got %v", fx.identity.verifyKinds)
	}
	if len(nav.replaced) != 1 || nav.replaced[0] != testPageURL+"?lang=fr" {
		t.Fatalf("unexpected cleaned URL %v", nav.replaced)
	}
	if len(fx.identity.marked) != 0 {
		t.Fatal("query-token flow must not mark the email confirmed")
	}
}

func TestConfirmationRedirectFailureStillSucceeds(t *testing.T) {
	fx := newConfirmationFixture(t)
	nav := &recordingNavigator{redirectErr: errors.New("no handler for app-scheme")}

	outcome, err := fx.engine.NewFlow(testDeviceID, WithNavigator(nav)).
		Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Status != StatusSuccess || outcome.DeepLink == "" {
		t.Fatalf("expected success with manual deep link, got %+v", outcome)
	}
}

func TestConfirmationSecondRunIsIgnored(t *testing.T) {
	fx := newConfirmationFixture(t)
	flow := fx.engine.NewFlow(testDeviceID)

	first, err := flow.Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	second, err := flow.Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrFlowInProgress) {
		t.Fatalf("expected ErrFlowInProgress, got %v", err)
	}
	if second.Status != StatusLoading {
		t.Fatalf("expected loading outcome for duplicate run, got %+v", second)
	}
	if flow.Outcome() != first {
		t.Fatal("duplicate run must not replace the terminal outcome")
	}
	if fx.identity.calls() != 1 {
		t.Fatalf("expected exactly one exchange, got %d", fx.identity.calls())
	}
}

func TestConfirmationPageLatchSharedAcrossFlows(t *testing.T) {
	fx := newConfirmationFixture(t)

	latchA, err := fx.engine.PageLatch("page-1")
	if err != nil {
		t.Fatalf("PageLatch failed: %v", err)
	}
	latchB, err := fx.engine.PageLatch("page-1")
	if err != nil {
		t.Fatalf("PageLatch failed: %v", err)
	}

	if _, err := fx.engine.NewFlow(testDeviceID, WithLatch(latchA)).
		Run(context.Background(), fragmentURL(testAccessToken()), testOrigin); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	_, err = fx.engine.NewFlow(testDeviceID, WithLatch(latchB)).
		Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrFlowInProgress) {
		t.Fatalf("expected ErrFlowInProgress for replayed page, got %v", err)
	}

	if _, err := fx.engine.PageLatch("  "); !errors.Is(err, ErrInvalidPageID) {
		t.Fatalf("expected ErrInvalidPageID, got %v", err)
	}
}

func TestConfirmationLatchUnavailable(t *testing.T) {
	fx := newConfirmationFixture(t)
	latch, err := fx.engine.PageLatch("page-2")
	if err != nil {
		t.Fatalf("PageLatch failed: %v", err)
	}
	fx.mr.Close()

	outcome, err := fx.engine.NewFlow(testDeviceID, WithLatch(latch)).
		Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if !errors.Is(err, ErrLatchUnavailable) {
		t.Fatalf("expected ErrLatchUnavailable, got %v", err)
	}
	if outcome.Code != CodeUnavailable {
		t.Fatalf("unexpected code %q", outcome.Code)
	}
}

func TestConfirmationAttemptStoreDownFailsOpen(t *testing.T) {
	fx := newConfirmationFixture(t)
	fx.mr.Close()

	outcome, err := fx.engine.NewFlow(testDeviceID).
		Run(context.Background(), fragmentURL(testAccessToken()), testOrigin)
	if err != nil {
		t.Fatalf("expected flow to continue without attempt store, got %v", err)
	}
	if outcome.Status != StatusSuccess {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	_, rdb := newTestRedis(t)

	tests := []struct {
		name    string
		builder *Builder
		wantErr string
	}{
		{
			name:    "identity",
			builder: New().WithRedis(rdb).WithRecordStore(&fakeRecords{}),
			wantErr: "identity service required",
		},
		{
			name:    "records",
			builder: New().WithRedis(rdb).WithIdentityService(&fakeIdentity{}),
			wantErr: "record store required",
		},
		{
			name:    "attempts",
			builder: New().WithIdentityService(&fakeIdentity{}).WithRecordStore(&fakeRecords{}),
			wantErr: "redis client or attempt store required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil || err.Error() != tc.wantErr {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithRedis(rdb).WithIdentityService(&fakeIdentity{}).WithRecordStore(&fakeRecords{})
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilEngineFlowNotReady(t *testing.T) {
	var engine *Engine
	outcome, err := engine.NewFlow(testDeviceID).Run(context.Background(), testPageURL, testOrigin)
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if outcome.Status != StatusError {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}
