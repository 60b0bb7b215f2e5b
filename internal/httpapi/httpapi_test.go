package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/medconfirm"
	"github.com/MrEthical07/medconfirm/internal/models"
	"github.com/MrEthical07/medconfirm/internal/rate"
	"github.com/MrEthical07/medconfirm/internal/repositories"
	"github.com/MrEthical07/medconfirm/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	testOrigin  = "https://admin.medconfirm.app"
	testPageURL = "https://admin.medconfirm.app/confirme"
	testSecret  = "0123456789abcdef0123456789abcdef"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubIdentity struct {
	user medconfirm.IdentityUser
	err  error
}

func (s *stubIdentity) EstablishSession(context.Context, string, string) (medconfirm.IdentityUser, error) {
	return s.user, s.err
}

func (s *stubIdentity) VerifyOneTimeToken(context.Context, string, medconfirm.OTPKind) (medconfirm.IdentityUser, error) {
	return s.user, s.err
}

func (s *stubIdentity) MarkEmailConfirmed(context.Context, string) error { return nil }

type stubRecords struct{}

func (stubRecords) FindByEmail(_ context.Context, email string) (*medconfirm.DoctorRecord, error) {
	if email == "dr.house@example.com" {
		return &medconfirm.DoctorRecord{ID: "doc-1", Email: email}, nil
	}
	return nil, nil
}

func (stubRecords) TouchUpdatedAt(context.Context, string) error { return nil }

type fakeAdmins struct {
	mu      sync.Mutex
	byEmail map[string]models.Admin
	deleted []string
}

func newFakeAdmins(admins ...models.Admin) *fakeAdmins {
	f := &fakeAdmins{byEmail: map[string]models.Admin{}}
	for _, a := range admins {
		f.byEmail[a.Email] = a
	}
	return f
}

func (f *fakeAdmins) Resolve(_ context.Context, email string) (*models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAdmins) List(context.Context) ([]models.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Admin, 0, len(f.byEmail))
	for _, a := range f.byEmail {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAdmins) Create(_ context.Context, _ models.Admin, req models.CreateAdminRequest) (*models.Admin, error) {
	a := models.Admin{ID: "b9a3c1de-0000-4000-8000-000000000009", Email: req.Email, Role: models.AdminRoleAdmin}
	return &a, nil
}

func (f *fakeAdmins) Delete(_ context.Context, actor models.Admin, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAdmins) UpdateProfile(_ context.Context, actor models.Admin, req models.UpdateProfileRequest) (*models.Admin, error) {
	actor.FullName = req.FullName
	return &actor, nil
}

// stubDoctors implements only the methods a test sets.
type stubDoctors struct {
	DoctorAPI
	get func(ctx context.Context, id string) (*models.Doctor, error)
}

func (s stubDoctors) Get(ctx context.Context, id string) (*models.Doctor, error) {
	return s.get(ctx, id)
}

type stubCatalog struct{ CatalogAPI }

type stubDashboard struct {
	stats models.DashboardStats
	err   error
}

func (s stubDashboard) Stats(context.Context) (models.DashboardStats, error) {
	return s.stats, s.err
}

const (
	adminID      = "5f0c1f5e-1111-4000-8000-000000000001"
	superAdminID = "5f0c1f5e-2222-4000-8000-000000000002"
)

type testServer struct {
	router *gin.Engine
	admins *fakeAdmins
}

type serverOption func(d *Deps, client *redis.Client)

func newTestServer(t *testing.T, identity *stubIdentity, opts ...serverOption) *testServer {
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

	engine, err := medconfirm.New().
		WithRedis(client).
		WithIdentityService(identity).
		WithRecordStore(stubRecords{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	verifier, err := jwt.NewVerifier(jwt.Config{Secret: []byte(testSecret), Audience: "authenticated"})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	admins := newFakeAdmins(
		models.Admin{ID: adminID, Email: "admin@medconfirm.app", Role: models.AdminRoleAdmin},
		models.Admin{ID: superAdminID, Email: "root@medconfirm.app", Role: models.AdminRoleSuperAdmin},
	)

	deps := Deps{
		Engine:         engine,
		Verifier:       verifier,
		Admins:         admins,
		Doctors:        stubDoctors{},
		Catalog:        stubCatalog{},
		Dashboard:      stubDashboard{stats: models.DashboardStats{DoctorsTotal: 7}},
		Logger:         zerolog.Nop(),
		AllowedOrigins: engine.Config().Confirmation.AllowedOrigins,
		Throttle:       rate.New(client, rate.Config{Enabled: true, MaxRequests: 30, Window: time.Minute}),
	}
	for _, opt := range opts {
		opt(&deps, client)
	}

	router, err := NewRouter(deps)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return &testServer{router: router, admins: admins}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func testAccessToken() string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"sub":"user-1","email":"dr.house@example.com","pad":"` + strings.Repeat("x", 110) + `"}`))
	signature := enc.EncodeToString([]byte(strings.Repeat("s", 32)))
	return header + "." + payload + "." + signature
}

func runRequestFor(t *testing.T, pageID, rawURL, origin string) *http.Request {
	t.Helper()
	body, err := json.Marshal(map[string]string{"page_id": pageID, "url": rawURL})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/confirme/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func decodeRun(t *testing.T, w *httptest.ResponseRecorder) runResponse {
	t.Helper()
	var resp runResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func signAdminToken(t *testing.T, email string) string {
	t.Helper()
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, jwt.ProviderClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "user-" + email,
			Audience:  gojwt.ClaimStrings{"authenticated"},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func adminRequest(t *testing.T, method, path, email string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("Authorization", "Bearer "+signAdminToken(t, email))
	}
	return req
}

func TestConfirmationPageIssuesDeviceCookie(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/confirme", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Email confirmation") {
		t.Fatalf("unexpected page body")
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("page must not be cached")
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == deviceCookie && c.Value != "" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatal("expected device cookie")
	}
}

func TestConfirmationPageOffersRetryAndGuidance(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/confirme", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`id="retry"`,
		"window.location.reload()",
		`id="error-help" hidden`,
		"complete link from your email",
		"Request a new confirmation email",
		"contact support",
		`result.status === "error"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page is missing %q", want)
		}
	}
}

func TestRunConfirmationSuccess(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{user: medconfirm.IdentityUser{ID: "user-1", Email: "dr.house@example.com"}})

	entry := testPageURL + "#access_token=" + testAccessToken() + "&refresh_token=r1&type=signup"
	w := srv.do(runRequestFor(t, "page-1", entry, testOrigin))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeRun(t, w)
	if resp.Status != medconfirm.StatusSuccess || resp.Code != medconfirm.CodeConfirmed {
		t.Fatalf("unexpected outcome %+v", resp.Outcome)
	}
	if resp.Navigation.ReplaceURL != testPageURL {
		t.Fatalf("expected clean URL %q, got %q", testPageURL, resp.Navigation.ReplaceURL)
	}
	if resp.Navigation.Redirect == nil || resp.Navigation.Redirect.Target != "app-scheme://auth/confirmed" || resp.Navigation.Redirect.AfterMS != 3000 {
		t.Fatalf("unexpected redirect %+v", resp.Navigation.Redirect)
	}
	if resp.RedirectAfterMS != 3000 {
		t.Fatalf("expected redirect_after_ms 3000, got %d", resp.RedirectAfterMS)
	}
	if strings.Contains(w.Body.String(), testAccessToken()) {
		t.Fatal("response must not echo the access token")
	}
}

func TestRunConfirmationStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		identity *stubIdentity
		url      string
		origin   string
		status   int
		code     string
	}{
		{
			name:   "untrusted origin",
			url:    testPageURL + "#access_token=" + testAccessToken() + "&refresh_token=r",
			origin: "https://evil.example",
			status: http.StatusForbidden,
			code:   medconfirm.CodeUntrustedOrigin,
		},
		{
			name:   "missing token",
			url:    testPageURL,
			origin: testOrigin,
			status: http.StatusBadRequest,
			code:   medconfirm.CodeMissingToken,
		},
		{
			name:   "malformed token",
			url:    testPageURL + "#access_token=short&refresh_token=r",
			origin: testOrigin,
			status: http.StatusBadRequest,
			code:   medconfirm.CodeMalformedToken,
		},
		{
			name:     "expired link",
			identity: &stubIdentity{err: medconfirm.ErrIdentityTokenExpired},
			url:      testPageURL + "?token=pkce_abc&type=signup",
			origin:   testOrigin,
			status:   http.StatusUnauthorized,
			code:     medconfirm.CodeLinkExpired,
		},
		{
			name:     "provider down",
			identity: &stubIdentity{err: medconfirm.ErrIdentityUnavailable},
			url:      testPageURL + "?token=pkce_abc&type=signup",
			origin:   testOrigin,
			status:   http.StatusBadGateway,
			code:     medconfirm.CodeExchangeFailed,
		},
		{
			name:     "unknown doctor",
			identity: &stubIdentity{user: medconfirm.IdentityUser{ID: "u", Email: "nobody@example.com"}},
			url:      testPageURL + "#access_token=" + testAccessToken() + "&refresh_token=r",
			origin:   testOrigin,
			status:   http.StatusNotFound,
			code:     medconfirm.CodeAccountNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			identity := tc.identity
			if identity == nil {
				identity = &stubIdentity{}
			}
			srv := newTestServer(t, identity)

			w := srv.do(runRequestFor(t, "page-"+tc.code, tc.url, tc.origin))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			resp := decodeRun(t, w)
			if resp.Status != medconfirm.StatusError || resp.Code != tc.code {
				t.Fatalf("unexpected outcome %+v", resp.Outcome)
			}
			if resp.Navigation.ReplaceURL != "" || resp.Navigation.Redirect != nil {
				t.Fatalf("error outcomes must not navigate: %+v", resp.Navigation)
			}
		})
	}
}

func TestRunConfirmationOriginFallsBackToBody(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	body := `{"page_id":"page-b","url":"` + testPageURL + `","origin":"https://evil.example"}`
	req := httptest.NewRequest(http.MethodPost, "/confirme/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := srv.do(req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected body origin to be checked, got %d", w.Code)
	}
}

func TestRunConfirmationReplayedPageIsIgnored(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	first := srv.do(runRequestFor(t, "page-r", testPageURL, testOrigin))
	if first.Code != http.StatusBadRequest {
		t.Fatalf("expected first run to fail on the missing token, got %d", first.Code)
	}

	second := srv.do(runRequestFor(t, "page-r", testPageURL, testOrigin))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for replay, got %d", second.Code)
	}
	if resp := decodeRun(t, second); resp.Status != medconfirm.StatusLoading {
		t.Fatalf("replay must report loading, got %+v", resp.Outcome)
	}
}

func TestRunConfirmationRequiresPageID(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	w := srv.do(runRequestFor(t, "", testPageURL, testOrigin))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRunConfirmationThrottledPerIP(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{}, func(d *Deps, client *redis.Client) {
		d.Throttle = rate.New(client, rate.Config{Enabled: true, MaxRequests: 1, Window: time.Minute})
	})

	if w := srv.do(runRequestFor(t, "p-1", testPageURL, testOrigin)); w.Code == http.StatusTooManyRequests {
		t.Fatal("first request must pass")
	}
	w := srv.do(runRequestFor(t, "p-2", testPageURL, testOrigin))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("expected remaining header 0, got %q", w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestCORSOnAdminAPI(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/doctors", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := srv.do(req)
	if w.Header().Get("Access-Control-Allow-Origin") != testOrigin {
		t.Fatalf("expected allowed origin header, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = adminRequest(t, http.MethodGet, "/api/v1/profile", "admin@medconfirm.app", nil)
	req.Header.Set("Origin", "https://evil.example")
	if w := srv.do(req); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for disallowed origin, got %d", w.Code)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := srv.do(req)
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("expected request id echoed, got %q", w.Header().Get(requestIDHeader))
	}

	w = srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{}, func(d *Deps, _ *redis.Client) {
		d.Health = func(context.Context) error { return errors.New("redis down") }
	})

	w := srv.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "missing header",
			req:    func() *http.Request { return adminRequest(t, http.MethodGet, "/api/v1/profile", "", nil) },
			status: http.StatusUnauthorized,
		},
		{
			name: "garbage token",
			req: func() *http.Request {
				r := adminRequest(t, http.MethodGet, "/api/v1/profile", "", nil)
				r.Header.Set("Authorization", "Bearer not-a-jwt")
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "not an admin",
			req:    func() *http.Request { return adminRequest(t, http.MethodGet, "/api/v1/profile", "doctor@example.com", nil) },
			status: http.StatusForbidden,
		},
		{
			name:   "admin",
			req:    func() *http.Request { return adminRequest(t, http.MethodGet, "/api/v1/profile", "admin@medconfirm.app", nil) },
			status: http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if w := srv.do(tc.req()); w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}
}

func TestSuperAdminRoutes(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})
	body := map[string]string{"email": "new@medconfirm.app"}

	if w := srv.do(adminRequest(t, http.MethodPost, "/api/v1/admins", "admin@medconfirm.app", body)); w.Code != http.StatusForbidden {
		t.Fatalf("admin must not create admins, got %d", w.Code)
	}
	if w := srv.do(adminRequest(t, http.MethodPost, "/api/v1/admins", "root@medconfirm.app", body)); w.Code != http.StatusCreated {
		t.Fatalf("super admin create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := srv.do(adminRequest(t, http.MethodDelete, "/api/v1/admins/"+adminID, "root@medconfirm.app", nil)); w.Code != http.StatusNoContent {
		t.Fatalf("super admin delete: expected 204, got %d", w.Code)
	}
	if len(srv.admins.deleted) != 1 || srv.admins.deleted[0] != adminID {
		t.Fatalf("unexpected deletions %v", srv.admins.deleted)
	}
}

func TestProfileUpdate(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	w := srv.do(adminRequest(t, http.MethodPut, "/api/v1/profile", "admin@medconfirm.app", map[string]string{"full_name": "Lisa Cuddy"}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var admin models.Admin
	if err := json.Unmarshal(w.Body.Bytes(), &admin); err != nil {
		t.Fatal(err)
	}
	if admin.FullName != "Lisa Cuddy" || admin.ID != adminID {
		t.Fatalf("unexpected admin %+v", admin)
	}

	w = srv.do(adminRequest(t, http.MethodPut, "/api/v1/profile", "admin@medconfirm.app", map[string]string{"full_name": ""}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", w.Code)
	}
}

func TestDoctorLookupErrors(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{}, func(d *Deps, _ *redis.Client) {
		d.Doctors = stubDoctors{get: func(context.Context, string) (*models.Doctor, error) {
			return nil, repositories.ErrNotFound
		}}
	})

	if w := srv.do(adminRequest(t, http.MethodGet, "/api/v1/doctors/not-a-uuid", "admin@medconfirm.app", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", w.Code)
	}
	if w := srv.do(adminRequest(t, http.MethodGet, "/api/v1/doctors/"+adminID, "admin@medconfirm.app", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDashboardStats(t *testing.T) {
	srv := newTestServer(t, &stubIdentity{})

	w := srv.do(adminRequest(t, http.MethodGet, "/api/v1/dashboard/stats", "admin@medconfirm.app", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats models.DashboardStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.DoctorsTotal != 7 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
