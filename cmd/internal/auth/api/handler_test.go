package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"copydesk/cmd/identity"
	"copydesk/cmd/internal/accounts"
	"copydesk/cmd/internal/audit"
	"copydesk/cmd/internal/auth/session"
	"copydesk/cmd/internal/ratelimit"
	"copydesk/cmd/internal/securitystore"
	"copydesk/cmd/security/password"
	"copydesk/cmd/security/token"
)

const (
	testUser      = "desk-op"
	testPassword  = "desk-op-password"
	adminUser     = "desk-admin"
	adminPassword = "desk-admin-password"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	handler  *Handler
	users    *identity.MemoryStore
	accounts *accounts.MemoryStore
	cipher   *accounts.Cipher
	audit    *audit.MemorySink
	clock    *clock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pw := password.DefaultConfig()
	pw.Cost = 4
	users := identity.NewMemoryStore(pw)
	if _, err := users.CreateUser(ctx, identity.CreateUserInput{Username: testUser, Email: "op@example.com", Password: testPassword}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := users.CreateUser(ctx, identity.CreateUserInput{Username: adminUser, Password: adminPassword, Admin: true}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	sec := securitystore.NewMemoryStore()
	mgr, err := session.NewManager(session.DefaultConfig(), session.NewMemoryStore(users), codec, sec, nil, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	cipher, err := accounts.NewRandomCipher()
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	sink := audit.NewMemorySink()
	accts := accounts.NewMemoryStore()

	h, err := NewHandler(DefaultConfig(), Deps{
		Users:     users,
		Passwords: pw,
		Sessions:  mgr,
		Codec:     codec,
		Limiter:   ratelimit.New(sec, nil, nil),
		Audit:     audit.New(sink, nil, nil),
		Accounts:  accts,
		Cipher:    cipher,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	clk := &clock{t: time.Now().UTC()}
	h.WithClock(clk.Now)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(h.Legacy(mux))
	t.Cleanup(srv.Close)

	return &testEnv{
		t:        t,
		srv:      srv,
		handler:  h,
		users:    users,
		accounts: accts,
		cipher:   cipher,
		audit:    sink,
		clock:    clk,
	}
}

func (e *testEnv) client() *http.Client {
	e.t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		e.t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

// do sends a request and returns the response with its body already read.
func (e *testEnv) do(c *http.Client, method, path string, body any, hdr map[string]string) (*http.Response, []byte) {
	e.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp, out
}

func (e *testEnv) cookie(c *http.Client, path, name string) string {
	e.t.Helper()
	u, err := url.Parse(e.srv.URL + path)
	if err != nil {
		e.t.Fatalf("parse url: %v", err)
	}
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (e *testEnv) csrfHeader(c *http.Client) map[string]string {
	return map[string]string{"X-CSRF-Token": e.cookie(c, "/", "copydesk_csrf")}
}

func (e *testEnv) login(c *http.Client, username, pw string) {
	e.t.Helper()
	resp, body := e.do(c, http.MethodPost, "/api/v2/auth/login", loginRequest{Username: username, Password: pw}, nil)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("login status=%d body=%s", resp.StatusCode, body)
	}
}

func TestAuthFlow_LoginRefreshLogout(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	resp, body := env.do(c, http.MethodPost, "/api/v2/auth/login", loginRequest{Username: "Desk-Op", Password: testPassword}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d body=%s", resp.StatusCode, body)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control=%q", got)
	}
	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if lr.User.Username != testUser || lr.User.Email != "op@example.com" || !lr.User.IsActive || lr.User.IsAdmin {
		t.Fatalf("unexpected user: %+v", lr.User)
	}
	if !lr.SessionExpiresAt.After(time.Now()) {
		t.Fatalf("session_expires_at not in the future: %v", lr.SessionExpiresAt)
	}

	accessBefore := env.cookie(c, "/", "copydesk_access")
	refreshBefore := env.cookie(c, "/api/v2/auth/refresh", "copydesk_refresh")
	csrfBefore := env.cookie(c, "/", "copydesk_csrf")
	if accessBefore == "" || refreshBefore == "" || csrfBefore == "" {
		t.Fatalf("missing session cookies")
	}
	if env.cookie(c, "/api/v2/auth/me", "copydesk_refresh") == "" {
		t.Fatalf("refresh cookie should be sent under /api/v2/auth")
	}
	if env.cookie(c, "/api/v2/admin/accounts/1/password/reveal", "copydesk_refresh") != "" {
		t.Fatalf("refresh cookie must not leave /api/v2/auth")
	}

	if resp, _ := env.do(c, http.MethodGet, "/api/v2/auth/me", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("me status=%d", resp.StatusCode)
	}

	if resp, _ := env.do(c, http.MethodPost, "/api/v2/auth/refresh", nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("refresh without csrf header status=%d", resp.StatusCode)
	}

	resp, body = env.do(c, http.MethodPost, "/api/v2/auth/refresh", nil, env.csrfHeader(c))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("refresh status=%d body=%s", resp.StatusCode, body)
	}
	if env.cookie(c, "/api/v2/auth/refresh", "copydesk_refresh") == refreshBefore {
		t.Fatalf("refresh token not rotated")
	}
	if env.cookie(c, "/", "copydesk_csrf") == csrfBefore {
		t.Fatalf("csrf token not rotated")
	}

	resp, body = env.do(c, http.MethodPost, "/api/v2/auth/logout", nil, env.csrfHeader(c))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status=%d body=%s", resp.StatusCode, body)
	}
	if env.cookie(c, "/", "copydesk_access") != "" {
		t.Fatalf("access cookie not cleared")
	}

	if resp, _ := env.do(c, http.MethodGet, "/api/v2/auth/me", nil, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout status=%d", resp.StatusCode)
	}

	// The rotated-away access token belongs to the revoked session too.
	resp, _ = env.do(http.DefaultClient, http.MethodGet, "/api/v2/auth/me", nil, map[string]string{
		"Cookie": "copydesk_access=" + accessBefore,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me with pre-logout access token status=%d", resp.StatusCode)
	}

	if n := len(env.audit.ByAction(audit.ActionLogout)); n != 1 {
		t.Fatalf("logout audit events=%d", n)
	}
	logins := env.audit.ByAction(audit.ActionLogin)
	if len(logins) != 1 || !logins[0].Success || logins[0].UserID == nil {
		t.Fatalf("unexpected login audit: %+v", logins)
	}
}

func TestRefresh_ReplayedTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()
	env.login(c, testUser, testPassword)

	oldRefresh := env.cookie(c, "/api/v2/auth/refresh", "copydesk_refresh")
	oldCSRF := env.cookie(c, "/", "copydesk_csrf")

	if resp, _ := env.do(c, http.MethodPost, "/api/v2/auth/refresh", nil, env.csrfHeader(c)); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("refresh status=%d", resp.StatusCode)
	}

	resp, _ := env.do(http.DefaultClient, http.MethodPost, "/api/v2/auth/refresh", nil, map[string]string{
		"Cookie":       "copydesk_refresh=" + oldRefresh + "; copydesk_csrf=" + oldCSRF,
		"X-CSRF-Token": oldCSRF,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replay status=%d", resp.StatusCode)
	}

	ev := env.audit.ByAction(audit.ActionRefresh)
	if len(ev) != 1 || ev[0].Success || ev[0].Reason != "invalid_refresh" {
		t.Fatalf("unexpected refresh audit: %+v", ev)
	}
}

func TestRefresh_MissingCookiesUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(http.DefaultClient, http.MethodPost, "/api/v2/auth/refresh", nil, map[string]string{
		"Cookie":       "copydesk_csrf=abc",
		"X-CSRF-Token": "abc",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.users.CreateUser(context.Background(), identity.CreateUserInput{Username: "benched", Password: "benched-password"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.users.SetActive(u.ID, false)

	cases := []loginRequest{
		{Username: testUser, Password: "wrong-password"},
		{Username: "nobody", Password: testPassword},
		{Username: "benched", Password: "benched-password"},
	}
	var first []byte
	for i, tc := range cases {
		resp, body := env.do(env.client(), http.MethodPost, "/api/v2/auth/login", tc, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("case %d: status=%d", i, resp.StatusCode)
		}
		if first == nil {
			first = body
		} else if !bytes.Equal(first, body) {
			t.Fatalf("case %d: body differs: %s vs %s", i, body, first)
		}
	}

	if n := len(env.audit.ByAction(audit.ActionLogin)); n != len(cases) {
		t.Fatalf("login audit events=%d want %d", n, len(cases))
	}
}

func TestLogin_RateLimitedAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	c := env.client()

	for i := 0; i < 5; i++ {
		resp, _ := env.do(c, http.MethodPost, "/api/v2/auth/login", loginRequest{Username: testUser, Password: "wrong-password"}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status=%d", i+1, resp.StatusCode)
		}
	}

	// Correct credentials do not bypass the limit.
	resp, body := env.do(c, http.MethodPost, "/api/v2/auth/login", loginRequest{Username: testUser, Password: testPassword}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("6th attempt status=%d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
	var rl rateLimitResponse
	if err := json.Unmarshal(body, &rl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rl.Namespace != "login_ip" || rl.Limit != 5 || rl.WindowSeconds != 60 || rl.CurrentCount != 6 {
		t.Fatalf("unexpected 429 body: %+v", rl)
	}

	ev := env.audit.ByAction(audit.ActionLoginRateLimit)
	if len(ev) != 1 || ev[0].TargetID != testUser || ev[0].Reason != "rate_limit_exceeded" {
		t.Fatalf("unexpected rate limit audit: %+v", ev)
	}
}

func TestLogin_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"username":"a","password":"b","remember":true}`},
		{"missing password", `{"username":"a"}`},
		{"trailing data", `{"username":"a","password":"b"}{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(env.srv.URL+"/api/v2/auth/login", "application/json", bytes.NewBufferString(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status=%d", resp.StatusCode)
			}
		})
	}
}

func TestRoutes_WrongMethod(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(http.DefaultClient, http.MethodGet, "/api/v2/auth/login", nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestNewHandler_RequiresDeps(t *testing.T) {
	if _, err := NewHandler(DefaultConfig(), Deps{}); err == nil {
		t.Fatalf("expected error")
	}
	cfg := DefaultConfig()
	cfg.CSRFCookieName = cfg.AccessCookieName
	if _, err := NewHandler(cfg, Deps{}); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
