package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"copydesk/cmd/internal/audit"
)

func (e *testEnv) seedAccount(number, secret string) int64 {
	e.t.Helper()
	enc, err := e.cipher.Encrypt(secret)
	if err != nil {
		e.t.Fatalf("encrypt: %v", err)
	}
	a, err := e.accounts.Create(context.Background(), number, enc)
	if err != nil {
		e.t.Fatalf("create account: %v", err)
	}
	return a.ID
}

func revealPath(id int64) string {
	return "/api/v2/admin/accounts/" + strconv.FormatInt(id, 10) + "/password/reveal"
}

func TestReveal_ThreePerWindowThenLimited(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAccount("880011", "broker-secret")

	c := env.client()
	env.login(c, adminUser, adminPassword)

	for i := 0; i < 3; i++ {
		resp, body := env.do(c, http.MethodPost, revealPath(id), revealRequest{AdminPassword: adminPassword}, env.csrfHeader(c))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("reveal %d: status=%d body=%s", i+1, resp.StatusCode, body)
		}
		if resp.Header.Get("Cache-Control") != "no-store" || resp.Header.Get("Pragma") != "no-cache" {
			t.Fatalf("reveal %d: missing no-store headers", i+1)
		}
		var rr revealResponse
		if err := json.Unmarshal(body, &rr); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if rr.AccountID != id || rr.AccountPassword != "broker-secret" || rr.ExpiresInSeconds != 30 {
			t.Fatalf("unexpected reveal body: %+v", rr)
		}
	}

	resp, body := env.do(c, http.MethodPost, revealPath(id), revealRequest{AdminPassword: adminPassword}, env.csrfHeader(c))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("4th reveal status=%d body=%s", resp.StatusCode, body)
	}

	if n := len(env.audit.ByAction(audit.ActionPasswordReveal)); n != 3 {
		t.Fatalf("reveal audit events=%d", n)
	}
	limited := env.audit.ByAction(audit.ActionPasswordRevealRateLimit)
	if len(limited) != 1 || limited[0].TargetType != audit.TargetAccount || limited[0].TargetID != strconv.FormatInt(id, 10) {
		t.Fatalf("unexpected rate limit audit: %+v", limited)
	}
}

func TestReveal_Rejections(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedAccount("880012", "broker-secret")

	admin := env.client()
	env.login(admin, adminUser, adminPassword)

	if resp, _ := env.do(admin, http.MethodPost, revealPath(id), revealRequest{AdminPassword: adminPassword}, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("missing csrf status=%d", resp.StatusCode)
	}

	resp, body := env.do(admin, http.MethodPost, revealPath(id), revealRequest{AdminPassword: "not-my-password"}, env.csrfHeader(admin))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong admin password status=%d body=%s", resp.StatusCode, body)
	}
	ev := env.audit.ByAction(audit.ActionPasswordReveal)
	if len(ev) != 1 || ev[0].Success || ev[0].Reason != "invalid_admin_password" || ev[0].UserID == nil {
		t.Fatalf("unexpected reveal audit: %+v", ev)
	}

	if resp, _ := env.do(admin, http.MethodPost, revealPath(id+100), revealRequest{AdminPassword: adminPassword}, env.csrfHeader(admin)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown account status=%d", resp.StatusCode)
	}

	if resp, _ := env.do(admin, http.MethodPost, "/api/v2/admin/accounts/abc/password/reveal", revealRequest{AdminPassword: adminPassword}, env.csrfHeader(admin)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", resp.StatusCode)
	}

	user := env.client()
	env.login(user, testUser, testPassword)
	if resp, _ := env.do(user, http.MethodPost, revealPath(id), revealRequest{AdminPassword: testPassword}, env.csrfHeader(user)); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin status=%d", resp.StatusCode)
	}

	anon := env.client()
	if resp, _ := env.do(anon, http.MethodPost, revealPath(id), revealRequest{AdminPassword: adminPassword}, map[string]string{
		"Cookie":       "copydesk_csrf=x",
		"X-CSRF-Token": "x",
	}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", resp.StatusCode)
	}
}

func TestReveal_UndecryptableSecret(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.accounts.Create(context.Background(), "880013", "not-a-ciphertext")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c := env.client()
	env.login(c, adminUser, adminPassword)
	resp, _ := env.do(c, http.MethodPost, revealPath(a.ID), revealRequest{AdminPassword: adminPassword}, env.csrfHeader(c))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	ev := env.audit.ByAction(audit.ActionPasswordReveal)
	if len(ev) != 1 || ev[0].Reason != "decrypt_failed" {
		t.Fatalf("unexpected audit: %+v", ev)
	}
}
