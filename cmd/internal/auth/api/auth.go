package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"copydesk/cmd/identity"
	"copydesk/cmd/internal/audit"
	"copydesk/cmd/internal/ratelimit"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	ip, ua := h.clientIP(r), r.UserAgent()

	if !h.enforceLoginLimits(w, r, req.Username, ip, ua) {
		return
	}

	u, ok, err := identity.Authenticate(ctx, h.users, h.passwords, req.Username, req.Password)
	if err != nil {
		h.log.Error("auth.login.fail", "err", err)
		writeServerError(w)
		return
	}
	if !ok {
		h.audit.Record(ctx, audit.Event{
			Action:     audit.ActionLogin,
			TargetType: audit.TargetUser,
			TargetID:   req.Username,
			Reason:     "invalid_credentials",
			IP:         ip,
			UserAgent:  ua,
		})
		writeUnauthorized(w)
		return
	}

	b, err := h.sessions.Create(ctx, u, ip, ua)
	if err != nil {
		h.log.Error("auth.login.session.fail", "err", err, "user_id", u.ID)
		writeServerError(w)
		return
	}

	h.setSessionCookies(w, b)
	noStore(w)
	h.audit.Record(ctx, audit.Event{
		UserID:     audit.UserID(u.ID),
		Action:     audit.ActionLogin,
		TargetType: audit.TargetSession,
		TargetID:   b.SessionID,
		Success:    true,
		IP:         ip,
		UserAgent:  ua,
	})
	h.log.Info("auth.login.ok", "user_id", u.ID, "sid", b.SessionID)

	writeJSON(w, http.StatusOK, loginResponse{
		User:             toUserResponse(u),
		SessionExpiresAt: b.ExpiresAt,
	})
}

// enforceLoginLimits applies the per-IP then per-username limits. A denial
// is audited and answered; the caller must stop when it returns false.
func (h *Handler) enforceLoginLimits(w http.ResponseWriter, r *http.Request, username, ip, ua string) bool {
	ctx := r.Context()
	err := h.limiter.EnforcePolicy(ctx, ratelimit.LoginIP, ip)
	if err == nil {
		err = h.limiter.EnforcePolicy(ctx, ratelimit.LoginUsername, strings.ToLower(username))
	}
	if err == nil {
		return true
	}

	h.audit.Record(ctx, audit.Event{
		Action:     audit.ActionLoginRateLimit,
		TargetType: audit.TargetUser,
		TargetID:   username,
		Reason:     "rate_limit_exceeded",
		IP:         ip,
		UserAgent:  ua,
	})
	h.writeLimitError(w, err)
	return false
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.csrf.CheckRequest(r); err != nil {
		writeCSRFInvalid(w)
		return
	}

	rawRefresh := cookieValue(r, h.cfg.RefreshCookieName)
	csrfToken := cookieValue(r, h.cfg.CSRFCookieName)
	if rawRefresh == "" || csrfToken == "" {
		writeUnauthorized(w)
		return
	}

	ctx := r.Context()
	ip, ua := h.clientIP(r), r.UserAgent()

	if err := h.limiter.EnforcePolicy(ctx, ratelimit.RefreshSession, prefix(rawRefresh, 16)); err != nil {
		h.audit.Record(ctx, audit.Event{
			Action:     audit.ActionRefreshRateLimit,
			TargetType: audit.TargetSession,
			Reason:     "rate_limit_exceeded",
			IP:         ip,
			UserAgent:  ua,
		})
		h.writeLimitError(w, err)
		return
	}

	b, ok, err := h.sessions.Rotate(ctx, rawRefresh, csrfToken, ip, ua)
	if err != nil {
		h.log.Error("auth.refresh.fail", "err", err)
		writeServerError(w)
		return
	}
	if !ok {
		h.audit.Record(ctx, audit.Event{
			Action:     audit.ActionRefresh,
			TargetType: audit.TargetSession,
			Reason:     "invalid_refresh",
			IP:         ip,
			UserAgent:  ua,
		})
		writeUnauthorized(w)
		return
	}

	h.setSessionCookies(w, b)
	noStore(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, _, ok := h.currentUser(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.csrf.CheckRequest(r); err != nil {
		writeCSRFInvalid(w)
		return
	}
	u, sid, ok := h.currentUser(r)
	if !ok {
		writeUnauthorized(w)
		return
	}

	ctx := r.Context()
	if raw := cookieValue(r, h.cfg.RefreshCookieName); raw != "" {
		if _, _, err := h.sessions.Revoke(ctx, raw); err != nil {
			h.log.Error("auth.logout.revoke.fail", "err", err, "user_id", u.ID)
			writeServerError(w)
			return
		}
	}
	// The refresh cookie is path-scoped and may be absent; the access token's
	// session is revoked either way.
	h.sessions.RevokeSessionID(ctx, sid)

	h.clearSessionCookies(w)
	noStore(w)
	h.audit.Record(ctx, audit.Event{
		UserID:     audit.UserID(u.ID),
		Action:     audit.ActionLogout,
		TargetType: audit.TargetSession,
		TargetID:   sid,
		Success:    true,
		IP:         h.clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// currentUser resolves the access cookie to an active user and its session id.
func (h *Handler) currentUser(r *http.Request) (identity.User, string, bool) {
	raw := cookieValue(r, h.cfg.AccessCookieName)
	if raw == "" {
		return identity.User{}, "", false
	}
	username, sid, ok := h.sessions.VerifyAccess(r.Context(), raw)
	if !ok {
		return identity.User{}, "", false
	}
	u, ok := h.activeUser(r.Context(), username)
	return u, sid, ok
}

func (h *Handler) activeUser(ctx context.Context, username string) (identity.User, bool) {
	u, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.user_lookup.fail", "err", err)
		}
		return identity.User{}, false
	}
	if !u.Active {
		return identity.User{}, false
	}
	return u, true
}

func (h *Handler) writeLimitError(w http.ResponseWriter, err error) {
	if e, ok := ratelimit.AsExceeded(err); ok {
		writeRateLimited(w, e)
		return
	}
	h.log.Error("auth.ratelimit.fail", "err", err)
	writeServerError(w)
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }
