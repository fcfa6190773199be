package api

import (
	"net/http"
	"strings"

	"copydesk/cmd/identity"
	"copydesk/cmd/internal/audit"
)

// LegacyPrefixes are the v1 path prefixes that carry deprecation headers.
var LegacyPrefixes = []string{"/api/auth", "/api/admin"}

// IsLegacyPath reports whether path belongs to the retired v1 surface.
func IsLegacyPath(path string) bool {
	for _, p := range LegacyPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Legacy marks responses on legacy paths as deprecated and answers 410 for
// them once the sunset has passed. Other paths pass through untouched.
func (h *Handler) Legacy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsLegacyPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Deprecation", "true")
		w.Header().Set("Sunset", h.cfg.LegacySunset.UTC().Format(http.TimeFormat))
		if !h.now().Before(h.cfg.LegacySunset) {
			writeError(w, http.StatusGone, "gone", "this endpoint has been retired; use /api/v2")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) legacyLogin(w http.ResponseWriter, r *http.Request) {
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
		h.log.Error("auth.legacy.login.fail", "err", err)
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

	// v1 tokens carry no session id and cannot be revoked before expiry.
	tok, err := h.codec.Encode(map[string]any{"sub": u.Username}, h.sessions.AccessTTL())
	if err != nil {
		h.log.Error("auth.legacy.encode.fail", "err", err)
		writeServerError(w)
		return
	}

	h.audit.Record(ctx, audit.Event{
		UserID:     audit.UserID(u.ID),
		Action:     audit.ActionLogin,
		TargetType: audit.TargetUser,
		TargetID:   u.Username,
		Success:    true,
		Reason:     "legacy_bearer",
		IP:         ip,
		UserAgent:  ua,
	})
	noStore(w)
	writeJSON(w, http.StatusOK, legacyTokenResponse{AccessToken: tok, TokenType: "bearer"})
}

func (h *Handler) legacyMe(w http.ResponseWriter, r *http.Request) {
	u, ok := h.bearerUser(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) legacyLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.bearerUser(r); !ok {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

// bearerUser accepts v1 tokens and v2 access tokens presented as Bearer.
// A token with a session id is subject to revocation.
func (h *Handler) bearerUser(r *http.Request) (identity.User, bool) {
	raw, ok := bearerToken(r)
	if !ok {
		return identity.User{}, false
	}
	claims, ok := h.codec.Decode(raw)
	if !ok || claims.Subject() == "" {
		return identity.User{}, false
	}
	if sid := claims.SessionID(); sid != "" && h.sessions.IsSessionRevoked(r.Context(), sid) {
		return identity.User{}, false
	}
	return h.activeUser(r.Context(), claims.Subject())
}
