package api

import (
	"net/http"
	"time"

	"copydesk/cmd/internal/auth/session"
)

func (h *Handler) setSessionCookies(w http.ResponseWriter, b session.Bundle) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.AccessCookieName,
		Value:    b.AccessToken,
		Path:     "/",
		MaxAge:   maxAge(h.sessions.AccessTTL()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    b.RefreshToken,
		Path:     h.cfg.RefreshCookiePath,
		MaxAge:   maxAge(h.sessions.RefreshTTL()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	// Readable by scripts so the client can echo it in the CSRF header.
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRFCookieName,
		Value:    b.CSRFToken,
		Path:     "/",
		MaxAge:   maxAge(h.sessions.RefreshTTL()),
		HttpOnly: false,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.expireCookie(w, h.cfg.AccessCookieName, "/", true, http.SameSiteLaxMode)
	h.expireCookie(w, h.cfg.RefreshCookieName, h.cfg.RefreshCookiePath, true, http.SameSiteStrictMode)
	h.expireCookie(w, h.cfg.CSRFCookieName, "/", false, http.SameSiteStrictMode)
}

func (h *Handler) expireCookie(w http.ResponseWriter, name, path string, httpOnly bool, sameSite http.SameSite) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite,
	})
}

func maxAge(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
