package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"copydesk/cmd/identity"
	"copydesk/cmd/internal/accounts"
	"copydesk/cmd/internal/audit"
	"copydesk/cmd/internal/auth/csrf"
	"copydesk/cmd/internal/auth/session"
	"copydesk/cmd/internal/ratelimit"
	"copydesk/cmd/security/password"
	"copydesk/cmd/security/token"
)

// Deps are the collaborators a Handler needs. Log may be nil.
type Deps struct {
	Log       *slog.Logger
	Users     identity.Store
	Passwords password.Config
	Sessions  *session.Manager
	Codec     *token.Codec
	Limiter   *ratelimit.Limiter
	Audit     *audit.Logger
	Accounts  accounts.Store
	Cipher    *accounts.Cipher
}

// Handler serves the auth and admin endpoints.
type Handler struct {
	cfg  Config
	log  *slog.Logger
	csrf csrf.Guard
	now  func() time.Time

	users     identity.Store
	passwords password.Config
	sessions  *session.Manager
	codec     *token.Codec
	limiter   *ratelimit.Limiter
	audit     *audit.Logger
	accounts  accounts.Store
	cipher    *accounts.Cipher
}

// NewHandler validates cfg and deps and returns a Handler.
func NewHandler(cfg Config, d Deps) (*Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if d.Users == nil || d.Sessions == nil || d.Codec == nil || d.Limiter == nil ||
		d.Accounts == nil || d.Cipher == nil {
		return nil, errors.New("api: missing dependency")
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		log:       log,
		csrf:      csrf.New(cfg.CSRFCookieName, cfg.CSRFHeaderName),
		now:       time.Now,
		users:     d.Users,
		passwords: d.Passwords,
		sessions:  d.Sessions,
		codec:     d.Codec,
		limiter:   d.Limiter,
		audit:     d.Audit,
		accounts:  d.Accounts,
		cipher:    d.Cipher,
	}, nil
}

// WithClock overrides the clock used for the legacy sunset and reveal timestamps.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	if now != nil {
		h.now = now
	}
	return h
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v2/auth/login", h.login)
	mux.HandleFunc("POST /api/v2/auth/refresh", h.refresh)
	mux.HandleFunc("GET /api/v2/auth/me", h.me)
	mux.HandleFunc("POST /api/v2/auth/logout", h.logout)

	mux.HandleFunc("POST /api/v2/admin/accounts/{id}/password/reveal", h.reveal)

	// Wrap the mux with Legacy so these carry deprecation headers.
	mux.HandleFunc("POST /api/auth/login", h.legacyLogin)
	mux.HandleFunc("GET /api/auth/me", h.legacyMe)
	mux.HandleFunc("POST /api/auth/logout", h.legacyLogout)
}
