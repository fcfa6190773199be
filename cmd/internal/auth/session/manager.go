package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"copydesk/cmd/identity"
	"copydesk/cmd/identity/ids"
	"copydesk/cmd/internal/auth/csrf"
	"copydesk/cmd/internal/metrics"
	"copydesk/cmd/internal/securitystore"
	"copydesk/cmd/security/token"
)

// RevokedKeyPrefix prefixes revocation markers in the security store.
const RevokedKeyPrefix = "revoked_session:"

// Bundle is what a successful Create or Rotate hands back to the transport layer.
// RefreshToken and CSRFToken are raw values; only their hash (refresh) or
// value (csrf) is persisted.
type Bundle struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	SessionID    string
	ExpiresAt    time.Time
}

// Manager implements the session lifecycle over a record Store, the token
// codec and the security store.
type Manager struct {
	cfg     Config
	store   Store
	codec   *token.Codec
	sec     securitystore.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewManager wires a Manager. All collaborators except log and m are required.
func NewManager(cfg Config, store Store, codec *token.Codec, sec securitystore.Store, log *slog.Logger, m *metrics.Metrics) (*Manager, error) {
	if store == nil || codec == nil || sec == nil {
		return nil, fmt.Errorf("session: %w: missing collaborator", ErrInvalidInput)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.RefreshTokenBytes <= 0 || cfg.CSRFTokenBytes <= 0 {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		codec:   codec,
		sec:     sec,
		log:     log,
		metrics: m,
		now:     time.Now,
	}, nil
}

// WithClock overrides the manager's time source. Intended for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	cp.codec = m.codec.WithClock(now)
	return &cp
}

// AccessTTL is the access token and revocation marker lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL is the refresh record lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Create starts a new session for u.
func (m *Manager) Create(ctx context.Context, u identity.User, ip, userAgent string) (Bundle, error) {
	now := m.now().UTC()

	sid, err := ids.NewULID(now)
	if err != nil {
		m.metrics.SessionOp("create", "error")
		return Bundle{}, err
	}

	rec, b, err := m.mint(u.ID, sid, now, ip, userAgent)
	if err != nil {
		m.metrics.SessionOp("create", "error")
		return Bundle{}, err
	}
	b.AccessToken, err = m.accessToken(u.Username, sid)
	if err != nil {
		m.metrics.SessionOp("create", "error")
		return Bundle{}, err
	}
	if _, err := m.store.Insert(ctx, rec); err != nil {
		m.metrics.SessionOp("create", "error")
		return Bundle{}, err
	}

	m.metrics.SessionOp("create", "ok")
	m.log.Debug("auth.session.create", "user_id", u.ID, "sid", sid)
	return b, nil
}

// Rotate exchanges a refresh token for a new bundle on the same session.
//
// It returns ok=false when the token is unknown, revoked or expired, when
// csrf does not match the record, when the session carries a revocation
// marker, or when the owner is gone or inactive. Callers cannot tell these
// apart. Only infrastructure failures are returned as errors.
func (m *Manager) Rotate(ctx context.Context, rawRefresh, csrf, ip, userAgent string) (Bundle, bool, error) {
	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" || len(rawRefresh) > 4096 || csrf == "" {
		m.rejectRotate("missing_input", "")
		return Bundle{}, false, nil
	}

	now := m.now().UTC()
	var (
		reason   = "not_found"
		bundle   Bundle
		username string
	)

	_, rotated, err := m.store.Rotate(ctx, token.HashRefreshTokenHex(rawRefresh), now, func(cur Record, owner Owner) (Record, bool, error) {
		if subtle.ConstantTimeCompare([]byte(cur.CSRFToken), []byte(csrf)) != 1 {
			reason = "csrf_mismatch"
			return Record{}, false, nil
		}
		if m.IsSessionRevoked(ctx, cur.SessionID) {
			reason = "session_revoked"
			return Record{}, false, nil
		}
		if !owner.Found {
			reason = "user_missing"
			return Record{}, false, nil
		}
		if !owner.Active {
			reason = "user_inactive"
			return Record{}, false, nil
		}

		next, b, err := m.mint(cur.UserID, cur.SessionID, now, ip, userAgent)
		if err != nil {
			return Record{}, false, err
		}
		bundle, username = b, owner.Username
		return next, true, nil
	})
	if err != nil {
		m.metrics.SessionOp("rotate", "error")
		m.log.Error("auth.session.rotate.fail", "err", err)
		return Bundle{}, false, err
	}
	if !rotated {
		m.rejectRotate(reason, ip)
		return Bundle{}, false, nil
	}

	bundle.AccessToken, err = m.accessToken(username, bundle.SessionID)
	if err != nil {
		m.metrics.SessionOp("rotate", "error")
		return Bundle{}, false, err
	}

	m.metrics.SessionOp("rotate", "ok")
	return bundle, true, nil
}

func (m *Manager) rejectRotate(reason, ip string) {
	m.metrics.SessionOp("rotate", "rejected")
	m.log.Debug("auth.session.rotate.reject", "reason", reason, "ip", ip)
}

// Revoke ends the session owning rawRefresh. It returns ok=false when no
// active record matches, which makes repeated logouts harmless.
//
// The revocation marker write is best-effort: the record is already revoked
// in the database, so a store failure is logged and does not fail the call.
func (m *Manager) Revoke(ctx context.Context, rawRefresh string) (Record, bool, error) {
	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" || len(rawRefresh) > 4096 {
		m.metrics.SessionOp("revoke", "rejected")
		return Record{}, false, nil
	}

	now := m.now().UTC()
	rec, ok, err := m.store.RevokeActive(ctx, token.HashRefreshTokenHex(rawRefresh), now)
	if err != nil {
		m.metrics.SessionOp("revoke", "error")
		return Record{}, false, err
	}
	if !ok {
		m.metrics.SessionOp("revoke", "rejected")
		return Record{}, false, nil
	}

	m.RevokeSessionID(ctx, rec.SessionID)
	m.metrics.SessionOp("revoke", "ok")
	return rec, true, nil
}

// RevokeSessionID writes the revocation marker for sid with TTL = access TTL.
// Once the marker expires every access token carrying sid has expired too.
func (m *Manager) RevokeSessionID(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	if err := m.sec.SetWithExpiry(ctx, RevokedKeyPrefix+sid, "1", m.cfg.AccessTTL); err != nil {
		m.log.Error("auth.session.revoke_marker.fail", "err", err, "sid", sid)
	}
}

// IsSessionRevoked reports whether sid carries a revocation marker.
//
// A store error yields cfg.RevocationFailClosed: false by default, so an
// outage keeps existing sessions usable rather than logging everyone out.
func (m *Manager) IsSessionRevoked(ctx context.Context, sid string) bool {
	if sid == "" {
		return true
	}
	v, ok, err := m.sec.Get(ctx, RevokedKeyPrefix+sid)
	if err != nil {
		m.log.Warn("auth.session.revocation_check.fail", "err", err, "fail_closed", m.cfg.RevocationFailClosed)
		return m.cfg.RevocationFailClosed
	}
	return ok && v == "1"
}

// VerifyAccess decodes an access token and checks its session is not revoked.
// It returns the username and session id.
func (m *Manager) VerifyAccess(ctx context.Context, raw string) (username, sid string, ok bool) {
	claims, ok := m.codec.Decode(raw)
	if !ok {
		return "", "", false
	}
	username, sid = claims.Subject(), claims.SessionID()
	if username == "" || sid == "" {
		return "", "", false
	}
	if m.IsSessionRevoked(ctx, sid) {
		return "", "", false
	}
	return username, sid, true
}

// mint generates fresh refresh and CSRF tokens and the record that stores them.
func (m *Manager) mint(userID int64, sid string, now time.Time, ip, userAgent string) (Record, Bundle, error) {
	refresh, hash, err := token.NewRefresh(m.cfg.RefreshTokenBytes)
	if err != nil {
		return Record{}, Bundle{}, err
	}
	csrfToken, err := csrf.NewToken(m.cfg.CSRFTokenBytes)
	if err != nil {
		return Record{}, Bundle{}, err
	}
	expires := now.Add(m.cfg.RefreshTTL)

	rec := Record{
		UserID:           userID,
		SessionID:        sid,
		TokenHash:        hash,
		CSRFToken:        csrfToken,
		ExpiresAt:        expires,
		CreatedIP:        truncate(ip, 64),
		CreatedUserAgent: truncate(userAgent, 512),
		CreatedAt:        now,
	}
	b := Bundle{
		RefreshToken: refresh,
		CSRFToken:    csrfToken,
		SessionID:    sid,
		ExpiresAt:    expires,
	}
	return rec, b, nil
}

func (m *Manager) accessToken(username, sid string) (string, error) {
	return m.codec.Encode(map[string]any{"sub": username, "sid": sid}, m.cfg.AccessTTL)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
