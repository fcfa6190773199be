package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"copydesk/cmd/internal/accounts"
	"copydesk/cmd/internal/audit"
	"copydesk/cmd/internal/ratelimit"
)

// reveal decrypts a copy-trade account password for an admin who re-enters
// their own password. Every outcome past the admin check is audited.
func (h *Handler) reveal(w http.ResponseWriter, r *http.Request) {
	if err := h.csrf.CheckRequest(r); err != nil {
		writeCSRFInvalid(w)
		return
	}
	admin, _, ok := h.currentUser(r)
	if !ok {
		writeUnauthorized(w)
		return
	}
	if !admin.Admin {
		writeError(w, http.StatusForbidden, "forbidden", "admin privileges required")
		return
	}

	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || accountID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid account id")
		return
	}

	var req revealRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	ctx := r.Context()
	ip, ua := h.clientIP(r), r.UserAgent()
	event := func(action audit.Action, success bool, reason string) audit.Event {
		return audit.Event{
			UserID:     audit.UserID(admin.ID),
			Action:     action,
			TargetType: audit.TargetAccount,
			TargetID:   formatID(accountID),
			Success:    success,
			Reason:     reason,
			IP:         ip,
			UserAgent:  ua,
		}
	}

	if err := h.limiter.EnforcePolicy(ctx, ratelimit.RevealUser, formatID(admin.ID)); err != nil {
		h.audit.Record(ctx, event(audit.ActionPasswordRevealRateLimit, false, "rate_limit_exceeded"))
		h.writeLimitError(w, err)
		return
	}

	acct, err := h.accounts.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "account not found")
			return
		}
		h.log.Error("admin.reveal.lookup.fail", "err", err, "account_id", accountID)
		writeServerError(w)
		return
	}

	if req.AdminPassword == "" || !h.passwords.Verify(admin.PasswordHash, req.AdminPassword) {
		h.audit.Record(ctx, event(audit.ActionPasswordReveal, false, "invalid_admin_password"))
		writeUnauthorized(w)
		return
	}

	plain, err := h.cipher.Decrypt(acct.EncryptedPassword)
	if err != nil {
		h.log.Error("admin.reveal.decrypt.fail", "err", err, "account_id", accountID)
		h.audit.Record(ctx, event(audit.ActionPasswordReveal, false, "decrypt_failed"))
		writeServerError(w)
		return
	}

	h.audit.Record(ctx, event(audit.ActionPasswordReveal, true, ""))
	h.log.Info("admin.reveal.ok", "admin_id", admin.ID, "account_id", accountID)

	noStore(w)
	writeJSON(w, http.StatusOK, revealResponse{
		AccountID:        acct.ID,
		AccountPassword:  plain,
		RevealedAt:       h.now().UTC(),
		ExpiresInSeconds: int64(h.cfg.RevealTTL / time.Second),
	})
}
