package audit

import "time"

// Action is the enumerated event name stored in security_audit_logs.action.
type Action string

const (
	ActionLogin                   Action = "auth_login"
	ActionLoginRateLimit          Action = "auth_login_rate_limit"
	ActionRefresh                 Action = "auth_refresh"
	ActionRefreshRateLimit        Action = "auth_refresh_rate_limit"
	ActionLogout                  Action = "auth_logout"
	ActionPasswordReveal          Action = "account_password_reveal"
	ActionPasswordRevealRateLimit Action = "account_password_reveal_rate_limit"
)

// Target types.
const (
	TargetUser    = "user"
	TargetAccount = "copy_trade_account"
	TargetSession = "session"
)

// Event is one append-only audit row. Empty strings are stored as NULL.
type Event struct {
	UserID     *int64
	Action     Action
	TargetType string
	TargetID   string
	Success    bool
	Reason     string
	IP         string
	UserAgent  string
	CreatedAt  time.Time
}

// UserID is a helper for building Event.UserID from a value.
func UserID(id int64) *int64 { return &id }
