// Package api exposes the copydesk auth and admin endpoints over net/http.
//
// Browser sessions use three cookies: a short-lived access token, a refresh
// token scoped to /api/v2/auth and a JS-readable CSRF token that must be
// echoed in a header on every unsafe request. The legacy bearer endpoints
// under /api/auth remain until the configured sunset and answer 410 after it.
package api
