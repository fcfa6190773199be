// Package session implements copydesk's cookie session lifecycle.
//
// A session is a stable ULID carried in the access token's "sid" claim and
// shared by every refresh record minted for it. Refresh tokens are opaque
// random strings stored only as hashes (HMAC-SHA256 when
// COPYDESK_TOKEN_HMAC_KEY is set; otherwise SHA-256). Each rotation revokes the
// presented record and inserts a successor with the same session id.
//
// Logout additionally writes a revocation marker into the security store so
// access tokens already in flight stop working before they expire.
package session
