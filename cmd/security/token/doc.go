// Package token provides token primitives for copydesk.
//
// It is the single source of truth for:
//   - refresh-token generation and hashing (opaque random strings, stored only as a digest)
//   - access-token encoding and decoding (HS256 JWT carrying sub, sid and exp)
//
// Refresh-token hashing:
//   - Default dev mode: SHA-256(token) when no HMAC key is configured.
//   - Production mode: HMAC-SHA256(token, key) with COPYDESK_TOKEN_HMAC_KEY.
//   - Stable 64-char hex output for storage and exact-match lookup.
package token
