// Package password provides the credential verifier used by copydesk logins.
//
// Hashes are bcrypt strings with a configurable cost. Inputs longer than the
// 72-byte bcrypt limit are pre-hashed with SHA-256 so long passphrases never
// fail and never silently collide on their first 72 bytes.
//
// Verify treats the stored hash as untrusted input: a malformed or truncated
// hash is reported as a mismatch, never as a panic.
package password
