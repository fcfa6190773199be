// Package securitystore is the shared key/value store behind rate limiting and
// session revocation.
//
// Two backends implement Store:
//   - RedisStore: networked, atomic via a server-side script.
//   - MemoryStore: in-process fallback guarded by a single mutex.
//
// Provider is the only place that chooses between them. It probes Redis once,
// caches the result for the process lifetime and refuses to fall back in
// production.
package securitystore
