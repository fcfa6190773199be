// Package audit records security events.
//
// Writes are best-effort: each event is inserted in its own transaction on its
// own pooled connection, failures are rolled back, logged and counted, and
// nothing is ever returned to the caller.
package audit
