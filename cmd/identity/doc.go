// Package identity owns copydesk principals: operators who sign in to the desk.
//
// It provides the user record, case-insensitive lookup, creation with bcrypt
// hashing and the idempotent admin bootstrap. Sessions live in auth/session.
package identity
