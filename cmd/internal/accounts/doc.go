// Package accounts stores copy-trade accounts whose passwords are kept
// encrypted at rest and decrypted only by the admin reveal flow.
package accounts
