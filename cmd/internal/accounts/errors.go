package accounts

import "errors"

var (
	ErrNotFound   = errors.New("account not found")
	ErrKeyMissing = errors.New("encryption key missing")
	ErrCiphertext = errors.New("invalid ciphertext")
)
