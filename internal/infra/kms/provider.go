// Package kms provisions the HMAC key that seals audit entry hashes. The
// key is held by this service only; it never reaches the database or the
// wire.
package kms

import "context"

// KeyProvider yields the audit chain's HMAC key material.
type KeyProvider interface {
	HMACKey(ctx context.Context) ([]byte, error)
}
