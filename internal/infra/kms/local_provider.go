package kms

import (
	"context"
	"encoding/base64"
	"fmt"

	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// LocalProvider holds a base64-encoded key supplied through configuration.
// Suitable for development and single-tenant deployments where the key is
// injected by the environment.
type LocalProvider struct {
	key []byte
}

func NewLocalProvider(encodedKey string) (*LocalProvider, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode hmac key: %w", apperrors.ErrKeyMaterial, err)
	}
	return &LocalProvider{key: key}, nil
}

func (p *LocalProvider) HMACKey(ctx context.Context) ([]byte, error) {
	return p.key, nil
}
