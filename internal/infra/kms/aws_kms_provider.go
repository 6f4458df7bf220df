package kms

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	apperrors "github.com/clarimed/auditchain/internal/errors"
)

// AWSKMSProvider decrypts a KMS-encrypted HMAC key at first use and caches
// the plaintext for the process lifetime.
type AWSKMSProvider struct {
	client     *kms.Client
	keyARN     string
	ciphertext []byte

	once sync.Once
	key  []byte
	err  error
}

func NewAWSKMSProvider(ctx context.Context, region, keyARN, encryptedKey string) (*AWSKMSProvider, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode encrypted hmac key: %w", apperrors.ErrKeyMaterial, err)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &AWSKMSProvider{
		client:     kms.NewFromConfig(cfg),
		keyARN:     keyARN,
		ciphertext: ciphertext,
	}, nil
}

func (p *AWSKMSProvider) HMACKey(ctx context.Context) ([]byte, error) {
	p.once.Do(func() {
		input := &kms.DecryptInput{
			CiphertextBlob: p.ciphertext,
			KeyId:          aws.String(p.keyARN),
		}
		result, err := p.client.Decrypt(ctx, input)
		if err != nil {
			p.err = fmt.Errorf("%w: kms decrypt failed: %w", apperrors.ErrKeyMaterial, err)
			return
		}
		p.key = result.Plaintext
	})
	return p.key, p.err
}
