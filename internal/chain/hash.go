// Package chain implements the hash-linked audit log primitives: the
// canonical payload encoding, the keyed entry hash shared by writer and
// verifier, and the chain-walk verification algorithm.
//
// Each entry's hash is computed as
//
//	HMAC-SHA-256(key, prev_hash \n occurred_at \n actor_id \n action \n resource_type \n resource_id \n canonical(payload))
//
// so tampering with any stored field, or re-parenting an entry, breaks the
// chain from that point forward. The HMAC key is held by this service only;
// a party with database access alone cannot recompute valid hashes.
package chain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/clarimed/auditchain/internal/domain"
)

// GenesisHash is the fixed prev_hash of the first entry in the chain.
var GenesisHash = strings.Repeat("0", 64)

const minKeyBytes = 32

// Hasher computes keyed entry hashes. It is safe for concurrent use.
type Hasher struct {
	key []byte
}

func NewHasher(key []byte) (*Hasher, error) {
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("hash key must be at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return &Hasher{key: key}, nil
}

// EntryHash recomputes the hash of an entry from its own fields and its
// PrevHash. For a freshly built entry this produces the value to store;
// for verification it produces the value to compare against.
func (h *Hasher) EntryHash(e *domain.AuditEntry) (string, error) {
	payload, err := Canonicalize(e.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	mac := hmac.New(sha256.New, h.key)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%s\n%s\n%s\n",
		e.PrevHash,
		e.OccurredAt.UTC().Format(time.RFC3339Nano),
		e.ActorID,
		e.Action,
		e.ResourceType,
		e.ResourceID,
	)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Matches reports whether the entry's stored hash equals its recomputed
// hash, comparing in constant time.
func (h *Hasher) Matches(e *domain.AuditEntry) (bool, error) {
	expected, err := h.EntryHash(e)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(e.EntryHash)), nil
}
