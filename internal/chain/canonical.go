package chain

import (
	"encoding/json"
	"fmt"
)

// Canonicalize serializes an audit payload deterministically: JSON with
// object keys in lexicographic order at every nesting level and no
// insignificant whitespace. Writer and verifier must agree bit-for-bit on
// this encoding or stored hashes become unverifiable.
//
// The round trip through `any` normalizes every object to a Go map, and
// encoding/json emits map keys sorted, which yields the canonical form
// without tracking insertion order ourselves.
func Canonicalize(payload map[string]any) ([]byte, error) {
	if len(payload) == 0 {
		return []byte("{}"), nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize payload: %w", err)
	}

	canonical, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal payload: %w", err)
	}

	return canonical, nil
}
