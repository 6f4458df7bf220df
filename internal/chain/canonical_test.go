package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarimed/auditchain/internal/chain"
)

// TestCanonicalizeSortsKeys verifies the canonical form is independent of
// how the payload map was built: keys come out in lexicographic order.
func TestCanonicalizeSortsKeys(t *testing.T) {
	out, err := chain.Canonicalize(map[string]any{
		"zeta":  1,
		"alpha": "x",
		"mid":   true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","mid":true,"zeta":1}`, string(out))
}

// TestCanonicalizeNestedObjects verifies sorting applies at every level.
func TestCanonicalizeNestedObjects(t *testing.T) {
	out, err := chain.Canonicalize(map[string]any{
		"outer": map[string]any{
			"b": nil,
			"a": []any{"second", "first"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"outer":{"a":["second","first"],"b":null}}`, string(out))
}

// TestCanonicalizeEmptyPayload verifies nil and empty payloads share one
// canonical form, so they hash identically.
func TestCanonicalizeEmptyPayload(t *testing.T) {
	fromNil, err := chain.Canonicalize(nil)
	require.NoError(t, err)

	fromEmpty, err := chain.Canonicalize(map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "{}", string(fromNil))
	assert.Equal(t, fromNil, fromEmpty)
}

// TestCanonicalizeDeterministic verifies repeated encoding of the same
// payload yields identical bytes.
func TestCanonicalizeDeterministic(t *testing.T) {
	payload := map[string]any{
		"noteId":   "note-1001",
		"clientId": "client-7",
		"fields":   map[string]any{"section": "assessment", "version": 3},
	}

	first, err := chain.Canonicalize(payload)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := chain.Canonicalize(payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestCanonicalizeUnencodablePayload verifies values that cannot be
// represented as JSON are rejected rather than silently dropped.
func TestCanonicalizeUnencodablePayload(t *testing.T) {
	_, err := chain.Canonicalize(map[string]any{"ch": make(chan int)})
	require.Error(t, err)
}
