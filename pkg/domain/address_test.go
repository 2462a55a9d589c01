package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "giveroute/pkg/domain-errors"
)

// TestParseAddress_Invariants validates the trust-boundary parsing rules:
// addresses are base58 strings decoding to exactly 32 bytes.
func TestParseAddress_Invariants(t *testing.T) {
	t.Run("round trips a random address", func(t *testing.T) {
		a := NewRandomAddress()
		parsed, err := ParseAddress(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	})

	t.Run("accepts the encoded zero key as the sentinel", func(t *testing.T) {
		parsed, err := ParseAddress(ZeroAddress.String())
		require.NoError(t, err)
		assert.True(t, parsed.IsZero())
	})

	t.Run("empty string is optional only through ParseOptionalAddress", func(t *testing.T) {
		_, err := ParseAddress("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		a, err := ParseOptionalAddress("")
		require.NoError(t, err)
		assert.True(t, a.IsZero())
	})
}

func TestParseAddress_RejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE charities;--"},
		{"Path traversal", "../../../etc/passwd"},
		{"Base58 excluded character", "0OIl" + strings.Repeat("1", 28)},
		{"Too short", base58.Encode([]byte{1, 2, 3})},
		{"Too long", base58.Encode(make([]byte, 40))},
		{"Oversized input", strings.Repeat("2", 1000)},
		{"Surrounding whitespace", " " + NewRandomAddress().String() + " "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		})
	}
}

func TestAddress_JSON(t *testing.T) {
	type payload struct {
		Destination Address `json:"destination"`
	}
	a := NewRandomAddress()

	body, err := json.Marshal(payload{Destination: a})
	require.NoError(t, err)
	assert.JSONEq(t, `{"destination":"`+a.String()+`"}`, string(body))

	var decoded payload
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, a, decoded.Destination)

	require.Error(t, json.Unmarshal([]byte(`{"destination":"not-base58-0OIl"}`), &decoded))
}
