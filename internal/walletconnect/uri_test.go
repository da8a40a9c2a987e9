package walletconnect

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSymKey = "1d1d6a3dbe3ad48b2141d539a7b38c2f2eabdcc8d3e6e41d6e9e6e3f2e1c0b0a"

func validURI() string {
	return "wc:7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9@2?relay-protocol=irn&symKey=" + testSymKey
}

func TestIsPairingURI(t *testing.T) {
	assert.True(t, IsPairingURI(validURI()))
	assert.True(t, IsPairingURI("  wc:abc@2?symKey=00  "))
	assert.False(t, IsPairingURI("please send 1 ETH to 0xabc"))
}

func TestParsePairingURI(t *testing.T) {
	t.Run("parses a valid URI", func(t *testing.T) {
		uri, err := ParsePairingURI(validURI())
		require.NoError(t, err)

		assert.Equal(t, "7f6e504bfad60b485450578e05678ed3e8e8c4751d3c6160be17160d63ec90f9", uri.Topic)
		assert.Equal(t, 2, uri.Version)
		assert.Equal(t, "irn", uri.RelayProtocol)
		assert.Len(t, uri.SymKey, 32)
		assert.True(t, uri.Expiry.IsZero())
	})

	t.Run("parses expiry timestamp", func(t *testing.T) {
		uri, err := ParsePairingURI(validURI() + "&expiryTimestamp=1700000000")
		require.NoError(t, err)

		assert.Equal(t, time.Unix(1700000000, 0), uri.Expiry)
		assert.True(t, uri.Expired(time.Unix(1700000001, 0)))
		assert.False(t, uri.Expired(time.Unix(1699999999, 0)))
	})

	tests := []struct {
		name string
		uri  string
	}{
		{"missing prefix", "http://example.com"},
		{"missing version", "wc:topic?symKey=" + testSymKey},
		{"non-numeric version", "wc:topic@x?symKey=" + testSymKey},
		{"unsupported version", "wc:topic@1?symKey=" + testSymKey},
		{"missing symKey", "wc:topic@2?relay-protocol=irn"},
		{"non-hex symKey", "wc:topic@2?symKey=zz"},
		{"short symKey", "wc:topic@2?symKey=abcd"},
		{"bad expiry", validURI() + "&expiryTimestamp=soon"},
	}

	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			_, err := ParsePairingURI(tt.uri)
			require.Error(t, err)
			assert.False(t, strings.Contains(err.Error(), "panic"))
		})
	}
}
