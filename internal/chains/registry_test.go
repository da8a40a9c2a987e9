package chains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Ashar20/Trader-daddy/pkg/errors"
)

func TestRegistry_Resolve(t *testing.T) {
	registry := NewRegistry(nil)

	t.Run("resolves supported chain", func(t *testing.T) {
		chain, err := registry.Resolve(11155420)
		require.NoError(t, err)

		assert.Equal(t, int64(11155420), chain.ID)
		assert.Equal(t, "Optimism Sepolia", chain.Name)
		assert.Equal(t, "ETH", chain.NativeCurrency)
	})

	t.Run("unknown chain is an explicit error", func(t *testing.T) {
		_, err := registry.Resolve(1)
		require.Error(t, err)

		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnsupportedChain))
		// The error enumerates the supported set for the user message.
		assert.Contains(t, err.Error(), "11155420")
		assert.Contains(t, err.Error(), "44787")
	})

	t.Run("supported reports membership", func(t *testing.T) {
		assert.True(t, registry.Supported(421614))
		assert.False(t, registry.Supported(999))
	})
}

func TestRegistry_RPCOverrides(t *testing.T) {
	t.Run("override replaces default RPC URL", func(t *testing.T) {
		registry := NewRegistry(map[int64]string{11155420: "https://rpc.example"})

		chain, err := registry.Resolve(11155420)
		require.NoError(t, err)
		assert.Equal(t, "https://rpc.example", chain.RPCURL)
	})

	t.Run("override for unknown chain does not extend the set", func(t *testing.T) {
		registry := NewRegistry(map[int64]string{1: "https://rpc.example"})

		assert.False(t, registry.Supported(1))
	})
}

func TestRegistry_All(t *testing.T) {
	registry := NewRegistry(nil)

	chains := registry.All()
	require.Len(t, chains, 5)

	// Ordered by chain ID.
	assert.Equal(t, int64(31337), chains[0].ID)
	assert.Equal(t, int64(44787), chains[1].ID)
	assert.Equal(t, int64(80001), chains[2].ID)
	assert.Equal(t, int64(421614), chains[3].ID)
	assert.Equal(t, int64(11155420), chains[4].ID)
}

func TestChain_ExplorerTxURL(t *testing.T) {
	registry := NewRegistry(nil)

	chain, err := registry.Resolve(11155420)
	require.NoError(t, err)

	url := chain.ExplorerTxURL("0xabc")
	assert.Equal(t, "https://sepolia-optimism.etherscan.io/tx/0xabc", url)

	assert.Empty(t, Chain{}.ExplorerTxURL("0xabc"))
}

func TestParseCAIP2(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       int64
		wantErr    bool
	}{
		{"optimism sepolia", "eip155:11155420", 11155420, false},
		{"celo alfajores", "eip155:44787", 44787, false},
		{"missing separator", "eip155", 0, true},
		{"wrong namespace", "cosmos:cosmoshub-4", 0, true},
		{"non-numeric reference", "eip155:abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCAIP2(tt.identifier)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCAIP2(t *testing.T) {
	assert.Equal(t, "eip155:11155420", FormatCAIP2(11155420))

	chain, err := NewRegistry(nil).Resolve(44787)
	require.NoError(t, err)
	assert.Equal(t, "eip155:44787", chain.CAIP2())
}
