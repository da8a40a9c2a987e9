package walletconnect

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSealOpen(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		symKey := randomKey(t)

		sealed, err := seal(symKey, []byte(`{"method":"wc_sessionPropose"}`))
		require.NoError(t, err)

		plaintext, err := open(symKey, sealed)
		require.NoError(t, err)
		assert.Equal(t, `{"method":"wc_sessionPropose"}`, string(plaintext))
	})

	t.Run("wrong key fails", func(t *testing.T) {
		sealed, err := seal(randomKey(t), []byte("payload"))
		require.NoError(t, err)

		_, err = open(randomKey(t), sealed)
		assert.Error(t, err)
	})

	t.Run("tampered envelope fails", func(t *testing.T) {
		symKey := randomKey(t)
		sealed, err := seal(symKey, []byte("payload"))
		require.NoError(t, err)

		// The envelope type byte is 0, so the base64 string always starts
		// with 'A'; flip the second character to guarantee the bytes change.
		tampered := []byte(sealed)
		if tampered[1] == 'A' {
			tampered[1] = 'B'
		} else {
			tampered[1] = 'A'
		}
		_, err = open(symKey, string(tampered))
		assert.Error(t, err)
	})

	t.Run("truncated envelope fails", func(t *testing.T) {
		_, err := open(randomKey(t), "AAAA")
		assert.Error(t, err)
	})
}

func TestKeyAgreement(t *testing.T) {
	t.Run("both sides derive the same key and topic", func(t *testing.T) {
		wallet, err := generateKeyPair()
		require.NoError(t, err)
		peer, err := generateKeyPair()
		require.NoError(t, err)

		walletKey, err := deriveSymKey(wallet, peer.PublicKeyHex())
		require.NoError(t, err)
		peerKey, err := deriveSymKey(peer, wallet.PublicKeyHex())
		require.NoError(t, err)

		assert.Equal(t, walletKey, peerKey)
		assert.Len(t, walletKey, 32)
		assert.Equal(t, topicFromKey(walletKey), topicFromKey(peerKey))
		assert.Len(t, topicFromKey(walletKey), 64)
	})

	t.Run("rejects malformed peer key", func(t *testing.T) {
		wallet, err := generateKeyPair()
		require.NoError(t, err)

		_, err = deriveSymKey(wallet, "zz")
		assert.Error(t, err)

		_, err = deriveSymKey(wallet, "abcd")
		assert.Error(t, err)
	})
}
