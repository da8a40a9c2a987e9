package walletconnect

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_SendTransaction(t *testing.T) {
	t.Run("decodes transaction params", func(t *testing.T) {
		params := json.RawMessage(`[{
			"from": "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			"to": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			"value": "0x2386f26fc10000",
			"data": "0x",
			"gas": "0x5208"
		}]`)

		payload, err := ParsePayload("eth_sendTransaction", params)
		require.NoError(t, err)

		assert.Equal(t, KindSendTransaction, payload.Kind)
		require.NotNil(t, payload.Transaction)
		assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", payload.Transaction.To)

		// 0.01 ETH in wei.
		want, _ := new(big.Int).SetString("10000000000000000", 10)
		assert.Equal(t, 0, payload.Transaction.Value.ToInt().Cmp(want))
	})

	t.Run("rejects empty params", func(t *testing.T) {
		_, err := ParsePayload("eth_sendTransaction", json.RawMessage(`[]`))
		assert.Error(t, err)
	})

	t.Run("rejects missing destination", func(t *testing.T) {
		_, err := ParsePayload("eth_sendTransaction", json.RawMessage(`[{"value": "0x1"}]`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed params", func(t *testing.T) {
		_, err := ParsePayload("eth_sendTransaction", json.RawMessage(`{"to": "0x1"}`))
		assert.Error(t, err)
	})
}

func TestParsePayload_SignTypedData(t *testing.T) {
	t.Run("decodes object form", func(t *testing.T) {
		params := json.RawMessage(`["0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", {"primaryType": "Person"}]`)

		payload, err := ParsePayload("eth_signTypedData", params)
		require.NoError(t, err)

		assert.Equal(t, KindSignTypedData, payload.Kind)
		assert.JSONEq(t, `{"primaryType": "Person"}`, string(payload.TypedData))
	})

	t.Run("decodes string form", func(t *testing.T) {
		params := json.RawMessage(`["0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "{\"primaryType\": \"Person\"}"]`)

		payload, err := ParsePayload("eth_signTypedData_v4", params)
		require.NoError(t, err)
		assert.JSONEq(t, `{"primaryType": "Person"}`, string(payload.TypedData))
	})

	t.Run("rejects short params", func(t *testing.T) {
		_, err := ParsePayload("eth_signTypedData", json.RawMessage(`["0xabc"]`))
		assert.Error(t, err)
	})
}

func TestParsePayload_PersonalSign(t *testing.T) {
	t.Run("decodes hex message", func(t *testing.T) {
		params := json.RawMessage(`["0x68656c6c6f", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"]`)

		payload, err := ParsePayload("personal_sign", params)
		require.NoError(t, err)

		assert.Equal(t, KindPersonalSign, payload.Kind)
		assert.Equal(t, []byte("hello"), payload.Message)
	})

	t.Run("decodes plain message", func(t *testing.T) {
		params := json.RawMessage(`["hello", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"]`)

		payload, err := ParsePayload("personal_sign", params)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), payload.Message)
	})

	t.Run("rejects invalid hex", func(t *testing.T) {
		_, err := ParsePayload("personal_sign", json.RawMessage(`["0xzz", "0xabc"]`))
		assert.Error(t, err)
	})
}

func TestParsePayload_Unsupported(t *testing.T) {
	payload, err := ParsePayload("eth_getBalance", json.RawMessage(`[]`))
	require.NoError(t, err)

	assert.Equal(t, KindUnsupported, payload.Kind)
	assert.Equal(t, "eth_getBalance", payload.Method)
}
