package eth

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	internalcrypto "github.com/Ashar20/Trader-daddy/internal/crypto"
)

// TxParams describes an outbound transaction request. Gas values supplied
// by the requesting dApp are intentionally absent: the client always
// estimates gas itself.
type TxParams struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Backend is the subset of the Ethereum RPC surface the signing client
// uses. *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Client is a chain-bound signing client: one derived identity on one chain.
type Client struct {
	backend    Backend
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewClient connects to the RPC endpoint and binds it to the given key
func NewClient(rpcURL string, chainID int64, privateKey *ecdsa.PrivateKey) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}
	if privateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	backend, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	return NewClientWithBackend(backend, chainID, privateKey), nil
}

// NewClientWithBackend builds a client over an existing backend
func NewClientWithBackend(backend Backend, chainID int64, privateKey *ecdsa.PrivateKey) *Client {
	return &Client{
		backend:    backend,
		chainID:    big.NewInt(chainID),
		privateKey: privateKey,
		address:    internalcrypto.GetEthereumAddress(privateKey),
	}
}

// Address returns the signing address
func (c *Client) Address() common.Address {
	return c.address
}

// ChainID returns the chain ID the client is bound to
func (c *Client) ChainID() int64 {
	return c.chainID.Int64()
}

// SendTransaction fills in nonce, gas and fees, signs the transaction with
// the bound key and broadcasts it. Returns the transaction hash.
func (c *Client) SendTransaction(ctx context.Context, params TxParams) (string, error) {
	nonce, err := c.backend.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	msg := ethereum.CallMsg{
		From:  c.address,
		To:    &params.To,
		Value: params.Value,
		Data:  params.Data,
	}
	gas, err := c.backend.EstimateGas(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to estimate gas: %w", err)
	}
	// Add 20% buffer for safety
	gas = gas * 120 / 100

	tx, err := c.buildTransaction(ctx, nonce, gas, params)
	if err != nil {
		return "", err
	}

	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return signedTx.Hash().Hex(), nil
}

// buildTransaction prefers EIP-1559 fees and falls back to a legacy
// transaction when the chain does not report a base fee.
func (c *Client) buildTransaction(ctx context.Context, nonce, gas uint64, params TxParams) (*types.Transaction, error) {
	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	if header.BaseFee == nil {
		gasPrice, err := c.backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &params.To,
			Value:    params.Value,
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     params.Data,
		}), nil
	}

	tipCap, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}

	// fee cap = 2 * base fee + tip
	feeCap := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(2)),
		tipCap,
	)

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        &params.To,
		Value:     params.Value,
		Gas:       gas,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Data:      params.Data,
	}), nil
}

// SignTypedData signs EIP-712 typed data given as raw JSON
func (c *Client) SignTypedData(_ context.Context, raw json.RawMessage) (string, error) {
	hash, err := encodeTypedData(raw)
	if err != nil {
		return "", fmt.Errorf("failed to encode typed data: %w", err)
	}

	signature, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}

	normalizeV(signature)
	return formatSignature(signature), nil
}

// PersonalSign signs a message with the EIP-191 personal-message prefix
func (c *Client) PersonalSign(_ context.Context, data []byte) (string, error) {
	hash := accounts.TextHash(data)

	signature, err := crypto.Sign(hash, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}

	normalizeV(signature)
	return formatSignature(signature), nil
}

// Close closes the underlying RPC connection
func (c *Client) Close() {
	c.backend.Close()
}

// encodeTypedData encodes EIP-712 typed data and returns its hash
func encodeTypedData(raw json.RawMessage) ([]byte, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into apitypes.TypedData: %w", err)
	}

	domainSeparator, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// EIP-712 final hash: keccak256("\x19\x01"  domainSeparator  hashStruct(message))
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", domainSeparator, typedDataHash))
	return crypto.Keccak256(rawData), nil
}

// normalizeV adjusts the recovery byte for Ethereum compatibility (27 or 28)
func normalizeV(signature []byte) {
	if len(signature) == 65 && (signature[64] == 0 || signature[64] == 1) {
		signature[64] += 27
	}
}

// formatSignature formats a signature as a hex-encoded string with 0x prefix
func formatSignature(signature []byte) string {
	return "0x" + hex.EncodeToString(signature)
}
