package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// DeriveConversationKey deterministically derives a secp256k1 private key
// from a conversation identifier. The keccak256 hash of the identifier is
// used directly as the private scalar, so the same conversation always maps
// to the same key and keys for different conversations are computationally
// independent.
//
// The conversation identifier itself must therefore be treated as sensitive.
func DeriveConversationKey(conversationID string) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id must not be empty")
	}

	hash := crypto.Keccak256([]byte(conversationID))

	// ToECDSA rejects scalars outside the curve order rather than clamping,
	// so a pathological hash never silently yields a weak key.
	privateKey, err := crypto.ToECDSA(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to derive private key: %w", err)
	}

	return privateKey, nil
}

// GetEthereumAddress derives the Ethereum address from a private key
func GetEthereumAddress(privateKey *ecdsa.PrivateKey) common.Address {
	publicKey := privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		panic("failed to cast public key to ECDSA")
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA)
}
