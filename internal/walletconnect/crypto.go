package walletconnect

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// Envelope type 0: symmetric-key sealed payload, laid out as
// [type:1][nonce:12][ciphertext] and base64-encoded for the relay.
const envelopeType0 = byte(0)

// keyPair is an X25519 key pair used for session key agreement.
type keyPair struct {
	privateKey [32]byte
	publicKey  [32]byte
}

// generateKeyPair creates a fresh X25519 key pair.
func generateKeyPair() (*keyPair, error) {
	var kp keyPair
	if _, err := io.ReadFull(rand.Reader, kp.privateKey[:]); err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}

	publicKey, err := curve25519.X25519(kp.privateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.publicKey[:], publicKey)

	return &kp, nil
}

// PublicKeyHex returns the hex encoding of the public key.
func (kp *keyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.publicKey[:])
}

// deriveSymKey performs X25519 key agreement with the peer's public key and
// expands the shared secret into a 32-byte symmetric key with HKDF-SHA256.
func deriveSymKey(kp *keyPair, peerPublicKeyHex string) ([]byte, error) {
	peerPublicKey, err := hex.DecodeString(peerPublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}
	if len(peerPublicKey) != 32 {
		return nil, fmt.Errorf("invalid peer public key: expected 32 bytes, got %d", len(peerPublicKey))
	}

	sharedSecret, err := curve25519.X25519(kp.privateKey[:], peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}

	symKey := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, sharedSecret, nil, nil)
	if _, err := io.ReadFull(reader, symKey); err != nil {
		return nil, fmt.Errorf("failed to expand shared secret: %w", err)
	}

	return symKey, nil
}

// topicFromKey derives the session topic from a symmetric key.
func topicFromKey(symKey []byte) string {
	digest := sha256.Sum256(symKey)
	return hex.EncodeToString(digest[:])
}

// seal encrypts plaintext into a base64 type-0 envelope.
func seal(symKey, plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	envelope := make([]byte, 0, 1+len(nonce)+len(plaintext)+aead.Overhead())
	envelope = append(envelope, envelopeType0)
	envelope = append(envelope, nonce...)
	envelope = aead.Seal(envelope, nonce, plaintext, nil)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// open decrypts a base64 type-0 envelope.
func open(symKey []byte, message string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(message)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}

	aead, err := chacha20poly1305.New(symKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	if len(envelope) < 1+aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(envelope))
	}
	if envelope[0] != envelopeType0 {
		return nil, fmt.Errorf("unsupported envelope type %d", envelope[0])
	}

	nonce := envelope[1 : 1+aead.NonceSize()]
	ciphertext := envelope[1+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt envelope: %w", err)
	}

	return plaintext, nil
}
