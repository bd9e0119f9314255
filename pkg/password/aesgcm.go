package password

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const gcmNonceSize = 12

// AESGCMHasher is the reversible strategy: AES-256-GCM with a process-wide key.
// The stored secret is base64(nonce || ciphertext). Used only when the product
// must return the original password to provisioning flows.
type AESGCMHasher struct {
	key []byte
}

// NewAESGCMHasher builds a hasher from a 64-character hex key (32 bytes).
func NewAESGCMHasher(hexKey string) (*AESGCMHasher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex characters), got %d bytes", len(key))
	}

	return &AESGCMHasher{key: key}, nil
}

// Hash encrypts plaintext under a fresh random nonce and prepends the nonce to
// the ciphertext before base64-encoding the payload.
func (h *AESGCMHasher) Hash(plaintext string) (string, error) {
	block, err := aes.NewCipher(h.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Verify decrypts the stored secret and compares it to plaintext in constant
// time. Tampered or malformed secrets verify as false.
func (h *AESGCMHasher) Verify(plaintext, secret string) bool {
	recovered, err := h.Decrypt(secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(recovered), []byte(plaintext)) == 1
}

// Decrypt recovers the original password. It fails closed on GCM authentication
// failure and on payloads too short to contain a nonce.
func (h *AESGCMHasher) Decrypt(secret string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("malformed encrypted payload: %w", err)
	}

	if len(payload) < gcmNonceSize {
		return "", fmt.Errorf("encrypted payload too short to contain a nonce")
	}

	block, err := aes.NewCipher(h.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create gcm: %w", err)
	}

	nonce, ciphertext := payload[:gcmNonceSize], payload[gcmNonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt payload: %w", err)
	}

	return string(plaintext), nil
}
