// Package crypto provides encryption of source connection secrets and keyed
// pseudonyms for anonymized employee data.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the encryption key is empty.
	ErrInvalidKey = errors.New("invalid encryption key: must not be empty")
	// ErrDecryptionFailed is returned when decryption fails due to invalid ciphertext or wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// deriveKey turns the configured PROJECT_CREDENTIALS_KEY into 32 bytes.
// A base64 value decoding to exactly 32 bytes is used directly; anything
// else is treated as a passphrase and hashed with SHA-256.
func deriveKey(keyInput string) ([]byte, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}
	if decoded, err := base64.StdEncoding.DecodeString(keyInput); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(keyInput))
	return sum[:], nil
}

// CredentialEncryptor seals directory provider secrets (API tokens, client
// secrets) with AES-256-GCM before they are stored with a source connection.
type CredentialEncryptor struct {
	gcm cipher.AEAD
}

// NewCredentialEncryptor creates an encryptor from the configured key.
func NewCredentialEncryptor(keyInput string) (*CredentialEncryptor, error) {
	key, err := deriveKey(keyInput)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &CredentialEncryptor{gcm: gcm}, nil
}

// Encrypt returns base64(nonce || ciphertext || tag).
// Empty strings are returned as-is.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Empty strings are returned as-is.
func (e *CredentialEncryptor) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}
	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize+e.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

// SecretKeys lists the connection config entries that are stored encrypted.
// Uploaded CSV payloads carry personal data and are sealed as well.
var SecretKeys = []string{"api_token", "client_secret", "bot_token", "refresh_token", "content", "content_base64"}

// SealConfig returns a copy of config with every secret entry encrypted.
func (e *CredentialEncryptor) SealConfig(config map[string]any) (map[string]any, error) {
	return e.transformSecrets(config, e.Encrypt)
}

// OpenConfig returns a copy of config with every secret entry decrypted.
func (e *CredentialEncryptor) OpenConfig(config map[string]any) (map[string]any, error) {
	return e.transformSecrets(config, e.Decrypt)
}

func (e *CredentialEncryptor) transformSecrets(config map[string]any, fn func(string) (string, error)) (map[string]any, error) {
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = v
	}
	for _, key := range SecretKeys {
		s, ok := out[key].(string)
		if !ok {
			continue
		}
		transformed, err := fn(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = transformed
	}
	return out, nil
}
