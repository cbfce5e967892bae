// Package encryption provides AES-256-GCM encryption for secrets at
// rest. Keys are derived from an operator passphrase with argon2id; the
// salt travels with the ciphertext so decryption only needs the
// passphrase.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidKey is returned when the passphrase or key is invalid.
	ErrInvalidKey = errors.New("invalid encryption key")

	// ErrInvalidCiphertext is returned when the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrDecryptionFailed is returned when authentication fails, most
	// often a wrong passphrase or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Envelope layout: [version:1][salt:16][nonce:12][sealed]. The sealed
// part carries the 16-byte GCM tag.
const (
	envelopeVersion = 1
	saltSize        = 16
	nonceSize       = 12
	minEnvelopeSize = 1 + saltSize + nonceSize + 16
)

// argon2id parameters. Changing them requires a new envelope version.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = 32
)

// Engine encrypts and decrypts secret values with a passphrase-derived key.
type Engine struct {
	passphrase []byte
}

// NewEngine creates an engine from the operator passphrase.
func NewEngine(passphrase string) (*Engine, error) {
	if len(passphrase) < 8 {
		return nil, fmt.Errorf("%w: passphrase must be at least 8 characters", ErrInvalidKey)
	}
	return &Engine{passphrase: []byte(passphrase)}, nil
}

// deriveKey stretches the passphrase into an AES-256 key.
func (e *Engine) deriveKey(salt []byte) []byte {
	return argon2.IDKey(e.passphrase, salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypt seals plaintext and returns a base64 envelope. Each call uses
// a fresh salt and nonce, so equal plaintexts produce distinct output.
func (e *Engine) Encrypt(plaintext []byte) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	data := make([]byte, 0, 1+len(salt)+len(nonce)+len(sealed))
	data = append(data, envelopeVersion)
	data = append(data, salt...)
	data = append(data, nonce...)
	data = append(data, sealed...)

	return base64.StdEncoding.EncodeToString(data), nil
}

// Decrypt opens a base64 envelope produced by Encrypt.
func (e *Engine) Decrypt(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrInvalidCiphertext, err)
	}
	if len(data) < minEnvelopeSize {
		return nil, fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}
	if data[0] != envelopeVersion {
		return nil, fmt.Errorf("%w: unknown envelope version %d", ErrInvalidCiphertext, data[0])
	}

	salt := data[1 : 1+saltSize]
	nonce := data[1+saltSize : 1+saltSize+nonceSize]
	sealed := data[1+saltSize+nonceSize:]

	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// EncryptString encrypts a string value.
func (e *Engine) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return e.Encrypt([]byte(plaintext))
}

// DecryptString decrypts a string value.
func (e *Engine) DecryptString(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	plaintext, err := e.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// GeneratePassphrase generates a random passphrase suitable for the
// engine, returned as base64.
func GeneratePassphrase() (string, error) {
	raw := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
