package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

var (
	ErrInvalidKey        = errors.New("crypto: invalid encryption key")
	ErrEncryptionFailed  = errors.New("crypto: encryption failed")
	ErrDecryptionFailed  = errors.New("crypto: decryption failed")
	ErrInvalidCipherText = errors.New("crypto: invalid cipher text")
)

// sealedPrefix marks values produced by Sealer.Seal.
const sealedPrefix = "enc:"

var secretMarkers = []string{"password", "secret", "token", "credential", "keytab_pass"}

// deriveKey creates a 32-byte key from any string using SHA-256
func deriveKey(key string) []byte {
	hash := sha256.Sum256([]byte(key))
	return hash[:]
}

func newGCM(key string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(key))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts plaintext using AES-256-GCM
func Encrypt(plainText string, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrEncryptionFailed
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryptionFailed
	}

	cipherText := gcm.Seal(nonce, nonce, []byte(plainText), nil)
	return base64.StdEncoding.EncodeToString(cipherText), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM
func Decrypt(cipherText string, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	data, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return "", ErrInvalidCipherText
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCipherText
	}
	nonce, cipherData := data[:nonceSize], data[nonceSize:]
	plainText, err := gcm.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plainText), nil
}

// IsSecret reports whether a config property name holds a credential.
func IsSecret(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range secretMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Sealer encrypts secret config values before they are stored. A Sealer with
// an empty key passes values through unchanged.
type Sealer struct {
	key string
}

func NewSealer(key string) *Sealer {
	return &Sealer{key: key}
}

func (s *Sealer) Enabled() bool {
	return s != nil && s.key != ""
}

// Seal encrypts value and tags it so Open can tell sealed from plain values.
func (s *Sealer) Seal(value string) (string, error) {
	if !s.Enabled() || value == "" || strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	enc, err := Encrypt(value, s.key)
	if err != nil {
		return "", err
	}
	return sealedPrefix + enc, nil
}

// Open reverses Seal. Untagged values are returned as they are.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if !s.Enabled() {
		return "", ErrInvalidKey
	}
	return Decrypt(strings.TrimPrefix(value, sealedPrefix), s.key)
}
