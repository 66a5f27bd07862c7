package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"strings"
)

// encryptedPrefix marks values stored through EncryptString so legacy
// plaintext columns can be told apart.
const encryptedPrefix = "enc:v1:"

func encryptionKey() ([]byte, error) {
	key := os.Getenv("DATA_ENCRYPTION_KEY")
	if len(key) != 32 {
		return nil, errors.New("DATA_ENCRYPTION_KEY must be exactly 32 characters")
	}
	return []byte(key), nil
}

// Encrypt encrypts plaintext with AES-256-GCM and returns base64(nonce|ciphertext).
func Encrypt(plaintext []byte) (string, error) {
	key, err := encryptionKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(cryptoText string) ([]byte, error) {
	key, err := encryptionKey()
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(cryptoText)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix)
}

// EncryptString is Encrypt plus the storage prefix.
func EncryptString(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	out, err := Encrypt([]byte(plain))
	if err != nil {
		return "", err
	}
	return encryptedPrefix + out, nil
}

// DecryptString accepts both prefixed ciphertext and legacy plaintext.
func DecryptString(stored string) (string, error) {
	if !IsEncrypted(stored) {
		return stored, nil
	}
	plain, err := Decrypt(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
