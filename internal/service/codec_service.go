package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"qr-transfer-authorizer/internal/core/domain"
)

const (
	codecKeyLen = 32 // AES-256
	codecIVLen  = aes.BlockSize
)

// AESTokenCodec implements ports.TokenCodec using AES-256-GCM with
// per-transfer key material. The transfer's IV is bound into the ciphertext
// as associated data, so a blob only decrypts under exactly the key/IV pair
// minted at initiation; the GCM nonce itself is random per encryption and
// travels with the blob.
type AESTokenCodec struct{}

// NewAESTokenCodec creates a new AES-256-GCM token codec.
func NewAESTokenCodec() *AESTokenCodec {
	return &AESTokenCodec{}
}

// GenerateKey returns a fresh random 32-byte key, hex-encoded.
func (c *AESTokenCodec) GenerateKey() (string, error) {
	key := make([]byte, codecKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateIV returns a fresh random 16-byte IV, hex-encoded.
func (c *AESTokenCodec) GenerateIV() (string, error) {
	iv := make([]byte, codecIVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}
	return hex.EncodeToString(iv), nil
}

// Encrypt serializes the payload as JSON and seals it with AES-256-GCM.
// Returns hex-encoded string: nonce(12) + ciphertext.
func (c *AESTokenCodec) Encrypt(payload *domain.QRPayload, keyHex, ivHex string) (string, error) {
	aesGCM, iv, err := c.open(keyHex, ivHex)
	if err != nil {
		return "", err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := aesGCM.Seal(nonce, nonce, plaintext, iv)
	return hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a hex-encoded blob. Any tampering, truncation or key/IV
// mismatch fails the GCM tag check and nothing is decoded.
func (c *AESTokenCodec) Decrypt(blob, keyHex, ivHex string) (*domain.QRPayload, error) {
	aesGCM, iv, err := c.open(keyHex, ivHex)
	if err != nil {
		return nil, err
	}

	ciphertext, err := hex.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding blob: %w", err)
	}

	nonceSize := aesGCM.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("blob too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, iv)
	if err != nil {
		return nil, fmt.Errorf("decrypting blob: %w", err)
	}

	payload := &domain.QRPayload{}
	if err := json.Unmarshal(plaintext, payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	return payload, nil
}

// open decodes the key/IV pair and builds the GCM instance.
func (c *AESTokenCodec) open(keyHex, ivHex string) (cipher.AEAD, []byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(key) != codecKeyLen {
		return nil, nil, fmt.Errorf("key must be %d bytes, got %d", codecKeyLen, len(key))
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding IV: %w", err)
	}
	if len(iv) != codecIVLen {
		return nil, nil, fmt.Errorf("IV must be %d bytes, got %d", codecIVLen, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	return aesGCM, iv, nil
}
