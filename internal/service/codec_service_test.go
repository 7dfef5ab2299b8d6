package service

import (
	"encoding/hex"
	"testing"
	"time"

	"qr-transfer-authorizer/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayload() *domain.QRPayload {
	now := time.Now()
	return &domain.QRPayload{
		TransferID: uuid.New(),
		Type:       domain.QRType1,
		Amount:     decimal.RequireFromString("500.00"),
		SenderID:   uuid.New(),
		ReceiverID: uuid.New(),
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(15 * time.Minute).Unix(),
		Nonce:      "nonce-123",
	}
}

func mustMaterial(t *testing.T, c *AESTokenCodec) (string, string) {
	t.Helper()
	key, err := c.GenerateKey()
	require.NoError(t, err)
	iv, err := c.GenerateIV()
	require.NoError(t, err)
	return key, iv
}

func TestAESTokenCodec_GenerateKey(t *testing.T) {
	c := NewAESTokenCodec()

	k1, err := c.GenerateKey()
	require.NoError(t, err)
	k2, err := c.GenerateKey()
	require.NoError(t, err)

	raw, err := hex.DecodeString(k1)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.NotEqual(t, k1, k2)
}

func TestAESTokenCodec_GenerateIV(t *testing.T) {
	c := NewAESTokenCodec()

	iv, err := c.GenerateIV()
	require.NoError(t, err)

	raw, err := hex.DecodeString(iv)
	require.NoError(t, err)
	assert.Len(t, raw, 16)
}

func TestAESTokenCodec_RoundTrip(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)
	payload := testPayload()

	blob, err := c.Encrypt(payload, key, iv)
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	decoded, err := c.Decrypt(blob, key, iv)
	require.NoError(t, err)
	assert.Equal(t, payload.TransferID, decoded.TransferID)
	assert.Equal(t, payload.Type, decoded.Type)
	assert.True(t, payload.Amount.Equal(decoded.Amount))
	assert.Equal(t, payload.SenderID, decoded.SenderID)
	assert.Equal(t, payload.ReceiverID, decoded.ReceiverID)
	assert.Equal(t, payload.Nonce, decoded.Nonce)
}

func TestAESTokenCodec_NonDeterministicCiphertext(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)
	payload := testPayload()

	b1, err := c.Encrypt(payload, key, iv)
	require.NoError(t, err)
	b2, err := c.Encrypt(payload, key, iv)
	require.NoError(t, err)
	assert.NotEqual(t, b1, b2, "random nonce must yield distinct blobs")
}

func TestAESTokenCodec_WrongKeyFailsClosed(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)
	otherKey, _ := mustMaterial(t, c)

	blob, err := c.Encrypt(testPayload(), key, iv)
	require.NoError(t, err)

	decoded, err := c.Decrypt(blob, otherKey, iv)
	assert.Error(t, err)
	assert.Nil(t, decoded, "must not partially decode")
}

func TestAESTokenCodec_WrongIVFailsClosed(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)
	otherIV, err := c.GenerateIV()
	require.NoError(t, err)

	blob, err := c.Encrypt(testPayload(), key, iv)
	require.NoError(t, err)

	// The IV is authenticated data: a different IV must break the tag.
	_, err = c.Decrypt(blob, key, otherIV)
	assert.Error(t, err)
}

func TestAESTokenCodec_TamperedBlob(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)

	blob, err := c.Encrypt(testPayload(), key, iv)
	require.NoError(t, err)

	tampered := []byte(blob)
	if tampered[len(tampered)-1] == 'a' {
		tampered[len(tampered)-1] = 'b'
	} else {
		tampered[len(tampered)-1] = 'a'
	}
	_, err = c.Decrypt(string(tampered), key, iv)
	assert.Error(t, err)
}

func TestAESTokenCodec_StructurallyInvalidBlobs(t *testing.T) {
	c := NewAESTokenCodec()
	key, iv := mustMaterial(t, c)

	for _, bad := range []string{"", "zz-not-hex", "abcd"} {
		_, err := c.Decrypt(bad, key, iv)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestAESTokenCodec_BadMaterial(t *testing.T) {
	c := NewAESTokenCodec()

	_, err := c.Encrypt(testPayload(), "shortkey", "00000000000000000000000000000000")
	assert.Error(t, err)

	key, _ := c.GenerateKey()
	_, err = c.Encrypt(testPayload(), key, "bad-iv")
	assert.Error(t, err)
}
