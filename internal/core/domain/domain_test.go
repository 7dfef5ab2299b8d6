package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfer_IsParty(t *testing.T) {
	tr := newTransfer(StatusInitiated)

	assert.True(t, tr.IsParty(tr.SenderID, RoleSender))
	assert.True(t, tr.IsParty(tr.ReceiverID, RoleReceiver))
	assert.False(t, tr.IsParty(tr.SenderID, RoleReceiver))
	assert.False(t, tr.IsParty(uuid.New(), RoleSender))
	assert.False(t, tr.IsParty(tr.SenderID, Role("auditor")))
}

func TestTransfer_CryptoMaterialNeverSerialized(t *testing.T) {
	tr := newTransfer(StatusInitiated)
	tr.KeyHex = "deadbeef"
	tr.IVHex = "cafebabe"
	tr.QR1Blob = "encrypted-blob"
	tr.QR1Image = []byte{0x89, 0x50}

	raw, err := json.Marshal(tr)
	require.NoError(t, err)

	s := string(raw)
	assert.NotContains(t, s, "deadbeef")
	assert.NotContains(t, s, "cafebabe")
	assert.NotContains(t, s, "encrypted-blob")
}

func TestOTPRecord_IsExpired(t *testing.T) {
	now := time.Now()
	rec := &OTPRecord{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, rec.IsExpired(now))
	assert.False(t, rec.IsExpired(now.Add(4*time.Minute)))
	assert.True(t, rec.IsExpired(now.Add(6*time.Minute)))
}

func TestOTPRecord_AttemptsExhausted(t *testing.T) {
	rec := &OTPRecord{}
	for i := 0; i < MaxOTPAttempts; i++ {
		assert.False(t, rec.AttemptsExhausted(MaxOTPAttempts))
		rec.Attempts++
	}
	assert.True(t, rec.AttemptsExhausted(MaxOTPAttempts))

	// custom ceiling
	rec = &OTPRecord{Attempts: 5}
	assert.False(t, rec.AttemptsExhausted(6))
	assert.True(t, rec.AttemptsExhausted(5))

	// non-positive falls back to the default
	rec = &OTPRecord{Attempts: MaxOTPAttempts}
	assert.True(t, rec.AttemptsExhausted(0))
}

func TestQRType_Display(t *testing.T) {
	assert.Equal(t, "QR1", QRType1.Display())
	assert.Equal(t, "QR2", QRType2.Display())
}
