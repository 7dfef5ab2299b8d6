package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus represents the lifecycle state of a transfer.
type TransferStatus string

const (
	StatusInitiated   TransferStatus = "INITIATED"
	StatusQR1Scanned  TransferStatus = "QR1_SCANNED"
	StatusQR2Generated TransferStatus = "QR2_GENERATED"
	StatusQR2Scanned  TransferStatus = "QR2_SCANNED"
	StatusOTPSent     TransferStatus = "OTP_SENT"
	StatusOTPVerified TransferStatus = "OTP_VERIFIED"
	StatusCompleted   TransferStatus = "COMPLETED"
	StatusFailed      TransferStatus = "FAILED"
	StatusCancelled   TransferStatus = "CANCELLED"
)

// Transfer is the central entity: a person-to-person payment claim that
// must pass four sequential proofs (QR1 scan, QR2 scan, OTP verification,
// explicit completion) before it is authorized.
type Transfer struct {
	ID     uuid.UUID `json:"id"`
	Number string    `json:"number"` // human-readable, unique, minted at creation

	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	CompanyID  *uuid.UUID `json:"company_id,omitempty"`

	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description *string         `json:"description,omitempty"`

	Status TransferStatus `json:"status"`

	// Symmetric material minted once at initiation and reused for both QR
	// payloads. Never serialized to clients.
	KeyHex string `json:"-"`
	IVHex  string `json:"-"`

	QR1Blob        string     `json:"-"`
	QR1Image       []byte     `json:"-"`
	QR1GeneratedAt *time.Time `json:"qr1_generated_at,omitempty"`
	QR1ExpiresAt   *time.Time `json:"qr1_expires_at,omitempty"`

	QR2Blob        string     `json:"-"`
	QR2Image       []byte     `json:"-"`
	QR2GeneratedAt *time.Time `json:"qr2_generated_at,omitempty"`
	QR2ExpiresAt   *time.Time `json:"qr2_expires_at,omitempty"`

	OTPSentAt     *time.Time `json:"otp_sent_at,omitempty"`
	OTPVerifiedAt *time.Time `json:"otp_verified_at,omitempty"`

	InitiatedAt time.Time  `json:"initiated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsTerminal returns true if the transfer is in a final state.
func (t *Transfer) IsTerminal() bool {
	return IsTerminal(t.Status)
}

// Role identifies which party of a transfer a caller must be for a step.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
)

// IsParty reports whether the caller holds the given role on this transfer.
func (t *Transfer) IsParty(callerID uuid.UUID, role Role) bool {
	switch role {
	case RoleSender:
		return callerID == t.SenderID
	case RoleReceiver:
		return callerID == t.ReceiverID
	default:
		return false
	}
}
