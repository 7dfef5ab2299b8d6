package domain

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose tags what an OTP authorizes.
type OTPPurpose string

const (
	OTPPurposeTransfer OTPPurpose = "transfer_authorization"
)

// MaxOTPAttempts is the default verification attempt ceiling per record.
const MaxOTPAttempts = 3

// OTPRecord stores a dispatched one-time code. Only the hash of the code is
// ever persisted. Records are never deleted; superseded ones are
// soft-invalidated (marked verified) and the table accumulates as an audit
// trail.
type OTPRecord struct {
	ID         uuid.UUID  `json:"id"`
	Phone      string     `json:"phone"`
	CodeHash   string     `json:"-"`
	Purpose    OTPPurpose `json:"purpose"`
	TransferID *uuid.UUID `json:"transfer_id,omitempty"`
	Verified   bool       `json:"verified"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Attempts   int        `json:"attempts"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsExpired reports whether the record is past its expiry at the given time.
func (o *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// AttemptsExhausted reports whether the attempt ceiling has been reached.
// A non-positive limit falls back to MaxOTPAttempts.
func (o *OTPRecord) AttemptsExhausted(limit int) bool {
	if limit <= 0 {
		limit = MaxOTPAttempts
	}
	return o.Attempts >= limit
}
