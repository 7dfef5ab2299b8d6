package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QRType tags which of the two sequential QR tokens a payload belongs to.
type QRType string

const (
	QRType1 QRType = "qr1"
	QRType2 QRType = "qr2"
)

// Display returns the token name used in messages ("QR1"/"QR2").
func (q QRType) Display() string {
	if q == QRType2 {
		return "QR2"
	}
	return "QR1"
}

// QRPayload is the structured content encrypted inside a QR blob. It is
// ephemeral: its only persisted representation is the encrypted string on
// the transfer row.
type QRPayload struct {
	TransferID uuid.UUID       `json:"transfer_id"`
	Type       QRType          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	SenderID   uuid.UUID       `json:"sender_id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	IssuedAt   int64           `json:"issued_at"`   // unix seconds
	ExpiresAt  int64           `json:"expires_at"`  // unix seconds
	Nonce      string          `json:"nonce"`
}
