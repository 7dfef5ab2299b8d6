package dto

import (
	"time"

	"qr-transfer-authorizer/internal/core/domain"
)

// InitiateTransferRequest is the request body for starting a transfer.
type InitiateTransferRequest struct {
	ReceiverPhone string  `json:"receiver_phone" binding:"required,phone"`
	Amount        string  `json:"amount" binding:"required"`
	Currency      string  `json:"currency" binding:"required,len=3,uppercase"`
	Description   *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// ScanRequest is the request body for both scan steps.
type ScanRequest struct {
	QRBlob string `json:"qr_blob" binding:"required"`
}

// VerifyOTPRequest is the request body for submitting the one-time code.
type VerifyOTPRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// TransferResponse is the public transfer snapshot. Crypto material and raw
// token blobs never appear here.
type TransferResponse struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	SenderID    string     `json:"sender_id"`
	ReceiverID  string     `json:"receiver_id"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	NextAction  *string    `json:"next_action,omitempty"`
	InitiatedAt time.Time  `json:"initiated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// InitiateTransferResponse carries the snapshot plus the first QR image.
type InitiateTransferResponse struct {
	Transfer     TransferResponse `json:"transfer"`
	QR1Image     []byte           `json:"qr1_image"` // base64 PNG
	QR1ExpiresAt time.Time        `json:"qr1_expires_at"`
}

// QR2Response carries the snapshot plus the second QR image.
type QR2Response struct {
	Transfer     TransferResponse `json:"transfer"`
	QR2Image     []byte           `json:"qr2_image"` // base64 PNG
	QR2ExpiresAt time.Time        `json:"qr2_expires_at"`
}

// OTPSentResponse reports when the dispatched code lapses.
type OTPSentResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// ToTransferResponse maps the domain entity to its public snapshot.
func ToTransferResponse(t *domain.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:          t.ID.String(),
		Number:      t.Number,
		SenderID:    t.SenderID.String(),
		ReceiverID:  t.ReceiverID.String(),
		Amount:      t.Amount.String(),
		Currency:    t.Currency,
		Description: t.Description,
		Status:      string(t.Status),
		InitiatedAt: t.InitiatedAt,
		CompletedAt: t.CompletedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if next, ok := domain.NextExpected(t.Status); ok {
		s := string(next)
		resp.NextAction = &s
	}
	return resp
}
