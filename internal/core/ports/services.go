package ports

import (
	"context"
	"time"

	"qr-transfer-authorizer/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenCodec encrypts and decrypts QR payloads with per-transfer symmetric
// material, and mints that material.
type TokenCodec interface {
	// GenerateKey returns a fresh random 256-bit key, hex-encoded.
	GenerateKey() (string, error)
	// GenerateIV returns a fresh random block-size IV, hex-encoded.
	GenerateIV() (string, error)
	// Encrypt serializes the payload and seals it under the key/IV pair,
	// returning a transport-safe hex blob.
	Encrypt(payload *domain.QRPayload, keyHex, ivHex string) (string, error)
	// Decrypt is the inverse. It fails closed: any blob not produced
	// under exactly this key/IV pair is rejected outright.
	Decrypt(blob, keyHex, ivHex string) (*domain.QRPayload, error)
}

// HashService handles OTP code hashing with constant-time verification.
type HashService interface {
	Hash(code string) (string, error)
	Verify(code string, hash string) (bool, error)
}

// QRToken is a minted QR artifact: the encrypted blob, its rendered image
// and the validity window stamped into the payload.
type QRToken struct {
	Blob      string
	Image     []byte
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// QRService builds and validates the two QR payload types.
type QRService interface {
	// Generate stamps the payload with the current time, an expiry
	// window derived from qrType and a fresh nonce, encrypts it and
	// renders the scannable image.
	Generate(payload domain.QRPayload, keyHex, ivHex string, qrType domain.QRType) (*QRToken, error)
	// Validate decrypts the blob and checks structural completeness.
	Validate(blob, keyHex, ivHex string) (*domain.QRPayload, error)
	// IsExpired compares the payload expiry against the current time.
	IsExpired(payload *domain.QRPayload) bool
	// RemainingSeconds returns the non-negative remaining validity.
	RemainingSeconds(payload *domain.QRPayload) int64
}

// OTPService generates, dispatches and verifies one-time codes.
type OTPService interface {
	// Send mints a 6-digit code bound to (phone, purpose, transfer),
	// invalidating any prior unverified codes for the phone first, and
	// dispatches it out-of-band. Delivery failure does not undo the send.
	Send(ctx context.Context, phone string, purpose domain.OTPPurpose, transferID *uuid.UUID) (time.Time, error)
	// Verify checks the presented code against the active record,
	// incrementing the attempt counter on mismatch.
	Verify(ctx context.Context, phone, code string, purpose domain.OTPPurpose, transferID *uuid.UUID) error
	// Invalidate soft-invalidates every unverified code for the phone.
	Invalidate(ctx context.Context, phone string) error
}

// ScanGuard enforces single-shot presentation of QR tokens across
// instances: a nonce can be claimed exactly once within its TTL.
type ScanGuard interface {
	CheckAndSet(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	// Release drops a claim so the nonce can be presented again, used
	// when the step that claimed it could not be committed.
	Release(ctx context.Context, nonce string) error
}

// RateLimiter bounds how often a keyed action may run within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Notification is a side-channel message to a user.
type Notification struct {
	Title    string
	Message  string
	Category string
	Priority string
	DeepLink string
}

// NotificationService delivers in-app notifications, fire-and-forget.
type NotificationService interface {
	Notify(ctx context.Context, recipientID uuid.UUID, n Notification)
}

// SMSService delivers text messages, fire-and-forget. The returned flag
// only records that delivery was attempted.
type SMSService interface {
	Send(ctx context.Context, phone, message string) bool
}

// AuthTokenService validates bearer tokens issued by the external identity
// provider and identifies the calling user.
type AuthTokenService interface {
	Generate(userID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (uuid.UUID, error)
}

// --- Orchestration port ---

// InitiateRequest holds validated input for starting a transfer.
type InitiateRequest struct {
	SenderID      uuid.UUID
	ReceiverPhone string
	Amount        decimal.Decimal
	Currency      string
	Description   *string
}

// InitiateResult is the public outcome of a successful initiation.
type InitiateResult struct {
	Transfer  *domain.Transfer
	QR1Image  []byte
	ExpiresAt time.Time
}

// QR2Result is the public outcome of a successful QR2 generation.
type QR2Result struct {
	Transfer  *domain.Transfer
	QR2Image  []byte
	ExpiresAt time.Time
}

// TransferService sequences the authorization protocol: every operation
// authenticates upstream, authorizes the caller's role here, runs the state
// machine and persists only after all preconditions pass.
type TransferService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	ScanQR1(ctx context.Context, callerID uuid.UUID, blob string) (*domain.Transfer, error)
	GenerateQR2(ctx context.Context, callerID, transferID uuid.UUID) (*QR2Result, error)
	ScanQR2(ctx context.Context, callerID uuid.UUID, blob string) (*domain.Transfer, error)
	SendOTP(ctx context.Context, callerID, transferID uuid.UUID) (time.Time, error)
	VerifyOTP(ctx context.Context, callerID, transferID uuid.UUID, code string) (*domain.Transfer, error)
	Complete(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error)
	Cancel(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error)
	Get(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error)
}
