package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"qr-transfer-authorizer/internal/core/domain"
	"qr-transfer-authorizer/internal/core/ports"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const qrNonceLen = 16

// QRServiceImpl implements ports.QRService: it stamps, encrypts and renders
// the two QR payload types, and validates presented blobs.
type QRServiceImpl struct {
	codec     ports.TokenCodec
	qr1TTL    time.Duration
	qr2TTL    time.Duration
	imageSize int
	now       func() time.Time
}

// NewQRService creates a QR token service with the given validity windows.
func NewQRService(codec ports.TokenCodec, qr1TTL, qr2TTL time.Duration, imageSize int) *QRServiceImpl {
	return &QRServiceImpl{
		codec:     codec,
		qr1TTL:    qr1TTL,
		qr2TTL:    qr2TTL,
		imageSize: imageSize,
		now:       time.Now,
	}
}

// Generate stamps the payload with issue/expiry timestamps and a fresh
// nonce, encrypts it under the transfer's key/IV pair and renders the blob
// as a PNG QR image with high error correction.
func (s *QRServiceImpl) Generate(payload domain.QRPayload, keyHex, ivHex string, qrType domain.QRType) (*ports.QRToken, error) {
	ttl := s.qr1TTL
	if qrType == domain.QRType2 {
		ttl = s.qr2TTL
	}

	nonce := make([]byte, qrNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating QR nonce: %w", err)
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)

	payload.Type = qrType
	payload.IssuedAt = issuedAt.Unix()
	payload.ExpiresAt = expiresAt.Unix()
	payload.Nonce = hex.EncodeToString(nonce)

	blob, err := s.codec.Encrypt(&payload, keyHex, ivHex)
	if err != nil {
		return nil, fmt.Errorf("encrypting QR payload: %w", err)
	}

	image, err := qrcode.Encode(blob, qrcode.High, s.imageSize)
	if err != nil {
		return nil, fmt.Errorf("rendering QR image: %w", err)
	}

	return &ports.QRToken{
		Blob:      blob,
		Image:     image,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate decrypts a presented blob and checks structural completeness.
// Expiry is deliberately not checked here; callers decide what a stale
// token means for the transfer.
func (s *QRServiceImpl) Validate(blob, keyHex, ivHex string) (*domain.QRPayload, error) {
	payload, err := s.codec.Decrypt(blob, keyHex, ivHex)
	if err != nil {
		return nil, fmt.Errorf("decoding QR blob: %w", err)
	}

	if payload.TransferID == uuid.Nil {
		return nil, fmt.Errorf("QR payload missing transfer id")
	}
	if payload.Type != domain.QRType1 && payload.Type != domain.QRType2 {
		return nil, fmt.Errorf("QR payload has unknown type %q", payload.Type)
	}
	if payload.Amount.IsZero() || payload.Amount.IsNegative() {
		return nil, fmt.Errorf("QR payload missing amount")
	}
	if payload.Nonce == "" {
		return nil, fmt.Errorf("QR payload missing nonce")
	}

	return payload, nil
}

// IsExpired compares the payload expiry against the current time.
func (s *QRServiceImpl) IsExpired(payload *domain.QRPayload) bool {
	return s.now().Unix() > payload.ExpiresAt
}

// RemainingSeconds returns the non-negative remaining validity window.
func (s *QRServiceImpl) RemainingSeconds(payload *domain.QRPayload) int64 {
	remaining := payload.ExpiresAt - s.now().Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}
