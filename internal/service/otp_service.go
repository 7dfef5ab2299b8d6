package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"qr-transfer-authorizer/internal/core/domain"
	"qr-transfer-authorizer/internal/core/ports"
	"qr-transfer-authorizer/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	otpCodeMin = 100000
	otpCodeMax = 999999
)

// OTPServiceImpl implements ports.OTPService.
type OTPServiceImpl struct {
	otpRepo     ports.OTPRepository
	transactor  ports.DBTransactor
	hashSvc     ports.HashService
	smsSvc      ports.SMSService
	limiter     ports.RateLimiter
	ttl         time.Duration
	maxAttempts int
	log         zerolog.Logger
	now         func() time.Time
}

// NewOTPService creates a new OTPServiceImpl. A non-positive maxAttempts
// falls back to domain.MaxOTPAttempts.
func NewOTPService(
	otpRepo ports.OTPRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	smsSvc ports.SMSService,
	limiter ports.RateLimiter,
	ttl time.Duration,
	maxAttempts int,
	log zerolog.Logger,
) *OTPServiceImpl {
	return &OTPServiceImpl{
		otpRepo:     otpRepo,
		transactor:  transactor,
		hashSvc:     hashSvc,
		smsSvc:      smsSvc,
		limiter:     limiter,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Send mints a fresh 6-digit code for (phone, purpose, transfer). Superseded
// unverified codes for the phone are invalidated in the same database
// transaction, so at most one code is ever active per phone. SMS dispatch is
// decoupled: a delivery failure is logged but the code stays sent.
func (s *OTPServiceImpl) Send(ctx context.Context, phone string, purpose domain.OTPPurpose, transferID *uuid.UUID) (time.Time, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, "otp:"+phone)
		if err != nil {
			s.log.Warn().Err(err).Str("phone", phone).Msg("otp rate limit check failed, allowing send")
		} else if !allowed {
			return time.Time{}, apperror.ErrRateLimitExceeded()
		}
	}

	code, err := generateOTPCode()
	if err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("generating otp code: %w", err))
	}

	codeHash, err := s.hashSvc.Hash(code)
	if err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("hashing otp code: %w", err))
	}

	now := s.now().UTC()
	rec := &domain.OTPRecord{
		ID:         uuid.New(),
		Phone:      phone,
		CodeHash:   codeHash,
		Purpose:    purpose,
		TransferID: transferID,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// One active code per phone: retire everything unverified first.
	if err := s.otpRepo.Invalidate(ctx, dbTx, phone); err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("invalidate prior otps: %w", err))
	}
	if err := s.otpRepo.Create(ctx, dbTx, rec); err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("create otp record: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	message := fmt.Sprintf("Your transfer verification code is %s. It expires in %d minutes.",
		code, int(s.ttl.Minutes()))
	if delivered := s.smsSvc.Send(ctx, phone, message); !delivered {
		s.log.Warn().Str("phone", phone).Msg("otp sms dispatch failed, code remains active")
	}

	s.log.Info().
		Str("otp_id", rec.ID.String()).
		Str("purpose", string(purpose)).
		Time("expires_at", rec.ExpiresAt).
		Msg("otp sent")

	return rec.ExpiresAt, nil
}

// Verify checks the presented code against the active record for the key
// tuple. A mismatch increments the attempt counter on that record; wrong
// codes and already-verified codes are indistinguishable to the caller.
func (s *OTPServiceImpl) Verify(ctx context.Context, phone, code string, purpose domain.OTPPurpose, transferID *uuid.UUID) error {
	rec, err := s.otpRepo.GetLatest(ctx, phone, purpose, transferID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lookup otp record: %w", err))
	}
	if rec == nil {
		return apperror.ErrOTPNotFound()
	}

	if rec.AttemptsExhausted(s.maxAttempts) {
		return apperror.ErrMaxAttemptsExceeded()
	}
	if rec.IsExpired(s.now()) {
		return apperror.ErrOTPExpired()
	}

	match, err := s.hashSvc.Verify(code, rec.CodeHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify otp hash: %w", err))
	}
	if !match {
		rec.Attempts++
		if err := s.otpRepo.Update(ctx, rec); err != nil {
			return apperror.InternalError(fmt.Errorf("record failed attempt: %w", err))
		}
		if rec.AttemptsExhausted(s.maxAttempts) {
			return apperror.ErrMaxAttemptsExceeded()
		}
		return apperror.ErrOTPNotFound()
	}

	now := s.now().UTC()
	rec.Verified = true
	rec.VerifiedAt = &now
	if err := s.otpRepo.Update(ctx, rec); err != nil {
		return apperror.InternalError(fmt.Errorf("mark otp verified: %w", err))
	}

	s.log.Info().Str("otp_id", rec.ID.String()).Msg("otp verified")
	return nil
}

// Invalidate soft-invalidates every unverified code for the phone.
func (s *OTPServiceImpl) Invalidate(ctx context.Context, phone string) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.otpRepo.Invalidate(ctx, dbTx, phone); err != nil {
		return apperror.InternalError(fmt.Errorf("invalidate otps: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// generateOTPCode returns a uniform random 6-digit numeric code.
func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpCodeMax-otpCodeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpCodeMin), nil
}
