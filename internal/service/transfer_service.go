package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"qr-transfer-authorizer/internal/core/domain"
	"qr-transfer-authorizer/internal/core/ports"
	"qr-transfer-authorizer/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransferServiceImpl implements ports.TransferService. Every operation
// follows the same shape: load, authorize the caller's role for this step,
// run the state machine, perform the step's side effect, persist with a
// status compare-and-swap, then notify. Nothing is persisted before all
// preconditions pass.
type TransferServiceImpl struct {
	transferRepo ports.TransferRepository
	userRepo     ports.UserRepository
	codec        ports.TokenCodec
	qrSvc        ports.QRService
	otpSvc       ports.OTPService
	scanGuard    ports.ScanGuard
	notifier     ports.NotificationService
	log          zerolog.Logger
	now          func() time.Time
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	transferRepo ports.TransferRepository,
	userRepo ports.UserRepository,
	codec ports.TokenCodec,
	qrSvc ports.QRService,
	otpSvc ports.OTPService,
	scanGuard ports.ScanGuard,
	notifier ports.NotificationService,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		transferRepo: transferRepo,
		userRepo:     userRepo,
		codec:        codec,
		qrSvc:        qrSvc,
		otpSvc:       otpSvc,
		scanGuard:    scanGuard,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// Initiate creates a transfer in INITIATED, mints the per-transfer key/IV
// pair and the first QR token, and notifies the receiver.
func (s *TransferServiceImpl) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.InitiateResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.Currency == "" {
		return nil, apperror.Validation("currency is required")
	}

	sender, err := s.userRepo.GetByID(ctx, req.SenderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if sender == nil {
		return nil, apperror.ErrNotFound("sender")
	}
	receiver, err := s.userRepo.GetByPhone(ctx, req.ReceiverPhone)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if receiver == nil {
		return nil, apperror.ErrNotFound("receiver")
	}
	if receiver.ID == sender.ID {
		return nil, apperror.Validation("sender and receiver must be different users")
	}

	keyHex, err := s.codec.GenerateKey()
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	ivHex, err := s.codec.GenerateIV()
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	now := s.now().UTC()
	transfer := &domain.Transfer{
		ID:          uuid.New(),
		SenderID:    sender.ID,
		ReceiverID:  receiver.ID,
		CompanyID:   sender.CompanyID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Status:      domain.StatusInitiated,
		KeyHex:      keyHex,
		IVHex:       ivHex,
		InitiatedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	transfer.Number, err = mintTransferNumber(now)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mint transfer number: %w", err))
	}

	token, err := s.qrSvc.Generate(domain.QRPayload{
		TransferID: transfer.ID,
		Amount:     transfer.Amount,
		SenderID:   transfer.SenderID,
		ReceiverID: transfer.ReceiverID,
	}, keyHex, ivHex, domain.QRType1)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	transfer.QR1Blob = token.Blob
	transfer.QR1Image = token.Image
	transfer.QR1GeneratedAt = &token.IssuedAt
	transfer.QR1ExpiresAt = &token.ExpiresAt

	if err := s.transferRepo.Create(ctx, transfer); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.notifier.Notify(ctx, receiver.ID, ports.Notification{
		Title:    "Incoming transfer",
		Message:  fmt.Sprintf("%s wants to send you %s %s. Scan their QR code to accept.", sender.Name, transfer.Amount.String(), transfer.Currency),
		Category: "transfer",
		Priority: "high",
		DeepLink: "transfer://" + transfer.ID.String(),
	})

	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("number", transfer.Number).
		Str("amount", transfer.Amount.String()).
		Msg("transfer initiated")

	return &ports.InitiateResult{
		Transfer:  transfer,
		QR1Image:  token.Image,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// ScanQR1 is the receiver's acknowledgment step: the presented blob must
// decrypt under the owning transfer's material, carry the qr1 tag, be inside
// its validity window and never have been presented before.
func (s *TransferServiceImpl) ScanQR1(ctx context.Context, callerID uuid.UUID, blob string) (*domain.Transfer, error) {
	transfer, payload, err := s.resolveScan(ctx, blob, domain.QRType1)
	if err != nil {
		return nil, err
	}
	if callerID != payload.ReceiverID {
		return nil, apperror.ErrWrongParty(string(domain.RoleReceiver))
	}
	if s.qrSvc.IsExpired(payload) {
		s.fail(ctx, transfer, "QR1 expired")
		return nil, apperror.ErrExpiredQR(domain.QRType1.Display())
	}
	if err := s.claimNonce(ctx, payload); err != nil {
		return nil, err
	}
	if err := s.advance(ctx, transfer, domain.StatusQR1Scanned); err != nil {
		s.releaseNonce(ctx, payload)
		return nil, err
	}

	s.notifier.Notify(ctx, transfer.SenderID, ports.Notification{
		Title:    "QR code scanned",
		Message:  "The receiver has acknowledged your transfer.",
		Category: "transfer",
		Priority: "normal",
		DeepLink: "transfer://" + transfer.ID.String(),
	})
	return transfer, nil
}

// GenerateQR2 mints the confirmation token under the same key/IV pair that
// sealed QR1. Only the receiver may request it, and only from QR1_SCANNED.
func (s *TransferServiceImpl) GenerateQR2(ctx context.Context, callerID, transferID uuid.UUID) (*ports.QR2Result, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.IsParty(callerID, domain.RoleReceiver) {
		return nil, apperror.ErrWrongParty(string(domain.RoleReceiver))
	}
	if err := domain.Apply(transfer, domain.StatusQR2Generated); err != nil {
		return nil, mapStateError(err)
	}

	token, err := s.qrSvc.Generate(domain.QRPayload{
		TransferID: transfer.ID,
		Amount:     transfer.Amount,
		SenderID:   transfer.SenderID,
		ReceiverID: transfer.ReceiverID,
	}, transfer.KeyHex, transfer.IVHex, domain.QRType2)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}
	transfer.QR2Blob = token.Blob
	transfer.QR2Image = token.Image
	transfer.QR2GeneratedAt = &token.IssuedAt
	transfer.QR2ExpiresAt = &token.ExpiresAt

	if err := s.persist(ctx, transfer, domain.StatusQR1Scanned); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, transfer.SenderID, ports.Notification{
		Title:    "Confirmation code ready",
		Message:  "Scan the receiver's QR code to continue the transfer.",
		Category: "transfer",
		Priority: "normal",
		DeepLink: "transfer://" + transfer.ID.String(),
	})
	return &ports.QR2Result{
		Transfer:  transfer,
		QR2Image:  token.Image,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// ScanQR2 is the sender's confirmation step, mirroring ScanQR1 with the
// roles reversed.
func (s *TransferServiceImpl) ScanQR2(ctx context.Context, callerID uuid.UUID, blob string) (*domain.Transfer, error) {
	transfer, payload, err := s.resolveScan(ctx, blob, domain.QRType2)
	if err != nil {
		return nil, err
	}
	if callerID != payload.SenderID {
		return nil, apperror.ErrWrongParty(string(domain.RoleSender))
	}
	if s.qrSvc.IsExpired(payload) {
		s.fail(ctx, transfer, "QR2 expired")
		return nil, apperror.ErrExpiredQR(domain.QRType2.Display())
	}
	if err := s.claimNonce(ctx, payload); err != nil {
		return nil, err
	}
	if err := s.advance(ctx, transfer, domain.StatusQR2Scanned); err != nil {
		s.releaseNonce(ctx, payload)
		return nil, err
	}

	s.notifier.Notify(ctx, transfer.ReceiverID, ports.Notification{
		Title:    "Transfer confirmed",
		Message:  "The sender has confirmed the transfer. Awaiting final verification.",
		Category: "transfer",
		Priority: "normal",
		DeepLink: "transfer://" + transfer.ID.String(),
	})
	return transfer, nil
}

// SendOTP dispatches the final proof-of-possession code to the sender's
// phone and moves the transfer to OTP_SENT.
func (s *TransferServiceImpl) SendOTP(ctx context.Context, callerID, transferID uuid.UUID) (time.Time, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return time.Time{}, err
	}
	if !transfer.IsParty(callerID, domain.RoleSender) {
		return time.Time{}, apperror.ErrWrongParty(string(domain.RoleSender))
	}
	prev := transfer.Status
	if err := domain.Apply(transfer, domain.StatusOTPSent); err != nil {
		return time.Time{}, mapStateError(err)
	}

	sender, err := s.userRepo.GetByID(ctx, transfer.SenderID)
	if err != nil {
		return time.Time{}, apperror.ErrDatabaseError(err)
	}
	if sender == nil {
		return time.Time{}, apperror.ErrNotFound("sender")
	}

	expiresAt, err := s.otpSvc.Send(ctx, sender.Phone, domain.OTPPurposeTransfer, &transfer.ID)
	if err != nil {
		return time.Time{}, err
	}
	sentAt := s.now().UTC()
	transfer.OTPSentAt = &sentAt

	if err := s.persist(ctx, transfer, prev); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// VerifyOTP checks the presented code. An expired code or an exhausted
// attempt ceiling fails the transfer terminally; a plain mismatch leaves it
// in OTP_SENT so the sender can retry within the ceiling.
func (s *TransferServiceImpl) VerifyOTP(ctx context.Context, callerID, transferID uuid.UUID, code string) (*domain.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.IsParty(callerID, domain.RoleSender) {
		return nil, apperror.ErrWrongParty(string(domain.RoleSender))
	}
	// Reject out-of-sequence calls before touching the OTP record so a
	// terminal transfer cannot burn attempts.
	if !domain.IsValidTransition(transfer.Status, domain.StatusOTPVerified) {
		return nil, apperror.ErrInvalidTransition(string(transfer.Status), string(domain.StatusOTPVerified))
	}

	sender, err := s.userRepo.GetByID(ctx, transfer.SenderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if sender == nil {
		return nil, apperror.ErrNotFound("sender")
	}

	if err := s.otpSvc.Verify(ctx, sender.Phone, code, domain.OTPPurposeTransfer, &transfer.ID); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case apperror.CodeOTPExpired, apperror.CodeMaxAttemptsExceeded:
				s.fail(ctx, transfer, "otp "+appErr.Code)
			}
		}
		return nil, err
	}

	verifiedAt := s.now().UTC()
	transfer.OTPVerifiedAt = &verifiedAt
	if err := s.advance(ctx, transfer, domain.StatusOTPVerified); err != nil {
		return nil, err
	}
	return transfer, nil
}

// Complete finalizes an OTP_VERIFIED transfer.
func (s *TransferServiceImpl) Complete(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.IsParty(callerID, domain.RoleSender) {
		return nil, apperror.ErrWrongParty(string(domain.RoleSender))
	}

	completedAt := s.now().UTC()
	transfer.CompletedAt = &completedAt
	if err := s.advance(ctx, transfer, domain.StatusCompleted); err != nil {
		return nil, err
	}

	for _, recipient := range []uuid.UUID{transfer.SenderID, transfer.ReceiverID} {
		s.notifier.Notify(ctx, recipient, ports.Notification{
			Title:    "Transfer completed",
			Message:  fmt.Sprintf("Transfer %s of %s %s is complete.", transfer.Number, transfer.Amount.String(), transfer.Currency),
			Category: "transfer",
			Priority: "high",
			DeepLink: "transfer://" + transfer.ID.String(),
		})
	}
	s.log.Info().Str("transfer_id", transfer.ID.String()).Msg("transfer completed")
	return transfer, nil
}

// Cancel terminates a non-terminal transfer. Only the sender may cancel, and
// no prerequisite applies: cancellation is legal from every live status.
func (s *TransferServiceImpl) Cancel(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.IsParty(callerID, domain.RoleSender) {
		return nil, apperror.ErrWrongParty(string(domain.RoleSender))
	}
	if err := s.advance(ctx, transfer, domain.StatusCancelled); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, transfer.ReceiverID, ports.Notification{
		Title:    "Transfer cancelled",
		Message:  fmt.Sprintf("Transfer %s was cancelled by the sender.", transfer.Number),
		Category: "transfer",
		Priority: "normal",
		DeepLink: "transfer://" + transfer.ID.String(),
	})
	return transfer, nil
}

// Get returns the transfer snapshot to either of its parties.
func (s *TransferServiceImpl) Get(ctx context.Context, callerID, transferID uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.load(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.IsParty(callerID, domain.RoleSender) && !transfer.IsParty(callerID, domain.RoleReceiver) {
		return nil, apperror.ErrWrongParty("party")
	}
	return transfer, nil
}

// --- helpers ---

// load fetches a transfer by id, mapping absence to the public taxonomy.
func (s *TransferServiceImpl) load(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.transferRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if transfer == nil {
		return nil, apperror.ErrNotFound("transfer")
	}
	return transfer, nil
}

// resolveScan locates the transfer owning a presented blob and validates the
// payload against the transfer's own material and the expected token type.
func (s *TransferServiceImpl) resolveScan(ctx context.Context, blob string, want domain.QRType) (*domain.Transfer, *domain.QRPayload, error) {
	transfer, err := s.transferRepo.GetByQRBlob(ctx, blob)
	if err != nil {
		return nil, nil, apperror.ErrDatabaseError(err)
	}
	if transfer == nil {
		return nil, nil, apperror.ErrInvalidQR(errors.New("unrecognized QR code"))
	}
	payload, err := s.qrSvc.Validate(blob, transfer.KeyHex, transfer.IVHex)
	if err != nil {
		return nil, nil, apperror.ErrInvalidQR(err)
	}
	if payload.Type != want {
		return nil, nil, apperror.ErrInvalidQR(fmt.Errorf("expected %s token", want.Display()))
	}
	if payload.TransferID != transfer.ID {
		return nil, nil, apperror.ErrInvalidQR(errors.New("payload does not match owning transfer"))
	}
	return transfer, payload, nil
}

// claimNonce enforces single-shot presentation: the nonce can be claimed
// exactly once for the remainder of the token's validity window.
func (s *TransferServiceImpl) claimNonce(ctx context.Context, payload *domain.QRPayload) error {
	ttl := time.Duration(s.qrSvc.RemainingSeconds(payload)) * time.Second
	ok, err := s.scanGuard.CheckAndSet(ctx, payload.Nonce, ttl)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("scan guard: %w", err))
	}
	if !ok {
		return apperror.ErrQRAlreadyUsed()
	}
	return nil
}

// releaseNonce undoes a claim whose step could not be committed, so the
// token stays presentable for the retry the conflict error invites.
func (s *TransferServiceImpl) releaseNonce(ctx context.Context, payload *domain.QRPayload) {
	if err := s.scanGuard.Release(ctx, payload.Nonce); err != nil {
		s.log.Warn().Err(err).
			Str("transfer_id", payload.TransferID.String()).
			Msg("failed to release scan claim, token stays burned until its TTL")
	}
}

// advance runs the state machine and persists the result with a status CAS.
func (s *TransferServiceImpl) advance(ctx context.Context, transfer *domain.Transfer, target domain.TransferStatus) error {
	prev := transfer.Status
	if err := domain.Apply(transfer, target); err != nil {
		return mapStateError(err)
	}
	return s.persist(ctx, transfer, prev)
}

// persist writes the transfer conditioned on the status it was read at. A
// lost CAS means a concurrent request won the row.
func (s *TransferServiceImpl) persist(ctx context.Context, transfer *domain.Transfer, expected domain.TransferStatus) error {
	transfer.UpdatedAt = s.now().UTC()
	ok, err := s.transferRepo.Update(ctx, transfer, expected)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if !ok {
		return apperror.ErrConcurrentModification()
	}
	return nil
}

// fail pushes a live transfer to FAILED. Expiry and attempt exhaustion are
// administrative terminations, written directly rather than through the
// transition table; a lost CAS here just means another request already
// settled the row.
func (s *TransferServiceImpl) fail(ctx context.Context, transfer *domain.Transfer, reason string) {
	prev := transfer.Status
	if domain.IsTerminal(prev) {
		return
	}
	transfer.Status = domain.StatusFailed
	transfer.UpdatedAt = s.now().UTC()
	ok, err := s.transferRepo.Update(ctx, transfer, prev)
	if err != nil || !ok {
		s.log.Warn().Err(err).
			Str("transfer_id", transfer.ID.String()).
			Str("reason", reason).
			Msg("could not mark transfer failed")
		return
	}
	s.log.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("reason", reason).
		Msg("transfer failed")
	s.notifier.Notify(ctx, transfer.SenderID, ports.Notification{
		Title:    "Transfer failed",
		Message:  fmt.Sprintf("Transfer %s failed: %s. Please start a new transfer.", transfer.Number, reason),
		Category: "transfer",
		Priority: "high",
		DeepLink: "transfer://" + transfer.ID.String(),
	})
}

// mapStateError converts the state machine's typed failures into the public
// error taxonomy.
func mapStateError(err error) error {
	var transitionErr *domain.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return apperror.ErrInvalidTransition(string(transitionErr.Current), string(transitionErr.Target))
	}
	var prereqErr *domain.PrerequisiteError
	if errors.As(err, &prereqErr) {
		return apperror.ErrMissingPrerequisite(string(prereqErr.Target), prereqErr.Missing)
	}
	return apperror.InternalError(err)
}

// mintTransferNumber builds the human-readable transfer number, unique by a
// random suffix.
func mintTransferNumber(now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("TRF-%s-%s", now.Format("20060102"), hex.EncodeToString(suffix)), nil
}
