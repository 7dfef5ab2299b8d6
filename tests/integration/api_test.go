package integration

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"qr-transfer-authorizer/internal/core/domain"
	"qr-transfer-authorizer/internal/core/ports"
	"qr-transfer-authorizer/internal/service"
	"qr-transfer-authorizer/pkg/apperror"
	"qr-transfer-authorizer/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv wires the real service stack against in-memory storage.
type testEnv struct {
	svc      ports.TransferService
	sms      *recordingSMS
	sender   *domain.User
	receiver *domain.User
	repo     *inMemoryTransferRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewWithWriter("error", io.Discard)

	sender := &domain.User{ID: uuid.New(), Name: "An Nguyen", Phone: "+84901111111"}
	receiver := &domain.User{ID: uuid.New(), Name: "Binh Tran", Phone: "+84902222222"}

	transferRepo := newInMemoryTransferRepo()
	otpRepo := newInMemoryOTPRepo()
	userRepo := newInMemoryUserRepo(sender, receiver)
	sms := &recordingSMS{}

	codec := service.NewAESTokenCodec()
	hashSvc := service.NewArgon2HashService()
	qrSvc := service.NewQRService(codec, 15*time.Minute, 10*time.Minute, 256)
	otpSvc := service.NewOTPService(otpRepo, fakeTransactor{}, hashSvc, sms, allowAllLimiter{}, 5*time.Minute, domain.MaxOTPAttempts, log)
	transferSvc := service.NewTransferService(
		transferRepo, userRepo, codec, qrSvc, otpSvc,
		newInMemoryScanGuard(), noopNotifier{}, log,
	)

	return &testEnv{
		svc:      transferSvc,
		sms:      sms,
		sender:   sender,
		receiver: receiver,
		repo:     transferRepo,
	}
}

func (e *testEnv) initiate(t *testing.T) *ports.InitiateResult {
	t.Helper()
	result, err := e.svc.Initiate(context.Background(), ports.InitiateRequest{
		SenderID:      e.sender.ID,
		ReceiverPhone: e.receiver.Phone,
		Amount:        decimal.NewFromInt(250000),
		Currency:      "VND",
	})
	require.NoError(t, err)
	return result
}

var otpCodeRe = regexp.MustCompile(`\b[0-9]{6}\b`)

// lastOTPCode fishes the dispatched code out of the recorded SMS text.
func (e *testEnv) lastOTPCode(t *testing.T) string {
	t.Helper()
	code := otpCodeRe.FindString(e.sms.last())
	require.NotEmpty(t, code, "no otp code found in sms: %q", e.sms.last())
	return code
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}

// The full authorization ceremony end to end: initiate, both scans, OTP,
// completion.
func TestAuthorizationFlow_HappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer
	assert.Equal(t, domain.StatusInitiated, transfer.Status)
	assert.NotEmpty(t, transfer.Number)
	assert.NotEmpty(t, result.QR1Image)
	assert.NotEmpty(t, transfer.QR1Blob)

	scanned, err := env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQR1Scanned, scanned.Status)

	qr2, err := env.svc.GenerateQR2(ctx, env.receiver.ID, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQR2Generated, qr2.Transfer.Status)
	assert.NotEmpty(t, qr2.QR2Image)

	scanned, err = env.svc.ScanQR2(ctx, env.sender.ID, qr2.Transfer.QR2Blob)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQR2Scanned, scanned.Status)

	_, err = env.svc.SendOTP(ctx, env.sender.ID, transfer.ID)
	require.NoError(t, err)

	verified, err := env.svc.VerifyOTP(ctx, env.sender.ID, transfer.ID, env.lastOTPCode(t))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOTPVerified, verified.Status)

	done, err := env.svc.Complete(ctx, env.sender.ID, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
}

func TestAuthorizationFlow_RoleEnforcement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer

	// the sender cannot scan their own QR1
	_, err := env.svc.ScanQR1(ctx, env.sender.ID, transfer.QR1Blob)
	requireCode(t, err, "AUTH_002")

	// a stranger cannot scan it either
	_, err = env.svc.ScanQR1(ctx, uuid.New(), transfer.QR1Blob)
	requireCode(t, err, "AUTH_002")

	_, err = env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.NoError(t, err)

	// only the receiver mints QR2
	_, err = env.svc.GenerateQR2(ctx, env.sender.ID, transfer.ID)
	requireCode(t, err, "AUTH_002")

	qr2, err := env.svc.GenerateQR2(ctx, env.receiver.ID, transfer.ID)
	require.NoError(t, err)

	// and only the sender scans it back
	_, err = env.svc.ScanQR2(ctx, env.receiver.ID, qr2.Transfer.QR2Blob)
	requireCode(t, err, "AUTH_002")
}

func TestAuthorizationFlow_QRReplayRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer

	_, err := env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.NoError(t, err)

	// presenting the same token again must be rejected even though the
	// status check would already catch it; the nonce claim fires first
	_, err = env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.Error(t, err)
}

func TestAuthorizationFlow_OutOfSequenceRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer

	// QR2 before QR1 was scanned
	_, err := env.svc.GenerateQR2(ctx, env.receiver.ID, transfer.ID)
	requireCode(t, err, "TRF_002")

	// OTP before any scan
	_, err = env.svc.SendOTP(ctx, env.sender.ID, transfer.ID)
	requireCode(t, err, "TRF_002")

	// completion straight from INITIATED
	_, err = env.svc.Complete(ctx, env.sender.ID, transfer.ID)
	requireCode(t, err, "TRF_002")
}

func TestAuthorizationFlow_WrongOTPExhaustsAndFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer

	_, err := env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.NoError(t, err)
	qr2, err := env.svc.GenerateQR2(ctx, env.receiver.ID, transfer.ID)
	require.NoError(t, err)
	_, err = env.svc.ScanQR2(ctx, env.sender.ID, qr2.Transfer.QR2Blob)
	require.NoError(t, err)
	_, err = env.svc.SendOTP(ctx, env.sender.ID, transfer.ID)
	require.NoError(t, err)

	// two mismatches leave the transfer retryable
	for i := 0; i < 2; i++ {
		_, err = env.svc.VerifyOTP(ctx, env.sender.ID, transfer.ID, "000000")
		requireCode(t, err, "OTP_001")
	}

	// the third exhausts the ceiling and fails the transfer terminally
	_, err = env.svc.VerifyOTP(ctx, env.sender.ID, transfer.ID, "000000")
	requireCode(t, err, "OTP_003")

	stored, err := env.repo.GetByID(ctx, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	// a fourth call bounces off the terminal status without touching OTP state
	_, err = env.svc.VerifyOTP(ctx, env.sender.ID, transfer.ID, "000000")
	requireCode(t, err, "TRF_002")
}

func TestAuthorizationFlow_CancelBeforeCompletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.initiate(t)
	transfer := result.Transfer

	_, err := env.svc.ScanQR1(ctx, env.receiver.ID, transfer.QR1Blob)
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, env.sender.ID, transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// nothing moves a cancelled transfer
	_, err = env.svc.GenerateQR2(ctx, env.receiver.ID, transfer.ID)
	requireCode(t, err, "TRF_002")
	_, err = env.svc.Cancel(ctx, env.sender.ID, transfer.ID)
	requireCode(t, err, "TRF_002")
}

func TestAuthorizationFlow_SelfTransferRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Initiate(context.Background(), ports.InitiateRequest{
		SenderID:      env.sender.ID,
		ReceiverPhone: env.sender.Phone,
		Amount:        decimal.NewFromInt(1000),
		Currency:      "VND",
	})
	requireCode(t, err, "TRF_005")
}

func TestAuthorizationFlow_UnknownReceiver(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Initiate(context.Background(), ports.InitiateRequest{
		SenderID:      env.sender.ID,
		ReceiverPhone: "+84909999999",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "VND",
	})
	requireCode(t, err, "TRF_001")
}
