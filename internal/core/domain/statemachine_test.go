package domain

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []TransferStatus{
	StatusInitiated, StatusQR1Scanned, StatusQR2Generated, StatusQR2Scanned,
	StatusOTPSent, StatusOTPVerified, StatusCompleted, StatusFailed, StatusCancelled,
}

func newTransfer(status TransferStatus) *Transfer {
	return &Transfer{
		ID:          uuid.New(),
		Number:      "TRF-TEST-000001",
		SenderID:    uuid.New(),
		ReceiverID:  uuid.New(),
		Amount:      decimal.NewFromInt(500),
		Currency:    "INR",
		Status:      status,
		InitiatedAt: time.Now(),
	}
}

// withArtifacts sets every artifact timestamp a fully progressed transfer
// would carry.
func withArtifacts(t *Transfer) *Transfer {
	now := time.Now()
	t.QR1GeneratedAt = &now
	t.QR2GeneratedAt = &now
	t.OTPSentAt = &now
	t.OTPVerifiedAt = &now
	return t
}

func TestIsValidTransition_HappyPath(t *testing.T) {
	path := []TransferStatus{
		StatusInitiated, StatusQR1Scanned, StatusQR2Generated,
		StatusQR2Scanned, StatusOTPSent, StatusOTPVerified, StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, IsValidTransition(path[i], path[i+1]),
			"%s -> %s should be legal", path[i], path[i+1])
	}
}

func TestIsValidTransition_CancelFromAnyNonTerminal(t *testing.T) {
	for _, s := range allStatuses {
		if IsTerminal(s) {
			continue
		}
		assert.True(t, IsValidTransition(s, StatusCancelled), "cancel from %s", s)
	}
}

func TestIsValidTransition_TerminalHasNoExits(t *testing.T) {
	for _, from := range []TransferStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		for _, to := range allStatuses {
			assert.False(t, IsValidTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsValidTransition_NoSkipAhead(t *testing.T) {
	assert.False(t, IsValidTransition(StatusInitiated, StatusQR2Generated))
	assert.False(t, IsValidTransition(StatusInitiated, StatusCompleted))
	assert.False(t, IsValidTransition(StatusQR1Scanned, StatusOTPSent))
	assert.False(t, IsValidTransition(StatusQR2Scanned, StatusOTPVerified))
	// FAILED is only reachable from the OTP stages.
	assert.False(t, IsValidTransition(StatusInitiated, StatusFailed))
	assert.False(t, IsValidTransition(StatusQR2Generated, StatusFailed))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusCompleted))
	assert.True(t, IsTerminal(StatusFailed))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.False(t, IsTerminal(StatusInitiated))
	assert.False(t, IsTerminal(StatusOTPSent))
	assert.False(t, IsTerminal(TransferStatus("NO_SUCH_STATUS")))
}

func TestNextExpected(t *testing.T) {
	next, ok := NextExpected(StatusInitiated)
	require.True(t, ok)
	assert.Equal(t, StatusQR1Scanned, next)

	next, ok = NextExpected(StatusOTPVerified)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, next)

	_, ok = NextExpected(StatusCompleted)
	assert.False(t, ok)
	_, ok = NextExpected(StatusCancelled)
	assert.False(t, ok)
}

func TestApply_RejectsIllegalEdgeWithoutMutation(t *testing.T) {
	tr := newTransfer(StatusInitiated)
	err := Apply(tr, StatusCompleted)

	var invErr *InvalidTransitionError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, StatusInitiated, invErr.Current)
	assert.Equal(t, StatusCompleted, invErr.Target)
	assert.Equal(t, StatusInitiated, tr.Status, "failed Apply must not mutate")
}

func TestApply_RejectsMissingPrerequisiteWithoutMutation(t *testing.T) {
	// Legal edge, but the QR2 artifact was never produced.
	tr := newTransfer(StatusQR2Scanned)
	now := time.Now()
	tr.QR1GeneratedAt = &now

	err := Apply(tr, StatusOTPSent)

	var preErr *PrerequisiteError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, StatusOTPSent, preErr.Target)
	assert.Equal(t, "QR2", preErr.Missing)
	assert.Equal(t, StatusQR2Scanned, tr.Status)
}

func TestApply_CompletedRequiresAllArtifacts(t *testing.T) {
	tr := withArtifacts(newTransfer(StatusOTPVerified))
	require.NoError(t, Apply(tr, StatusCompleted))
	assert.Equal(t, StatusCompleted, tr.Status)

	// Missing OTP verification timestamp blocks completion.
	tr2 := newTransfer(StatusOTPVerified)
	now := time.Now()
	tr2.QR1GeneratedAt = &now
	tr2.QR2GeneratedAt = &now
	tr2.OTPSentAt = &now
	err := Apply(tr2, StatusCompleted)
	var preErr *PrerequisiteError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, "OTP verification", preErr.Missing)
}

func TestApply_OTPVerifiedRequiresBothQRsAndDispatch(t *testing.T) {
	tr := newTransfer(StatusOTPSent)
	now := time.Now()
	tr.QR1GeneratedAt = &now
	tr.QR2GeneratedAt = &now

	err := Apply(tr, StatusOTPVerified)
	var preErr *PrerequisiteError
	require.ErrorAs(t, err, &preErr)
	assert.Equal(t, "OTP dispatch", preErr.Missing)

	tr.OTPSentAt = &now
	require.NoError(t, Apply(tr, StatusOTPVerified))
}

func TestApply_CancelIsUnconditional(t *testing.T) {
	for _, s := range allStatuses {
		if IsTerminal(s) {
			continue
		}
		tr := newTransfer(s)
		require.NoError(t, Apply(tr, StatusCancelled), "cancel from %s", s)
		assert.Equal(t, StatusCancelled, tr.Status)
	}
}

// TestApply_RandomSequences drives random transition requests and asserts
// the transfer only ever moves along table edges, with illegal requests
// rejected without mutation.
func TestApply_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		tr := withArtifacts(newTransfer(StatusInitiated))
		for step := 0; step < 20; step++ {
			current := tr.Status
			target := allStatuses[rng.Intn(len(allStatuses))]
			err := Apply(tr, target)
			if IsValidTransition(current, target) {
				require.NoError(t, err, "%s -> %s", current, target)
				assert.Equal(t, target, tr.Status)
			} else {
				require.Error(t, err)
				var invErr *InvalidTransitionError
				assert.True(t, errors.As(err, &invErr))
				assert.Equal(t, current, tr.Status, "rejection must not mutate")
			}
			if tr.IsTerminal() {
				break
			}
		}
	}
}
