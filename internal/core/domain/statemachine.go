package domain

import "fmt"

// legalTransitions defines the allowed status transitions. Each key is a
// "from" status, the value is the set of valid "to" statuses.
//
// Terminal statuses (COMPLETED, FAILED, CANCELLED) have no outgoing edges.
var legalTransitions = map[TransferStatus]map[TransferStatus]bool{
	StatusInitiated: {
		StatusQR1Scanned: true,
		StatusCancelled:  true,
	},
	StatusQR1Scanned: {
		StatusQR2Generated: true,
		StatusCancelled:    true,
	},
	StatusQR2Generated: {
		StatusQR2Scanned: true,
		StatusCancelled:  true,
	},
	StatusQR2Scanned: {
		StatusOTPSent:   true,
		StatusCancelled: true,
	},
	StatusOTPSent: {
		StatusOTPVerified: true,
		StatusFailed:      true,
		StatusCancelled:   true,
	},
	StatusOTPVerified: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// happyPath is the advisory next status for user-facing guidance. It excludes
// the CANCELLED/FAILED branches and is never used for enforcement.
var happyPath = map[TransferStatus]TransferStatus{
	StatusInitiated:    StatusQR1Scanned,
	StatusQR1Scanned:   StatusQR2Generated,
	StatusQR2Generated: StatusQR2Scanned,
	StatusQR2Scanned:   StatusOTPSent,
	StatusOTPSent:      StatusOTPVerified,
	StatusOTPVerified:  StatusCompleted,
}

// InvalidTransitionError reports a requested transition absent from the table.
type InvalidTransitionError struct {
	Current TransferStatus
	Target  TransferStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.Current, e.Target)
}

// PrerequisiteError reports a structurally missing artifact for a target
// status: the transition edge may exist, but the step that should have
// produced the artifact never ran.
type PrerequisiteError struct {
	Target  TransferStatus
	Missing string
}

func (e *PrerequisiteError) Error() string {
	return fmt.Sprintf("cannot reach %s: %s missing", e.Target, e.Missing)
}

// IsValidTransition reports whether current -> target is an edge of the
// transition table.
func IsValidTransition(current, target TransferStatus) bool {
	return legalTransitions[current][target]
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s TransferStatus) bool {
	next, known := legalTransitions[s]
	return known && len(next) == 0
}

// NextExpected returns the happy-path successor of current, or false for
// terminal and unknown statuses.
func NextExpected(current TransferStatus) (TransferStatus, bool) {
	next, ok := happyPath[current]
	return next, ok
}

// CheckPrerequisites verifies the target-specific structural requirements
// that the transition table cannot express: a caller must not be able to
// forge a status jump without the intermediate artifact ever existing.
func CheckPrerequisites(t *Transfer, target TransferStatus) error {
	switch target {
	case StatusQR2Generated:
		if t.QR1GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR1"}
		}
	case StatusOTPSent:
		if t.QR2GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR2"}
		}
	case StatusOTPVerified:
		if t.QR1GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR1"}
		}
		if t.QR2GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR2"}
		}
		if t.OTPSentAt == nil {
			return &PrerequisiteError{Target: target, Missing: "OTP dispatch"}
		}
	case StatusCompleted:
		if t.QR1GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR1"}
		}
		if t.QR2GeneratedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "QR2"}
		}
		if t.OTPVerifiedAt == nil {
			return &PrerequisiteError{Target: target, Missing: "OTP verification"}
		}
	}
	return nil
}

// Apply validates the transition edge and its prerequisites, then moves the
// transfer to target. On failure the transfer is left untouched; persisting
// the new status (and whatever timestamp the step sets) is the caller's job.
func Apply(t *Transfer, target TransferStatus) error {
	if !IsValidTransition(t.Status, target) {
		return &InvalidTransitionError{Current: t.Status, Target: target}
	}
	if err := CheckPrerequisites(t, target); err != nil {
		return err
	}
	t.Status = target
	return nil
}
