package ports

import (
	"context"

	"qr-transfer-authorizer/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransferRepository defines persistence operations for transfers.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)
	// GetByQRBlob resolves the transfer owning an encrypted QR payload,
	// used by the two scan operations.
	GetByQRBlob(ctx context.Context, blob string) (*domain.Transfer, error)
	// Update persists all mutable fields of the transfer with a
	// compare-and-swap precondition on the status column: the write only
	// lands if the row's status still equals expected. Returns false
	// (and no error) when the precondition failed.
	Update(ctx context.Context, transfer *domain.Transfer, expected domain.TransferStatus) (bool, error)
}

// OTPRepository defines persistence operations for OTP records.
type OTPRepository interface {
	// Create inserts a new record inside a database transaction (paired
	// with the invalidation of superseded records).
	Create(ctx context.Context, tx pgx.Tx, rec *domain.OTPRecord) error
	// GetLatest returns the most recent unverified record for the key
	// tuple, or nil when none exists. Expiry is evaluated by the caller.
	GetLatest(ctx context.Context, phone string, purpose domain.OTPPurpose, transferID *uuid.UUID) (*domain.OTPRecord, error)
	// Update persists the mutable verification fields (attempts,
	// verified flag, verified-at).
	Update(ctx context.Context, rec *domain.OTPRecord) error
	// Invalidate marks all unverified records for a phone as verified so
	// they can never be presented again.
	Invalidate(ctx context.Context, tx pgx.Tx, phone string) error
}

// UserRepository is the read-only view of the external user directory.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
