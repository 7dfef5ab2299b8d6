package postgres

import (
	"context"
	"errors"
	"fmt"

	"qr-transfer-authorizer/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OTPRepo implements ports.OTPRepository.
type OTPRepo struct {
	pool Pool
}

// NewOTPRepo creates a new OTPRepo.
func NewOTPRepo(pool Pool) *OTPRepo {
	return &OTPRepo{pool: pool}
}

// Create inserts a new OTP record within a database transaction.
func (r *OTPRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.OTPRecord) error {
	query := `INSERT INTO otp_records (id, phone, code_hash, purpose, transfer_id, verified, verified_at, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.Phone, rec.CodeHash, rec.Purpose, rec.TransferID,
		rec.Verified, rec.VerifiedAt, rec.Attempts, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert otp record: %w", err)
	}
	return nil
}

// GetLatest returns the most recent unverified record for the key tuple, or
// nil when none exists. Expiry is evaluated by the caller so that "expired"
// and "absent" surface as distinct failures.
func (r *OTPRepo) GetLatest(ctx context.Context, phone string, purpose domain.OTPPurpose, transferID *uuid.UUID) (*domain.OTPRecord, error) {
	query := `SELECT id, phone, code_hash, purpose, transfer_id, verified, verified_at, attempts, expires_at, created_at
		FROM otp_records WHERE phone = $1 AND purpose = $2 AND verified = FALSE`
	args := []any{phone, purpose}
	if transferID != nil {
		query += ` AND transfer_id = $3`
		args = append(args, *transferID)
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	rec := &domain.OTPRecord{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.Phone, &rec.CodeHash, &rec.Purpose, &rec.TransferID,
		&rec.Verified, &rec.VerifiedAt, &rec.Attempts, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan otp record: %w", err)
	}
	return rec, nil
}

// Update persists the mutable verification fields.
func (r *OTPRepo) Update(ctx context.Context, rec *domain.OTPRecord) error {
	query := `UPDATE otp_records SET verified = $1, verified_at = $2, attempts = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, rec.Verified, rec.VerifiedAt, rec.Attempts, rec.ID)
	if err != nil {
		return fmt.Errorf("update otp record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("otp record not found: %s", rec.ID)
	}
	return nil
}

// Invalidate soft-invalidates every unverified record for the phone so none
// of them can be presented after a fresh code supersedes them.
func (r *OTPRepo) Invalidate(ctx context.Context, tx pgx.Tx, phone string) error {
	query := `UPDATE otp_records SET verified = TRUE WHERE phone = $1 AND verified = FALSE`

	_, err := tx.Exec(ctx, query, phone)
	if err != nil {
		return fmt.Errorf("invalidate otp records: %w", err)
	}
	return nil
}
