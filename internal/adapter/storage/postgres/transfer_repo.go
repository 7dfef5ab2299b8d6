package postgres

import (
	"context"
	"errors"
	"fmt"

	"qr-transfer-authorizer/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransferRepo implements ports.TransferRepository.
type TransferRepo struct {
	pool Pool
}

// NewTransferRepo creates a new TransferRepo.
func NewTransferRepo(pool Pool) *TransferRepo {
	return &TransferRepo{pool: pool}
}

const transferColumns = `id, number, sender_id, receiver_id, company_id, amount, currency, description,
	status, key_hex, iv_hex,
	qr1_blob, qr1_image, qr1_generated_at, qr1_expires_at,
	qr2_blob, qr2_image, qr2_generated_at, qr2_expires_at,
	otp_sent_at, otp_verified_at, initiated_at, completed_at, created_at, updated_at`

// Create inserts a new transfer row.
func (r *TransferRepo) Create(ctx context.Context, t *domain.Transfer) error {
	query := `INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.Number, t.SenderID, t.ReceiverID, t.CompanyID,
		t.Amount, t.Currency, t.Description,
		t.Status, t.KeyHex, t.IVHex,
		t.QR1Blob, t.QR1Image, t.QR1GeneratedAt, t.QR1ExpiresAt,
		t.QR2Blob, t.QR2Image, t.QR2GeneratedAt, t.QR2ExpiresAt,
		t.OTPSentAt, t.OTPVerifiedAt, t.InitiatedAt, t.CompletedAt, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// GetByID fetches a transfer by UUID. Returns nil, nil when absent.
func (r *TransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	return r.scanTransfer(r.pool.QueryRow(ctx, query, id))
}

// GetByQRBlob resolves the transfer owning an encrypted QR payload. Both
// token columns are candidates since the caller does not know which step the
// blob belongs to.
func (r *TransferRepo) GetByQRBlob(ctx context.Context, blob string) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE qr1_blob = $1 OR qr2_blob = $1`
	return r.scanTransfer(r.pool.QueryRow(ctx, query, blob))
}

// Update persists the mutable fields of the transfer, conditioned on the
// status column still holding expected. Returns false with no error when the
// precondition failed, i.e. a concurrent request won the row.
func (r *TransferRepo) Update(ctx context.Context, t *domain.Transfer, expected domain.TransferStatus) (bool, error) {
	query := `UPDATE transfers SET
		status = $1,
		qr2_blob = $2, qr2_image = $3, qr2_generated_at = $4, qr2_expires_at = $5,
		otp_sent_at = $6, otp_verified_at = $7,
		completed_at = $8, updated_at = $9
		WHERE id = $10 AND status = $11`

	tag, err := r.pool.Exec(ctx, query,
		t.Status,
		t.QR2Blob, t.QR2Image, t.QR2GeneratedAt, t.QR2ExpiresAt,
		t.OTPSentAt, t.OTPVerifiedAt,
		t.CompletedAt, t.UpdatedAt,
		t.ID, expected,
	)
	if err != nil {
		return false, fmt.Errorf("update transfer: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// scanTransfer is a helper to scan a single row into a Transfer.
func (r *TransferRepo) scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	t := &domain.Transfer{}
	err := row.Scan(
		&t.ID, &t.Number, &t.SenderID, &t.ReceiverID, &t.CompanyID,
		&t.Amount, &t.Currency, &t.Description,
		&t.Status, &t.KeyHex, &t.IVHex,
		&t.QR1Blob, &t.QR1Image, &t.QR1GeneratedAt, &t.QR1ExpiresAt,
		&t.QR2Blob, &t.QR2Image, &t.QR2GeneratedAt, &t.QR2ExpiresAt,
		&t.OTPSentAt, &t.OTPVerifiedAt, &t.InitiatedAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transfer: %w", err)
	}
	return t, nil
}
