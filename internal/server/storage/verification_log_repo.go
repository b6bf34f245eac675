package storage

import (
	"context"

	"github.com/devicebind/devicebind/pkg/models"
	"github.com/google/uuid"
)

type VerificationLogRepository struct {
	db *DB
}

func NewVerificationLogRepository(db *DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

// Append inserts one immutable verification record. There is no update or
// delete path for this table.
func (r *VerificationLogRepository) Append(ctx context.Context, entry *models.VerificationLogEntry) error {
	query := `
		INSERT INTO verification_log
			(id, user_id, binding_id, mac_address, expected_mac, verification_status,
			 checksum_match, ip_address, user_agent, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		entry.ID, entry.UserID, entry.BindingID, entry.MACAddress, entry.ExpectedMAC,
		entry.VerificationStatus, entry.ChecksumMatch, entry.IPAddress, entry.UserAgent,
		entry.ErrorMessage,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *VerificationLogRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VerificationLogEntry, error) {
	var entries []models.VerificationLogEntry
	query := `SELECT * FROM verification_log WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	err := r.db.SelectContext(ctx, &entries, query, userID, limit)
	return entries, err
}

// ListAll returns the newest entries first, optionally filtered by
// verification status ("success" or "failed").
func (r *VerificationLogRepository) ListAll(ctx context.Context, status string, limit, offset int) ([]models.VerificationLogEntry, error) {
	var entries []models.VerificationLogEntry
	if status != "" {
		query := `
			SELECT * FROM verification_log WHERE verification_status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`
		err := r.db.SelectContext(ctx, &entries, query, status, limit, offset)
		return entries, err
	}
	query := `SELECT * FROM verification_log ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &entries, query, limit, offset)
	return entries, err
}
