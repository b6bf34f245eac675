package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devicebind/devicebind/pkg/models"
	"github.com/google/uuid"
)

type BindingRepository struct {
	db *DB
}

func NewBindingRepository(db *DB) *BindingRepository {
	return &BindingRepository{db: db}
}

func (r *BindingRepository) Create(ctx context.Context, binding *models.DeviceBinding) error {
	query := `
		INSERT INTO device_bindings (id, user_id, mac_address, mac_checksum, device_os, device_name, is_active, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at, last_seen
	`
	return r.db.QueryRowContext(ctx, query,
		binding.ID, binding.UserID, binding.MACAddress, binding.MACChecksum,
		binding.DeviceOS, binding.DeviceName, binding.IsActive,
	).Scan(&binding.ID, &binding.CreatedAt, &binding.LastSeen)
}

func (r *BindingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeviceBinding, error) {
	var binding models.DeviceBinding
	query := `SELECT * FROM device_bindings WHERE id = $1`
	err := r.db.GetContext(ctx, &binding, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// GetActiveByUser returns the single active binding for a user, or nil.
// The partial unique index on (user_id) WHERE is_active guarantees at most
// one row qualifies.
func (r *BindingRepository) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.DeviceBinding, error) {
	var binding models.DeviceBinding
	query := `SELECT * FROM device_bindings WHERE user_id = $1 AND is_active = true`
	err := r.db.GetContext(ctx, &binding, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &binding, nil
}

// UpdateActive rewrites the identifier fields of an existing binding in
// place, refreshing last_seen. Used when a user re-authenticates while an
// active binding already exists.
func (r *BindingRepository) UpdateActive(ctx context.Context, binding *models.DeviceBinding) error {
	query := `
		UPDATE device_bindings
		SET mac_address = $1, mac_checksum = $2, device_os = $3, device_name = $4,
		    last_seen = NOW(), is_active = true
		WHERE id = $5
		RETURNING last_seen
	`
	return r.db.QueryRowContext(ctx, query,
		binding.MACAddress, binding.MACChecksum, binding.DeviceOS, binding.DeviceName,
		binding.ID,
	).Scan(&binding.LastSeen)
}

// Deactivate clears the active flag. Reports whether a row was affected so
// callers can distinguish a missing binding from a successful reset.
func (r *BindingRepository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `UPDATE device_bindings SET is_active = false WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *BindingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DeviceBinding, error) {
	var bindings []models.DeviceBinding
	query := `SELECT * FROM device_bindings WHERE user_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &bindings, query, userID)
	return bindings, err
}

func (r *BindingRepository) ListAll(ctx context.Context, limit, offset int) ([]models.DeviceBinding, error) {
	var bindings []models.DeviceBinding
	query := `SELECT * FROM device_bindings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &bindings, query, limit, offset)
	return bindings, err
}

// RecordSuccess bumps the verification counter and touches the
// last_verified/last_seen timestamps.
func (r *BindingRepository) RecordSuccess(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE device_bindings
		SET verification_count = verification_count + 1,
		    last_verified = NOW(), last_seen = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *BindingRepository) RecordFailure(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE device_bindings
		SET failed_verification_count = failed_verification_count + 1
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// Stats aggregates binding and verification-log counts for operator tooling.
func (r *BindingRepository) Stats(ctx context.Context) (*models.BindingStats, error) {
	var stats models.BindingStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM device_bindings) AS total_bindings,
			(SELECT COUNT(*) FROM device_bindings WHERE is_active) AS active_bindings,
			(SELECT COUNT(*) FROM device_bindings WHERE NOT is_active) AS inactive_bindings,
			(SELECT COUNT(*) FROM verification_log) AS total_verifications,
			(SELECT COUNT(*) FROM verification_log WHERE verification_status = 'success') AS successful_verifications,
			(SELECT COUNT(*) FROM verification_log WHERE verification_status = 'failed') AS failed_verifications
	`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, err
	}
	if stats.TotalVerifications > 0 {
		rate := float64(stats.SuccessfulVerifications) / float64(stats.TotalVerifications) * 100
		stats.SuccessRatePercent = float64(int(rate*100+0.5)) / 100
	}
	return &stats, nil
}
