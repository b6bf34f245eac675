package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devicebind/devicebind/pkg/models"
	"github.com/google/uuid"
)

type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, email, username, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	return r.db.QueryRowContext(ctx, query,
		profile.ID, profile.Email, profile.Username, profile.PasswordHash,
	).Scan(&profile.ID, &profile.CreatedAt)
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT * FROM profiles WHERE id = $1`
	err := r.db.GetContext(ctx, &profile, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT * FROM profiles WHERE email = $1`
	err := r.db.GetContext(ctx, &profile, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// EnsureExists creates a placeholder profile row if none exists for the
// user. The profile entity belongs to the account system; bindings only
// need the foreign key to resolve. Idempotent.
func (r *ProfileRepository) EnsureExists(ctx context.Context, userID uuid.UUID) error {
	query := `
		INSERT INTO profiles (id, email, username, password_hash)
		VALUES ($1, '', '', '')
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}
