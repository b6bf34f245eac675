package services

import (
	"context"
	"fmt"
	"time"

	"github.com/devicebind/devicebind/internal/server/storage"
	"github.com/devicebind/devicebind/pkg/models"
	"github.com/devicebind/devicebind/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService is the thin account collaborator: it persists the minimal
// profile entity and issues bearer tokens. The binding subsystem only
// consumes the resulting user identity.
type AuthService struct {
	profiles   *storage.ProfileRepository
	jwtSecret  string
	expiration time.Duration
}

func NewAuthService(profiles *storage.ProfileRepository, jwtSecret string, expiration time.Duration) *AuthService {
	return &AuthService{
		profiles:   profiles,
		jwtSecret:  jwtSecret,
		expiration: expiration,
	}
}

func (s *AuthService) Register(ctx context.Context, email, username, password string) (*models.Profile, string, time.Time, error) {
	if !utils.IsValidEmail(email) {
		return nil, "", time.Time{}, fmt.Errorf("invalid email format")
	}
	if len(password) < 8 {
		return nil, "", time.Time{}, fmt.Errorf("password must be at least 8 characters")
	}

	existing, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("database error: %w", err)
	}
	if existing != nil {
		return nil, "", time.Time{}, fmt.Errorf("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.Profile{
		ID:           uuid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to create profile: %w", err)
	}

	token, expiresAt, err := utils.GenerateJWT(profile.ID, profile.Email, s.jwtSecret, s.expiration)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return profile, token, expiresAt, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Profile, string, time.Time, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("database error: %w", err)
	}
	if profile == nil {
		return nil, "", time.Time{}, fmt.Errorf("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, fmt.Errorf("invalid email or password")
	}

	token, expiresAt, err := utils.GenerateJWT(profile.ID, profile.Email, s.jwtSecret, s.expiration)
	if err != nil {
		return nil, "", time.Time{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return profile, token, expiresAt, nil
}
