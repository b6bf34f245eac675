package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// GenerateJWT issues a signed HS256 token for a user. The subject claim
// carries the user id so tokens from the external identity provider (which
// only set "sub") and locally issued ones resolve the same way.
func GenerateJWT(userID uuid.UUID, email, secret string, expiration time.Duration) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(expiration)
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateJWT parses and validates a token against a single secret.
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// DecodeToken tries each secret in order and returns the claims of the first
// one that validates. The identity provider's secret is tried before the
// local signing secret, mirroring how tokens actually arrive in production.
func DecodeToken(tokenString string, secrets ...string) (*Claims, error) {
	var lastErr error
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		claims, err := ValidateJWT(tokenString, secret)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no signing secrets configured")
	}
	return nil, lastErr
}

// SubjectUserID resolves the user id from decoded claims. Provider tokens
// only carry "sub"; locally issued tokens set user_id as well.
func (c *Claims) SubjectUserID() (uuid.UUID, bool) {
	if c.UserID != uuid.Nil {
		return c.UserID, true
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
