// Package jwt issues and validates the tokens used by the identity module.
package jwt

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pontualhq/pontual/internal/domain"
)

// ErrInvalidToken is returned for expired, malformed or forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Config contains token settings.
type Config struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Claims are the access token claims.
type Claims struct {
	jwt.RegisteredClaims
	Role domain.Role `json:"role"`
}

// Authenticator signs and parses tokens.
type Authenticator struct {
	cfg Config
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// GenerateAccessToken signs a short-lived bearer token for the employee.
func (a *Authenticator) GenerateAccessToken(employeeID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employeeID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AccessTokenDuration)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken validates a bearer token and returns its subject.
func (a *Authenticator) ParseAccessToken(tokenString string) (employeeID string, role domain.Role, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, nil
}

// RefreshTokenDuration returns the configured refresh token lifetime.
func (a *Authenticator) RefreshTokenDuration() time.Duration {
	return a.cfg.RefreshTokenDuration
}

// NewRefreshToken generates an opaque refresh token and the hash stored
// server-side. Only the hash ever touches the database.
func NewRefreshToken() (plain, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate refresh token: %w", err)
	}
	plain = hex.EncodeToString(raw)
	return plain, HashRefreshToken(plain), nil
}

// HashRefreshToken returns the storage hash of a refresh token.
func HashRefreshToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
