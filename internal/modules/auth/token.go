package auth

import (
	"fmt"
	"time"

	"errand-marketplace/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access-token payload. Role rides along so route guards can
// run without a database lookup; account-state gates still hit the store.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the access/refresh token pair. The two
// token kinds use separate secrets so a leaked refresh secret cannot mint
// access tokens and vice versa.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// Pair issues a fresh access+refresh token pair for a user.
func (m *TokenManager) Pair(userID, role string) (*models.TokenPair, error) {
	access, err := m.signAccess(userID, role)
	if err != nil {
		return nil, fmt.Errorf("token.Pair: %w", err)
	}
	refresh, err := m.signRefresh(userID)
	if err != nil {
		return nil, fmt.Errorf("token.Pair: %w", err)
	}
	return &models.TokenPair{Token: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) signAccess(userID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
}

func (m *TokenManager) signRefresh(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
}

// ParseAccess verifies an access token and returns its claims.
func (m *TokenManager) ParseAccess(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.accessSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, models.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns the user ID it names.
func (m *TokenManager) ParseRefresh(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.refreshSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", models.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", models.ErrInvalidToken
	}
	return claims.Subject, nil
}

// AccessSecret exposes the signing key for the echo-jwt middleware.
func (m *TokenManager) AccessSecret() []byte {
	return m.accessSecret
}
