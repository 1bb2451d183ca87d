package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"errand-marketplace/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 10 * time.Minute
)

// NotifierInterface is the slice of the notification service the auth flows
// need.
type NotifierInterface interface {
	SendVerificationEmail(ctx context.Context, email, verificationURL string) error
	SendOTP(ctx context.Context, phone, code string) error
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// ServiceInterface defines the contract for the auth service.
type ServiceInterface interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.TokenPair, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.TokenPair, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	ApproveRunner(ctx context.Context, runnerID string) error
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

// Service implements the auth flows.
type Service struct {
	repo     RepositoryInterface
	tokens   *TokenManager
	notifier NotifierInterface
	baseURL  string
}

// NewService creates a new auth service. baseURL is used to build the
// verification and reset links put into outbound email.
func NewService(repo RepositoryInterface, tokens *TokenManager, notifier NotifierInterface, baseURL string) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  baseURL,
	}
}

// Register creates an unverified account, sends the verification email and a
// phone OTP, and issues a token pair. Registration succeeds even when a
// transport fails; the user can re-request verification.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, *models.TokenPair, error) {
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("service.Register: %w", err)
	}

	verificationToken, err := randomToken()
	if err != nil {
		return nil, nil, fmt.Errorf("service.Register: %w", err)
	}

	u := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        strings.ToLower(req.Email),
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         role,
	}
	created, err := s.repo.CreateUser(ctx, u, verificationToken, time.Now().Add(verificationTokenTTL))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, nil, models.ErrConflict
		}
		return nil, nil, fmt.Errorf("service.Register: %w", err)
	}

	verificationURL := fmt.Sprintf("%s/api/v1/auth/verify-email/%s", s.baseURL, verificationToken)
	if err := s.notifier.SendVerificationEmail(ctx, created.Email, verificationURL); err != nil {
		log.Printf("WARN: user %s: verification email failed: %v", created.ID, err)
	}
	if otp, err := randomOTP(); err == nil {
		if err := s.notifier.SendOTP(ctx, created.Phone, otp); err != nil {
			log.Printf("WARN: user %s: verification SMS failed: %v", created.ID, err)
		}
	}

	pair, err := s.tokens.Pair(created.ID, created.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("service.Register: %w", err)
	}
	return created, pair, nil
}

// Login authenticates by email and password and gates on account state.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, *models.TokenPair, error) {
	u, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, models.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("service.Login: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, nil, models.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, nil, models.ErrAccountInactive
	}
	if !u.IsVerified {
		return nil, nil, models.ErrAccountUnverified
	}

	if err := s.repo.UpdateLastLogin(ctx, u.ID); err != nil {
		log.Printf("WARN: user %s: updating last login failed: %v", u.ID, err)
	}

	pair, err := s.tokens.Pair(u.ID, u.Role)
	if err != nil {
		return nil, nil, fmt.Errorf("service.Login: %w", err)
	}
	return u, pair, nil
}

// VerifyEmail consumes an unexpired verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	u, err := s.repo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return models.ErrInvalidToken
		}
		return fmt.Errorf("service.VerifyEmail: %w", err)
	}
	if err := s.repo.MarkVerified(ctx, u.ID); err != nil {
		return fmt.Errorf("service.VerifyEmail: %w", err)
	}
	return nil
}

// ForgotPassword stores a short-lived reset token and mails the reset link.
// Here the email is the whole point of the operation, so a transport
// failure is returned rather than downgraded.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return fmt.Errorf("service.ForgotPassword: %w", err)
	}

	token, err := randomToken()
	if err != nil {
		return fmt.Errorf("service.ForgotPassword: %w", err)
	}
	if err := s.repo.SetResetToken(ctx, u.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("service.ForgotPassword: %w", err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/auth/reset-password/%s", s.baseURL, token)
	if err := s.notifier.SendPasswordReset(ctx, u.Email, resetURL); err != nil {
		return fmt.Errorf("service.ForgotPassword: sending reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token, swaps the password and issues a
// fresh token pair.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (*models.TokenPair, error) {
	u, err := s.repo.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrInvalidToken) {
			return nil, models.ErrInvalidToken
		}
		return nil, fmt.Errorf("service.ResetPassword: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("service.ResetPassword: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, u.ID, string(hash)); err != nil {
		return nil, fmt.Errorf("service.ResetPassword: %w", err)
	}

	pair, err := s.tokens.Pair(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("service.ResetPassword: %w", err)
	}
	return pair, nil
}

// Refresh exchanges a valid refresh token for a rotated pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	userID, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, models.ErrInvalidToken
	}
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		// A token for a deleted account is as good as expired.
		return nil, models.ErrInvalidToken
	}
	pair, err := s.tokens.Pair(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("service.Refresh: %w", err)
	}
	return pair, nil
}

// ApproveRunner flips a runner's approval flag (admin operation).
func (s *Service) ApproveRunner(ctx context.Context, runnerID string) error {
	if err := s.repo.ApproveRunner(ctx, runnerID); err != nil {
		return fmt.Errorf("service.ApproveRunner: %w", err)
	}
	return nil
}

// CurrentUser loads the account behind a validated token; used by the
// middleware to re-check account state per request.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// randomToken returns a 64-hex-char single-use token.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// randomOTP returns a 6-digit one-time code.
func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
