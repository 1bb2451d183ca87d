package models

import "time"

// User roles.
const (
	RoleCustomer = "customer"
	RoleRunner   = "runner"
	RoleAdmin    = "admin"
)

// RunnerProfile carries the runner-specific account state. Earnings, ratings
// and completed task counts are mutated only through atomic repository
// updates, never read-modify-write in the service layer.
type RunnerProfile struct {
	IsApproved     bool    `json:"is_approved"`
	VehicleType    string  `json:"vehicle_type,omitempty"` // bicycle, motorcycle, car, walking
	Rating         float64 `json:"rating"`
	TotalRatings   int     `json:"total_ratings"`
	Earnings       float64 `json:"earnings"`
	CompletedTasks int     `json:"completed_tasks"`
}

// User is an account. PasswordHash never crosses the API boundary.
type User struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	IsVerified   bool   `json:"is_verified"`
	IsActive     bool   `json:"is_active"`

	RunnerProfile *RunnerProfile `json:"runner_profile,omitempty"`
	WalletBalance float64        `json:"wallet_balance,omitempty"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required,e164"`
	Password  string `json:"password" validate:"required,min=8"`
	Role      string `json:"role" validate:"omitempty,oneof=customer runner"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of PATCH /auth/reset-password/:token.
type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8"`
}

// RefreshTokenRequest is the body of POST /auth/refresh-token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenPair is returned by login, register, reset and refresh.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}
