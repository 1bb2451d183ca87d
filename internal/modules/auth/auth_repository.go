package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"errand-marketplace/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// RepositoryInterface defines the contract for user persistence. Runner
// stat mutations (earnings, ratings) are single UPDATE expressions so
// concurrent completions and ratings cannot lose updates.
type RepositoryInterface interface {
	CreateUser(ctx context.Context, u *models.User, verificationToken string, verificationExpires time.Time) (*models.User, error)
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	MarkVerified(ctx context.Context, userID string) error
	SetResetToken(ctx context.Context, userID, token string, expires time.Time) error
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID string) error
	ApproveRunner(ctx context.Context, runnerID string) error
	CreditRunner(ctx context.Context, runnerID string, amount float64) error
	ApplyRunnerRating(ctx context.Context, runnerID string, stars int) error
	UpdateRunnerCoordinates(ctx context.Context, runnerID string, lon, lat float64) error
}

// Repository implements RepositoryInterface over pgx.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new user repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const userColumns = `
	id, first_name, last_name, email, phone, password_hash, role,
	is_verified, is_active,
	runner_is_approved, runner_vehicle_type, runner_rating,
	runner_total_ratings, runner_earnings, runner_completed_tasks,
	wallet_balance, last_login, created_at, updated_at`

// CreateUser inserts a new unverified account. A duplicate email or phone
// maps to ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, u *models.User, verificationToken string, verificationExpires time.Time) (*models.User, error) {
	query := `
		INSERT INTO users (
			first_name, last_name, email, phone, password_hash, role,
			email_verification_token, email_verification_expires
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING` + userColumns

	row := r.db.QueryRow(ctx, query,
		u.FirstName, u.LastName, u.Email, u.Phone, u.PasswordHash, u.Role,
		verificationToken, verificationExpires,
	)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, models.ErrConflict
		}
		return nil, fmt.Errorf("repository.CreateUser: %w", err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var vehicleType sql.NullString
	var isApproved bool
	var rating, earnings float64
	var totalRatings, completedTasks int

	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &u.Role,
		&u.IsVerified, &u.IsActive,
		&isApproved, &vehicleType, &rating,
		&totalRatings, &earnings, &completedTasks,
		&u.WalletBalance, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if u.Role == models.RoleRunner {
		u.RunnerProfile = &models.RunnerProfile{
			IsApproved:     isApproved,
			VehicleType:    vehicleType.String,
			Rating:         rating,
			TotalRatings:   totalRatings,
			Earnings:       earnings,
			CompletedTasks: completedTasks,
		}
	}
	return &u, nil
}

// FindByID retrieves a single user.
func (r *Repository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return u, nil
}

// FindByIDs retrieves a batch of users; missing IDs are silently skipped.
func (r *Repository) FindByIDs(ctx context.Context, userIDs []string) ([]*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE id = ANY($1)`
	rows, err := r.db.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByIDs: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.FindByIDs: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// FindByEmail retrieves a user by email, hash included, for login.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users WHERE email = LOWER($1)`
	u, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByEmail: %w", err)
	}
	return u, nil
}

// FindByVerificationToken matches an unexpired email verification token.
func (r *Repository) FindByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users
		WHERE email_verification_token = $1 AND email_verification_expires > NOW()`
	u, err := scanUser(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		return nil, fmt.Errorf("repository.FindByVerificationToken: %w", err)
	}
	return u, nil
}

// MarkVerified flips the verification flag and clears the token.
func (r *Repository) MarkVerified(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET is_verified = TRUE, email_verification_token = NULL,
		    email_verification_expires = NULL, updated_at = NOW()
		WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("repository.MarkVerified: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetResetToken stores a short-lived password reset token.
func (r *Repository) SetResetToken(ctx context.Context, userID, token string, expires time.Time) error {
	query := `
		UPDATE users
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW()
		WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, userID, token, expires)
	if err != nil {
		return fmt.Errorf("repository.SetResetToken: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// FindByResetToken matches an unexpired password reset token.
func (r *Repository) FindByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT` + userColumns + ` FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > NOW()`
	u, err := scanUser(r.db.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidToken
		}
		return nil, fmt.Errorf("repository.FindByResetToken: %w", err)
	}
	return u, nil
}

// UpdatePassword swaps the hash and clears any reset token.
func (r *Repository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_reset_token = NULL,
		    password_reset_expires = NULL, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("repository.UpdatePassword: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateLastLogin stamps a successful login.
func (r *Repository) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("repository.UpdateLastLogin: %w", err)
	}
	return nil
}

// ApproveRunner flips a runner account's approval flag.
func (r *Repository) ApproveRunner(ctx context.Context, runnerID string) error {
	query := `UPDATE users SET runner_is_approved = TRUE, updated_at = NOW() WHERE id = $1 AND role = 'runner'`
	cmdTag, err := r.db.Exec(ctx, query, runnerID)
	if err != nil {
		return fmt.Errorf("repository.ApproveRunner: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CreditRunner adds a completed errand's price to the runner's earnings and
// bumps the completed task count in one statement.
func (r *Repository) CreditRunner(ctx context.Context, runnerID string, amount float64) error {
	query := `
		UPDATE users
		SET runner_earnings = runner_earnings + $2,
		    runner_completed_tasks = runner_completed_tasks + 1,
		    updated_at = NOW()
		WHERE id = $1 AND role = 'runner'`
	cmdTag, err := r.db.Exec(ctx, query, runnerID, amount)
	if err != nil {
		return fmt.Errorf("repository.CreditRunner: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ApplyRunnerRating folds one rating into the runner's running average as a
// single accumulate-and-divide expression, so concurrent ratings never lose
// updates.
func (r *Repository) ApplyRunnerRating(ctx context.Context, runnerID string, stars int) error {
	query := `
		UPDATE users
		SET runner_rating = (runner_rating * runner_total_ratings + $2) / (runner_total_ratings + 1),
		    runner_total_ratings = runner_total_ratings + 1,
		    updated_at = NOW()
		WHERE id = $1 AND role = 'runner'`
	cmdTag, err := r.db.Exec(ctx, query, runnerID, float64(stars))
	if err != nil {
		return fmt.Errorf("repository.ApplyRunnerRating: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdateRunnerCoordinates mirrors the runner's latest reported position.
func (r *Repository) UpdateRunnerCoordinates(ctx context.Context, runnerID string, lon, lat float64) error {
	query := `UPDATE users SET runner_longitude = $2, runner_latitude = $3, updated_at = NOW() WHERE id = $1 AND role = 'runner'`
	cmdTag, err := r.db.Exec(ctx, query, runnerID, lon, lat)
	if err != nil {
		return fmt.Errorf("repository.UpdateRunnerCoordinates: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
