package errand

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"errand-marketplace/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryInterface defines the contract for errand persistence. The store
// is the single source of truth: accept and rate are conditional updates so
// racing callers resolve to exactly one winner.
type RepositoryInterface interface {
	Create(ctx context.Context, e *models.Errand) (*models.Errand, error)
	FindByID(ctx context.Context, errandID string) (*models.Errand, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*models.Errand, error)
	ListByRunner(ctx context.Context, runnerID string) ([]*models.Errand, error)
	ListPendingUnassigned(ctx context.Context) ([]*models.Errand, error)
	ListAll(ctx context.Context, page, limit int) ([]*models.Errand, int, error)
	AcceptIfPending(ctx context.Context, errandID, runnerID string) (*models.Errand, error)
	Update(ctx context.Context, e *models.Errand) error
	AppendTracking(ctx context.Context, errandID string, entry models.TrackingEntry) error
	SetRating(ctx context.Context, errandID string, rating models.Rating) error
	MarkPaid(ctx context.Context, errandID, method, reference string) error
}

// Repository implements RepositoryInterface over pgx.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new errand repository.
func NewRepository(db *pgxpool.Pool) RepositoryInterface {
	return &Repository{db: db}
}

const errandColumns = `
	id, customer_id, runner_id, type, priority, status,
	pickup_location, dropoff_location, items, special_instructions,
	estimated_distance, estimated_duration,
	base_price, priority_fee, service_fee, total_price,
	payment_status, payment_method, payment_reference,
	rating_stars, rating_comment, rated_at,
	tracking, scheduled_for, completed_at,
	cancelled_at, cancellation_reason, cancellation_by,
	created_at, updated_at`

// Create inserts a new pending errand and returns the stored row.
func (r *Repository) Create(ctx context.Context, e *models.Errand) (*models.Errand, error) {
	query := `
		INSERT INTO errands (
			customer_id, type, priority, status,
			pickup_location, dropoff_location, items, special_instructions,
			estimated_distance, estimated_duration,
			base_price, priority_fee, service_fee, total_price,
			payment_status, scheduled_for
		)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'pending', $14)
		RETURNING` + errandColumns

	row := r.db.QueryRow(ctx, query,
		e.Customer, e.Type, e.Priority,
		e.PickupLocation, e.DropoffLocation, e.Items, e.SpecialInstructions,
		e.EstimatedDistance, e.EstimatedDuration,
		e.BasePrice, e.PriorityFee, e.ServiceFee, e.TotalPrice,
		e.ScheduledFor,
	)
	created, err := scanErrand(row)
	if err != nil {
		return nil, fmt.Errorf("repository.Create: %w", err)
	}
	return created, nil
}

// scanErrand maps a row onto the Errand model, folding the rating columns
// into the optional Rating value.
func scanErrand(row pgx.Row) (*models.Errand, error) {
	var e models.Errand
	var runnerID, paymentMethod, paymentReference, ratingComment, cancellationReason, cancellationBy sql.NullString
	var ratingStars sql.NullInt32
	var ratedAt sql.NullTime
	var instructions sql.NullString

	err := row.Scan(
		&e.ID, &e.Customer, &runnerID, &e.Type, &e.Priority, &e.Status,
		&e.PickupLocation, &e.DropoffLocation, &e.Items, &instructions,
		&e.EstimatedDistance, &e.EstimatedDuration,
		&e.BasePrice, &e.PriorityFee, &e.ServiceFee, &e.TotalPrice,
		&e.PaymentStatus, &paymentMethod, &paymentReference,
		&ratingStars, &ratingComment, &ratedAt,
		&e.Tracking, &e.ScheduledFor, &e.CompletedAt,
		&e.CancelledAt, &cancellationReason, &cancellationBy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan errand: %w", err)
	}

	if runnerID.Valid {
		e.Runner = &runnerID.String
	}
	e.SpecialInstructions = instructions.String
	e.PaymentMethod = paymentMethod.String
	e.PaymentReference = paymentReference.String
	e.CancellationReason = cancellationReason.String
	e.CancellationBy = cancellationBy.String
	if ratingStars.Valid {
		e.Rating = &models.Rating{
			Stars:     int(ratingStars.Int32),
			Comment:   ratingComment.String,
			CreatedAt: ratedAt.Time,
		}
	}
	return &e, nil
}

// FindByID retrieves a single errand.
func (r *Repository) FindByID(ctx context.Context, errandID string) (*models.Errand, error) {
	query := `SELECT` + errandColumns + ` FROM errands WHERE id = $1`
	e, err := scanErrand(r.db.QueryRow(ctx, query, errandID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("repository.FindByID: %w", err)
	}
	return e, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*models.Errand, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var errands []*models.Errand
	for rows.Next() {
		e, err := scanErrand(rows)
		if err != nil {
			return nil, err
		}
		errands = append(errands, e)
	}
	return errands, rows.Err()
}

// ListByCustomer returns a customer's errands, newest first.
func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]*models.Errand, error) {
	query := `SELECT` + errandColumns + ` FROM errands WHERE customer_id = $1 ORDER BY created_at DESC`
	errands, err := r.list(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByCustomer: %w", err)
	}
	return errands, nil
}

// ListByRunner returns the errands a runner has taken, newest first.
func (r *Repository) ListByRunner(ctx context.Context, runnerID string) ([]*models.Errand, error) {
	query := `SELECT` + errandColumns + ` FROM errands WHERE runner_id = $1 ORDER BY created_at DESC`
	errands, err := r.list(ctx, query, runnerID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByRunner: %w", err)
	}
	return errands, nil
}

// ListPendingUnassigned returns errands still waiting for a runner.
func (r *Repository) ListPendingUnassigned(ctx context.Context) ([]*models.Errand, error) {
	query := `SELECT` + errandColumns + ` FROM errands WHERE status = 'pending' AND runner_id IS NULL ORDER BY created_at ASC`
	errands, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository.ListPendingUnassigned: %w", err)
	}
	return errands, nil
}

// ListAll retrieves all errands with pagination (for admin use).
func (r *Repository) ListAll(ctx context.Context, page, limit int) ([]*models.Errand, int, error) {
	offset := (page - 1) * limit
	query := `SELECT` + errandColumns + ` FROM errands ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	errands, err := r.list(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM errands`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListAll.Count: %w", err)
	}
	return errands, total, nil
}

// AcceptIfPending assigns a runner only if the errand is still pending. Two
// runners racing to accept resolve here: one row update wins, the loser gets
// ErrInvalidTransition (or ErrNotFound if the errand never existed).
func (r *Repository) AcceptIfPending(ctx context.Context, errandID, runnerID string) (*models.Errand, error) {
	query := `
		UPDATE errands
		SET runner_id = $2, status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING` + errandColumns

	e, err := scanErrand(r.db.QueryRow(ctx, query, errandID, runnerID))
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("repository.AcceptIfPending: %w", err)
	}

	// No pending row matched: distinguish a lost race from a missing errand.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM errands WHERE id = $1)`, errandID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("repository.AcceptIfPending: %w", err)
	}
	if !exists {
		return nil, models.ErrNotFound
	}
	return nil, models.ErrInvalidTransition
}

// Update persists the mutable lifecycle fields of an errand.
func (r *Repository) Update(ctx context.Context, e *models.Errand) error {
	query := `
		UPDATE errands
		SET status = $2, payment_status = $3,
		    completed_at = $4, cancelled_at = $5,
		    cancellation_reason = NULLIF($6, ''), cancellation_by = NULLIF($7, ''),
		    updated_at = NOW()
		WHERE id = $1`

	cmdTag, err := r.db.Exec(ctx, query,
		e.ID, e.Status, e.PaymentStatus,
		e.CompletedAt, e.CancelledAt,
		e.CancellationReason, e.CancellationBy,
	)
	if err != nil {
		return fmt.Errorf("repository.Update: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AppendTracking appends one tracking entry to the errand's history. The
// history is append-only; nothing ever rewrites earlier entries.
func (r *Repository) AppendTracking(ctx context.Context, errandID string, entry models.TrackingEntry) error {
	raw, err := json.Marshal([]models.TrackingEntry{entry})
	if err != nil {
		return fmt.Errorf("repository.AppendTracking: %w", err)
	}
	query := `UPDATE errands SET tracking = tracking || $2::jsonb, updated_at = NOW() WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, errandID, raw)
	if err != nil {
		return fmt.Errorf("repository.AppendTracking: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetRating stores the rating only when the errand is completed and not yet
// rated, so a rating lands exactly once per errand.
func (r *Repository) SetRating(ctx context.Context, errandID string, rating models.Rating) error {
	query := `
		UPDATE errands
		SET rating_stars = $2, rating_comment = NULLIF($3, ''), rated_at = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'completed' AND rating_stars IS NULL`

	cmdTag, err := r.db.Exec(ctx, query, errandID, rating.Stars, rating.Comment, rating.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository.SetRating: %w", err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// Classify the refusal for the caller.
	var status string
	var stars sql.NullInt32
	err = r.db.QueryRow(ctx, `SELECT status, rating_stars FROM errands WHERE id = $1`, errandID).Scan(&status, &stars)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		return fmt.Errorf("repository.SetRating: %w", err)
	}
	if status != models.StatusCompleted {
		return models.ErrNotRatable
	}
	return models.ErrAlreadyRated
}

// MarkPaid records a successful charge, once.
func (r *Repository) MarkPaid(ctx context.Context, errandID, method, reference string) error {
	query := `
		UPDATE errands
		SET payment_status = 'paid', payment_method = $2, payment_reference = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`

	cmdTag, err := r.db.Exec(ctx, query, errandID, method, reference)
	if err != nil {
		return fmt.Errorf("repository.MarkPaid: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return models.ErrNotPayable
	}
	return nil
}
