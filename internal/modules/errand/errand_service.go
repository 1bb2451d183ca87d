package errand

import (
	"context"
	"fmt"
	"log"
	"time"

	"errand-marketplace/internal/models"
	"errand-marketplace/internal/observability"
	"errand-marketplace/pkg/geo"
)

// RunnerSearchRadiusKm is how far from the pickup point we look for runners
// to notify about a new errand.
const RunnerSearchRadiusKm = 5.0

// runnerNotifyLimit caps the fan-out of new-errand SMS messages.
const runnerNotifyLimit = 25

// notifyTimeout bounds the detached new-errand fan-out; each SMS call has
// its own shorter transport timeout underneath.
const notifyTimeout = 10 * time.Second

// UserStoreInterface is the slice of the user repository the errand service
// needs: party lookups plus the atomic runner-stat updates.
type UserStoreInterface interface {
	FindByID(ctx context.Context, userID string) (*models.User, error)
	FindByIDs(ctx context.Context, userIDs []string) ([]*models.User, error)
	CreditRunner(ctx context.Context, runnerID string, amount float64) error
	ApplyRunnerRating(ctx context.Context, runnerID string, stars int) error
	UpdateRunnerCoordinates(ctx context.Context, runnerID string, lon, lat float64) error
}

// NotifierInterface is the capability interface over email/SMS transports.
// Failures returned here are downgraded to warnings; a notification never
// rolls back a state change that already committed.
type NotifierInterface interface {
	NotifyRunnerOfNewErrand(ctx context.Context, phone, errandType string, distanceKm float64) error
	NotifyAcceptance(ctx context.Context, customerPhone, runnerFirstName string) error
	NotifyProgress(ctx context.Context, customerPhone string, etaMinutes int) error
	NotifyCompletion(ctx context.Context, customerPhone string) error
	NotifyCancellation(ctx context.Context, phone, reason string) error
}

// RunnerIndexInterface is the external geo-indexed runner lookup.
type RunnerIndexInterface interface {
	Upsert(ctx context.Context, runnerID string, pt geo.Point) error
	Nearby(ctx context.Context, pt geo.Point, radiusKm float64, limit int) ([]geo.RunnerPosition, error)
}

// PaymentServiceInterface defines the contract for the payment processor.
type PaymentServiceInterface interface {
	Charge(ctx context.Context, userID string, amount float64, currency string) (string, error)
	Refund(ctx context.Context, paymentReference string) error
}

// ServiceInterface defines the contract for the errand lifecycle service.
type ServiceInterface interface {
	Create(ctx context.Context, customerID string, req models.CreateErrandRequest) (*models.Errand, error)
	Get(ctx context.Context, errandID, userID, role string) (*models.Errand, error)
	ListForCustomer(ctx context.Context, customerID string) ([]*models.Errand, error)
	ListForRunner(ctx context.Context, runnerID string) ([]*models.Errand, error)
	ListAvailable(ctx context.Context, runnerPos geo.Point, radiusKm float64) ([]*models.Errand, error)
	ListAll(ctx context.Context, page, limit int) ([]*models.Errand, int, error)
	Accept(ctx context.Context, errandID, runnerID string) (*models.Errand, error)
	UpdateStatus(ctx context.Context, errandID, actorID, actorRole string, req models.UpdateStatusRequest) (*models.Errand, error)
	Rate(ctx context.Context, errandID, customerID string, req models.RateErrandRequest) (*models.Errand, error)
	Pay(ctx context.Context, errandID, customerID string, req models.PayErrandRequest) (*models.Errand, error)
	UpdateRunnerLocation(ctx context.Context, runnerID string, pt geo.Point) error
}

// Service implements the errand lifecycle logic.
type Service struct {
	repo        RepositoryInterface
	users       UserStoreInterface
	notifier    NotifierInterface
	runnerIndex RunnerIndexInterface
	payments    PaymentServiceInterface
	currency    string
}

// NewService creates a new errand service.
func NewService(repo RepositoryInterface, users UserStoreInterface, notifier NotifierInterface, runnerIndex RunnerIndexInterface, payments PaymentServiceInterface, currency string) *Service {
	return &Service{
		repo:        repo,
		users:       users,
		notifier:    notifier,
		runnerIndex: runnerIndex,
		payments:    payments,
		currency:    currency,
	}
}

// Create validates the request, prices the errand from the pickup/dropoff
// distance, persists it as pending and notifies nearby runners.
func (s *Service) Create(ctx context.Context, customerID string, req models.CreateErrandRequest) (*models.Errand, error) {
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	distance := geo.Distance(geo.Point(req.PickupLocation.Coordinates), geo.Point(req.DropoffLocation.Coordinates))
	pricing, err := Quote(distance, req.Type, priority)
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}

	e := &models.Errand{
		Customer:            customerID,
		Type:                req.Type,
		Priority:            priority,
		PickupLocation:      req.PickupLocation,
		DropoffLocation:     req.DropoffLocation,
		Items:               req.Items,
		SpecialInstructions: req.SpecialInstructions,
		EstimatedDistance:   distance,
		EstimatedDuration:   EstimateDuration(distance),
		BasePrice:           pricing.BasePrice,
		PriorityFee:         pricing.PriorityFee,
		ServiceFee:          pricing.ServiceFee,
		TotalPrice:          pricing.TotalPrice,
		ScheduledFor:        req.ScheduledFor,
	}

	created, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("service.Create: %w", err)
	}
	observability.ErrandsCreatedTotal.Inc()

	// The fan-out leaves the request path; the request context dies with the
	// handler, so the goroutine carries its own deadline.
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.notifyNearbyRunners(nctx, created)
	}()

	return created, nil
}

// notifyNearbyRunners fans one SMS out to each approved runner within the
// search radius of the pickup point. Lookup or transport failures are logged
// and counted, never returned: the errand is already created.
func (s *Service) notifyNearbyRunners(ctx context.Context, e *models.Errand) {
	pickup := geo.Point(e.PickupLocation.Coordinates)
	positions, err := s.runnerIndex.Nearby(ctx, pickup, RunnerSearchRadiusKm, runnerNotifyLimit)
	if err != nil {
		log.Printf("WARN: errand %s: nearby runner lookup failed: %v", e.ID, err)
		observability.NotificationsTotal.WithLabelValues("failure").Inc()
		return
	}
	if len(positions) == 0 {
		return
	}

	ids := make([]string, 0, len(positions))
	for _, p := range positions {
		ids = append(ids, p.RunnerID)
	}
	runners, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		log.Printf("WARN: errand %s: loading nearby runners failed: %v", e.ID, err)
		observability.NotificationsTotal.WithLabelValues("failure").Inc()
		return
	}

	for _, runner := range runners {
		if runner.RunnerProfile == nil || !runner.RunnerProfile.IsApproved || !runner.IsActive {
			continue
		}
		s.notify(func() error {
			return s.notifier.NotifyRunnerOfNewErrand(ctx, runner.Phone, e.Type, e.EstimatedDistance)
		})
	}
}

// notify runs one dispatch, downgrading failure to a logged warning.
func (s *Service) notify(send func() error) {
	if err := send(); err != nil {
		log.Printf("WARN: notification dispatch failed: %v", err)
		observability.NotificationsTotal.WithLabelValues("failure").Inc()
		return
	}
	observability.NotificationsTotal.WithLabelValues("success").Inc()
}

// Get retrieves an errand, visible only to its parties and admins.
func (s *Service) Get(ctx context.Context, errandID, userID, role string) (*models.Errand, error) {
	e, err := s.repo.FindByID(ctx, errandID)
	if err != nil {
		return nil, fmt.Errorf("service.Get: %w", err)
	}
	if !canView(e, userID, role) {
		return nil, models.ErrForbidden
	}
	return e, nil
}

// canView is the permission check over (actor role, resource ownership).
func canView(e *models.Errand, userID, role string) bool {
	if role == models.RoleAdmin {
		return true
	}
	if e.Customer == userID {
		return true
	}
	return e.Runner != nil && *e.Runner == userID
}

// ListForCustomer returns the errands a customer has posted.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]*models.Errand, error) {
	errands, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("service.ListForCustomer: %w", err)
	}
	return errands, nil
}

// ListForRunner returns the errands a runner has taken.
func (s *Service) ListForRunner(ctx context.Context, runnerID string) ([]*models.Errand, error) {
	errands, err := s.repo.ListByRunner(ctx, runnerID)
	if err != nil {
		return nil, fmt.Errorf("service.ListForRunner: %w", err)
	}
	return errands, nil
}

// ListAvailable returns pending unassigned errands whose pickup point lies
// within radiusKm of the runner's position.
func (s *Service) ListAvailable(ctx context.Context, runnerPos geo.Point, radiusKm float64) ([]*models.Errand, error) {
	if radiusKm <= 0 {
		radiusKm = RunnerSearchRadiusKm
	}
	pending, err := s.repo.ListPendingUnassigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.ListAvailable: %w", err)
	}
	available := make([]*models.Errand, 0, len(pending))
	for _, e := range pending {
		if geo.WithinRadius(runnerPos, geo.Point(e.PickupLocation.Coordinates), radiusKm) {
			available = append(available, e)
		}
	}
	return available, nil
}

// ListAll lists every errand in the system, paginated.
func (s *Service) ListAll(ctx context.Context, page, limit int) ([]*models.Errand, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return s.repo.ListAll(ctx, page, limit)
}

// Accept assigns the errand to a runner. The repository performs the
// conditional update, so exactly one of any concurrent callers wins.
func (s *Service) Accept(ctx context.Context, errandID, runnerID string) (*models.Errand, error) {
	runner, err := s.users.FindByID(ctx, runnerID)
	if err != nil {
		return nil, fmt.Errorf("service.Accept: %w", err)
	}
	if runner.RunnerProfile == nil || !runner.RunnerProfile.IsApproved {
		return nil, models.ErrRunnerNotApproved
	}

	e, err := s.repo.AcceptIfPending(ctx, errandID, runnerID)
	if err != nil {
		return nil, fmt.Errorf("service.Accept: %w", err)
	}
	observability.StatusTransitionsTotal.WithLabelValues(models.StatusAccepted).Inc()

	if customer, cerr := s.users.FindByID(ctx, e.Customer); cerr == nil {
		s.notify(func() error {
			return s.notifier.NotifyAcceptance(ctx, customer.Phone, runner.FirstName)
		})
	} else {
		log.Printf("WARN: errand %s: loading customer for acceptance notice failed: %v", e.ID, cerr)
	}

	return e, nil
}

// UpdateStatus applies a status change after checking the transition table
// and the actor's permission, appends a tracking entry when a location is
// reported, then runs the status-specific side effects.
func (s *Service) UpdateStatus(ctx context.Context, errandID, actorID, actorRole string, req models.UpdateStatusRequest) (*models.Errand, error) {
	e, err := s.repo.FindByID(ctx, errandID)
	if err != nil {
		return nil, fmt.Errorf("service.UpdateStatus: %w", err)
	}

	if !canTransition(e, actorID, actorRole, req.Status) {
		return nil, models.ErrForbidden
	}
	// Acceptance only happens through Accept, which assigns the runner in the
	// same conditional update. Reaching accepted here would leave the errand
	// without one.
	if req.Status == models.StatusAccepted {
		return nil, models.ErrInvalidTransition
	}
	if !ValidTransition(e.Status, req.Status) {
		return nil, models.ErrInvalidTransition
	}
	if req.Status == models.StatusCancelled && req.Reason == "" {
		return nil, models.ErrReasonRequired
	}

	if req.Location != nil {
		entry := models.TrackingEntry{
			Location:  *req.Location,
			Status:    req.Status,
			Timestamp: time.Now().UTC(),
		}
		if err := s.repo.AppendTracking(ctx, errandID, entry); err != nil {
			return nil, fmt.Errorf("service.UpdateStatus: %w", err)
		}
		e.Tracking = append(e.Tracking, entry)
	}

	e.Status = req.Status
	switch req.Status {
	case models.StatusInProgress:
		s.handleProgress(ctx, e)
	case models.StatusCompleted:
		s.handleCompletion(ctx, e)
	case models.StatusCancelled:
		s.handleCancellation(ctx, e, actorRole, req.Reason)
	}

	if err := s.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("service.UpdateStatus: %w", err)
	}
	observability.StatusTransitionsTotal.WithLabelValues(req.Status).Inc()

	return e, nil
}

// canTransition scopes status changes per role: the assigned runner drives
// the forward path, the customer may only cancel their own errand, admins
// may do either.
func canTransition(e *models.Errand, actorID, role, newStatus string) bool {
	switch role {
	case models.RoleAdmin:
		return true
	case models.RoleRunner:
		return e.Runner != nil && *e.Runner == actorID
	case models.RoleCustomer:
		return e.Customer == actorID && newStatus == models.StatusCancelled
	}
	return false
}

// handleProgress notifies the customer with an ETA computed from the last
// tracking point to the dropoff.
func (s *Service) handleProgress(ctx context.Context, e *models.Errand) {
	eta := e.EstimatedDuration
	if n := len(e.Tracking); n > 0 {
		last := geo.Point(e.Tracking[n-1].Location)
		dropoff := geo.Point(e.DropoffLocation.Coordinates)
		eta = geo.ETAMinutes(geo.Distance(last, dropoff), geo.DefaultSpeedKmh)
	}

	customer, err := s.users.FindByID(ctx, e.Customer)
	if err != nil {
		log.Printf("WARN: errand %s: loading customer for progress notice failed: %v", e.ID, err)
		return
	}
	s.notify(func() error {
		return s.notifier.NotifyProgress(ctx, customer.Phone, eta)
	})
}

// handleCompletion stamps completedAt, credits the runner once and asks the
// customer to rate.
func (s *Service) handleCompletion(ctx context.Context, e *models.Errand) {
	now := time.Now().UTC()
	e.CompletedAt = &now

	if e.Runner != nil {
		if err := s.users.CreditRunner(ctx, *e.Runner, e.TotalPrice); err != nil {
			log.Printf("CRITICAL: errand %s: crediting runner %s failed: %v", e.ID, *e.Runner, err)
		}
	}

	if customer, err := s.users.FindByID(ctx, e.Customer); err == nil {
		s.notify(func() error {
			return s.notifier.NotifyCompletion(ctx, customer.Phone)
		})
	} else {
		log.Printf("WARN: errand %s: loading customer for completion notice failed: %v", e.ID, err)
	}
}

// handleCancellation stamps the cancellation fields, refunds a paid errand
// and notifies both parties.
func (s *Service) handleCancellation(ctx context.Context, e *models.Errand, actorRole, reason string) {
	now := time.Now().UTC()
	e.CancelledAt = &now
	e.CancellationBy = actorRole
	e.CancellationReason = reason

	if e.PaymentStatus == models.PaymentPaid && e.PaymentReference != "" {
		if err := s.payments.Refund(ctx, e.PaymentReference); err != nil {
			log.Printf("CRITICAL: errand %s: refund of %s failed: %v", e.ID, e.PaymentReference, err)
		} else {
			e.PaymentStatus = models.PaymentRefunded
			observability.RefundsTotal.Inc()
		}
	}

	if customer, err := s.users.FindByID(ctx, e.Customer); err == nil {
		s.notify(func() error {
			return s.notifier.NotifyCancellation(ctx, customer.Phone, reason)
		})
	}
	if e.Runner != nil {
		if runner, err := s.users.FindByID(ctx, *e.Runner); err == nil {
			s.notify(func() error {
				return s.notifier.NotifyCancellation(ctx, runner.Phone, reason)
			})
		}
	}
}

// Rate stores a one-time rating on a completed errand and folds the stars
// into the runner's running average.
func (s *Service) Rate(ctx context.Context, errandID, customerID string, req models.RateErrandRequest) (*models.Errand, error) {
	e, err := s.repo.FindByID(ctx, errandID)
	if err != nil {
		return nil, fmt.Errorf("service.Rate: %w", err)
	}
	if e.Customer != customerID {
		return nil, models.ErrForbidden
	}

	rating := models.Rating{
		Stars:     req.Stars,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SetRating(ctx, errandID, rating); err != nil {
		return nil, fmt.Errorf("service.Rate: %w", err)
	}
	e.Rating = &rating

	if e.Runner != nil {
		if err := s.users.ApplyRunnerRating(ctx, *e.Runner, req.Stars); err != nil {
			log.Printf("CRITICAL: errand %s: applying rating to runner %s failed: %v", e.ID, *e.Runner, err)
		}
	}
	return e, nil
}

// Pay charges the customer for a pending-payment errand and records the
// provider reference.
func (s *Service) Pay(ctx context.Context, errandID, customerID string, req models.PayErrandRequest) (*models.Errand, error) {
	e, err := s.repo.FindByID(ctx, errandID)
	if err != nil {
		return nil, fmt.Errorf("service.Pay: %w", err)
	}
	if e.Customer != customerID {
		return nil, models.ErrForbidden
	}
	if e.PaymentStatus != models.PaymentPending || e.Status == models.StatusCancelled {
		return nil, models.ErrNotPayable
	}

	reference, err := s.payments.Charge(ctx, customerID, e.TotalPrice, s.currency)
	if err != nil {
		return nil, fmt.Errorf("service.Pay: payment processing failed: %w", err)
	}

	if err := s.repo.MarkPaid(ctx, errandID, req.PaymentMethod, reference); err != nil {
		// The charge went through but the record did not update. Surface
		// loudly; the reference is needed for manual reconciliation.
		log.Printf("CRITICAL: errand %s: charge %s succeeded but MarkPaid failed: %v", e.ID, reference, err)
		return nil, fmt.Errorf("service.Pay: %w", err)
	}

	e.PaymentStatus = models.PaymentPaid
	e.PaymentMethod = req.PaymentMethod
	e.PaymentReference = reference
	return e, nil
}

// UpdateRunnerLocation feeds the geo index and mirrors the position onto the
// runner's record.
func (s *Service) UpdateRunnerLocation(ctx context.Context, runnerID string, pt geo.Point) error {
	if err := s.runnerIndex.Upsert(ctx, runnerID, pt); err != nil {
		return fmt.Errorf("service.UpdateRunnerLocation: %w", err)
	}
	if err := s.users.UpdateRunnerCoordinates(ctx, runnerID, pt.Longitude(), pt.Latitude()); err != nil {
		return fmt.Errorf("service.UpdateRunnerLocation: %w", err)
	}
	return nil
}
