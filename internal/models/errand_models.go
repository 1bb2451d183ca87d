package models

import "time"

// Errand statuses. The allowed transitions between them live in the errand
// module's transition table; completed and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Errand types.
const (
	TypeDelivery = "delivery"
	TypeShopping = "shopping"
	TypeDocument = "document"
	TypeRepair   = "repair"
)

// Priorities.
const (
	PriorityNormal   = "normal"
	PriorityPriority = "priority"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Location is a pickup or dropoff point. Coordinates are a [longitude,
// latitude] pair in decimal degrees, matching the GeoJSON ordering.
type Location struct {
	Address     string     `json:"address" validate:"required"`
	City        string     `json:"city" validate:"required"`
	State       string     `json:"state" validate:"required"`
	Country     string     `json:"country" validate:"required"`
	Coordinates [2]float64 `json:"coordinates" validate:"required"`
}

// Item is a single line item carried or purchased during an errand.
type Item struct {
	Name     string  `json:"name" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Price    float64 `json:"price" validate:"gte=0"`
}

// Rating is a one-time customer rating on a completed errand.
type Rating struct {
	Stars     int       `json:"stars"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackingEntry is an append-only record of where the errand was when a
// status update came in.
type TrackingEntry struct {
	Location  [2]float64 `json:"location"`
	Status    string     `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Errand is a requested task tracked through the fixed lifecycle.
type Errand struct {
	ID       string  `json:"id"`
	Customer string  `json:"customer"`
	Runner   *string `json:"runner,omitempty"`
	Type     string  `json:"type"`
	Priority string  `json:"priority"`
	Status   string  `json:"status"`

	PickupLocation  Location `json:"pickup_location"`
	DropoffLocation Location `json:"dropoff_location"`

	Items               []Item `json:"items,omitempty"`
	SpecialInstructions string `json:"special_instructions,omitempty"`

	// Distance/duration/pricing are computed once at creation and never
	// recomputed on later mutations.
	EstimatedDistance float64 `json:"estimated_distance"` // km
	EstimatedDuration int     `json:"estimated_duration"` // minutes
	BasePrice         float64 `json:"base_price"`
	PriorityFee       float64 `json:"priority_fee"`
	ServiceFee        float64 `json:"service_fee"`
	TotalPrice        float64 `json:"total_price"`

	PaymentStatus    string `json:"payment_status"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`

	Rating   *Rating         `json:"rating,omitempty"`
	Tracking []TrackingEntry `json:"tracking,omitempty"`

	ScheduledFor       *time.Time `json:"scheduled_for,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CancellationBy     string     `json:"cancellation_by,omitempty"` // customer, runner or admin

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the errand has reached a terminal status.
func (e *Errand) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusCancelled
}

// CreateErrandRequest is the body of POST /errands.
type CreateErrandRequest struct {
	Type                string     `json:"type" validate:"required,oneof=delivery shopping document repair"`
	Priority            string     `json:"priority" validate:"omitempty,oneof=normal priority"`
	PickupLocation      Location   `json:"pickup_location" validate:"required"`
	DropoffLocation     Location   `json:"dropoff_location" validate:"required"`
	Items               []Item     `json:"items" validate:"omitempty,dive"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty"`
}

// UpdateStatusRequest is the body of PATCH /errands/:id/status.
type UpdateStatusRequest struct {
	Status   string      `json:"status" validate:"required,oneof=accepted in_progress completed cancelled"`
	Location *[2]float64 `json:"location,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// RateErrandRequest is the body of POST /errands/:id/rate.
type RateErrandRequest struct {
	Stars   int    `json:"stars" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

// PayErrandRequest is the body of POST /errands/:id/pay.
type PayErrandRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=wallet card bank_transfer"`
}

// RunnerLocationRequest reports a runner's current position for the geo index.
type RunnerLocationRequest struct {
	Longitude float64 `json:"longitude" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"required"`
}
