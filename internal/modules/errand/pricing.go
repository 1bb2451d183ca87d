package errand

import (
	"math"

	"errand-marketplace/internal/models"
	"errand-marketplace/pkg/geo"
)

// Pricing constants. Prices are computed once at errand creation and never
// recomputed afterward.
const (
	baseRatePerKm = 500.0 // NGN per km
	priorityRate  = 0.2   // share of base price added for priority errands
	serviceRate   = 0.1   // platform share of base price
)

// typeMultiplier scales the base rate per errand type.
var typeMultiplier = map[string]float64{
	models.TypeDelivery: 1,
	models.TypeShopping: 1.2,
	models.TypeDocument: 1,
	models.TypeRepair:   1.5,
}

// Pricing is the price breakdown attached to a new errand.
type Pricing struct {
	BasePrice   float64
	PriorityFee float64
	ServiceFee  float64
	TotalPrice  float64
}

// Quote computes the price breakdown for a distance, errand type and
// priority. It is pure and deterministic; a negative distance or unknown
// type yields models.ErrInvalidInput.
func Quote(distanceKm float64, errandType, priority string) (Pricing, error) {
	if distanceKm < 0 {
		return Pricing{}, models.ErrInvalidInput
	}
	mult, ok := typeMultiplier[errandType]
	if !ok {
		return Pricing{}, models.ErrInvalidInput
	}

	base := distanceKm * baseRatePerKm * mult
	var priorityFee float64
	if priority == models.PriorityPriority {
		priorityFee = base * priorityRate
	}
	serviceFee := base * serviceRate

	return Pricing{
		BasePrice:   base,
		PriorityFee: priorityFee,
		ServiceFee:  serviceFee,
		TotalPrice:  base + priorityFee + serviceFee,
	}, nil
}

// EstimateDuration converts a distance to estimated minutes at the average
// runner speed, rounded up.
func EstimateDuration(distanceKm float64) int {
	if distanceKm < 0 {
		return 0
	}
	return int(math.Ceil(distanceKm / geo.DefaultSpeedKmh * 60))
}
