package errand

import (
	"errors"
	"math"
	"testing"

	"errand-marketplace/internal/models"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		name       string
		distanceKm float64
		errandType string
		priority   string
		wantBase   float64
		wantPrio   float64
		wantFee    float64
		wantTotal  float64
	}{
		{
			name:       "delivery normal",
			distanceKm: 10, errandType: models.TypeDelivery, priority: models.PriorityNormal,
			wantBase: 5000, wantPrio: 0, wantFee: 500, wantTotal: 5500,
		},
		{
			name:       "shopping carries multiplier",
			distanceKm: 10, errandType: models.TypeShopping, priority: models.PriorityNormal,
			wantBase: 6000, wantPrio: 0, wantFee: 600, wantTotal: 6600,
		},
		{
			name:       "repair carries multiplier",
			distanceKm: 4, errandType: models.TypeRepair, priority: models.PriorityNormal,
			wantBase: 3000, wantPrio: 0, wantFee: 300, wantTotal: 3300,
		},
		{
			name:       "priority adds surcharge",
			distanceKm: 10, errandType: models.TypeDocument, priority: models.PriorityPriority,
			wantBase: 5000, wantPrio: 1000, wantFee: 500, wantTotal: 6500,
		},
		{
			name:       "zero distance still quotes",
			distanceKm: 0, errandType: models.TypeDelivery, priority: models.PriorityNormal,
			wantBase: 0, wantPrio: 0, wantFee: 0, wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Quote(tt.distanceKm, tt.errandType, tt.priority)
			if err != nil {
				t.Fatalf("Quote returned error: %v", err)
			}
			if !closeTo(p.BasePrice, tt.wantBase) {
				t.Errorf("BasePrice = %v, want %v", p.BasePrice, tt.wantBase)
			}
			if !closeTo(p.PriorityFee, tt.wantPrio) {
				t.Errorf("PriorityFee = %v, want %v", p.PriorityFee, tt.wantPrio)
			}
			if !closeTo(p.ServiceFee, tt.wantFee) {
				t.Errorf("ServiceFee = %v, want %v", p.ServiceFee, tt.wantFee)
			}
			if !closeTo(p.TotalPrice, tt.wantTotal) {
				t.Errorf("TotalPrice = %v, want %v", p.TotalPrice, tt.wantTotal)
			}
		})
	}
}

func TestQuoteRejectsBadInput(t *testing.T) {
	if _, err := Quote(-1, models.TypeDelivery, models.PriorityNormal); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("negative distance: got %v, want ErrInvalidInput", err)
	}
	if _, err := Quote(5, "laundry", models.PriorityNormal); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("unknown type: got %v, want ErrInvalidInput", err)
	}
}

func TestEstimateDuration(t *testing.T) {
	tests := []struct {
		distanceKm float64
		want       int
	}{
		{0, 0},
		{0.5, 1},  // partial minutes round up
		{10, 20},  // 10km at 30km/h
		{7.7, 16}, // 15.4 rounds up
		{30, 60},
	}
	for _, tt := range tests {
		if got := EstimateDuration(tt.distanceKm); got != tt.want {
			t.Errorf("EstimateDuration(%v) = %d, want %d", tt.distanceKm, got, tt.want)
		}
	}
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
