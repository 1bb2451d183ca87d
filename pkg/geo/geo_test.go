package geo

import (
	"math"
	"testing"
)

// Lagos Island and Ikeja, roughly 15km apart.
var (
	lagosIsland = Point{3.3792, 6.5244}
	ikeja       = Point{3.3375, 6.6018}
)

func TestDistanceIdentity(t *testing.T) {
	if d := Distance(lagosIsland, lagosIsland); d > 1e-9 {
		t.Errorf("Distance(A,A) = %g; want ~0", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	ab := Distance(lagosIsland, ikeja)
	ba := Distance(ikeja, lagosIsland)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("Distance not symmetric: %g vs %g", ab, ba)
	}
}

func TestDistanceKnownPoints(t *testing.T) {
	// ~9.7km between the two reference points; allow a loose tolerance since
	// we only care that the haversine constants are right.
	d := Distance(lagosIsland, ikeja)
	if d < 8 || d > 11 {
		t.Errorf("Distance(lagosIsland, ikeja) = %.2fkm; want ~9.7km", d)
	}
}

func TestDistanceTriangleInequality(t *testing.T) {
	mid := Point{3.36, 6.56}
	direct := Distance(lagosIsland, ikeja)
	viaMid := Distance(lagosIsland, mid) + Distance(mid, ikeja)
	if direct > viaMid+1e-6 {
		t.Errorf("triangle inequality violated: direct %.4f > via mid %.4f", direct, viaMid)
	}
}

func TestETAMinutes(t *testing.T) {
	tests := []struct {
		distanceKm float64
		speedKmh   float64
		want       int
	}{
		{30, 30, 60},
		{15, 30, 30},
		{1, 30, 2},    // 2 minutes exactly
		{0.4, 30, 1},  // 0.8 minutes rounds up
		{10, 0, 20},   // zero speed falls back to the 30km/h default
		{0, 30, 0},
	}
	for _, tt := range tests {
		if got := ETAMinutes(tt.distanceKm, tt.speedKmh); got != tt.want {
			t.Errorf("ETAMinutes(%g, %g) = %d; want %d", tt.distanceKm, tt.speedKmh, got, tt.want)
		}
	}
}

func TestWithinRadius(t *testing.T) {
	if !WithinRadius(lagosIsland, lagosIsland, 0.001) {
		t.Error("a point should be within any positive radius of itself")
	}
	if WithinRadius(lagosIsland, ikeja, 5) {
		t.Error("points ~10km apart reported within 5km")
	}
	if !WithinRadius(lagosIsland, ikeja, 15) {
		t.Error("points ~10km apart reported outside 15km")
	}
}
