// Package geo contains the geographic helpers shared by the errand module:
// pure great-circle math plus a Redis-backed runner position index.
package geo

import "math"

const earthRadiusKm = 6371.0

// DefaultSpeedKmh is the average runner speed assumed for ETA estimates.
const DefaultSpeedKmh = 30.0

// Point is a [longitude, latitude] coordinate pair in decimal degrees.
type Point [2]float64

func (p Point) Longitude() float64 { return p[0] }
func (p Point) Latitude() float64  { return p[1] }

// Distance returns the great-circle distance between two points in
// kilometres, computed with the Haversine formula.
func Distance(a, b Point) float64 {
	dLat := degreesToRadians(b.Latitude() - a.Latitude())
	dLon := degreesToRadians(b.Longitude() - a.Longitude())

	rLat1 := degreesToRadians(a.Latitude())
	rLat2 := degreesToRadians(b.Latitude())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// ETAMinutes converts a distance to travel minutes at the given speed,
// rounded up. A non-positive speed falls back to DefaultSpeedKmh.
func ETAMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = DefaultSpeedKmh
	}
	return int(math.Ceil(distanceKm / speedKmh * 60))
}

// WithinRadius reports whether b lies within radiusKm of a.
func WithinRadius(a, b Point, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
