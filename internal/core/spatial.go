package core

import (
	"math"

	"risk_service/internal/domain/model"
)

// degreeDistance is the planar distance between two points in degrees. The
// synthetic labels are defined on this metric, not on great-circle distance.
func degreeDistance(a, b model.Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

// proximityBonus decays linearly with distance from the hotspot and is
// bounded to [0, peak]. It is non-increasing in distance.
func proximityBonus(distance, peak, decayPerDegree float64) float64 {
	return math.Max(0, math.Min(peak, peak-distance*decayPerDegree))
}

// haversine returns the great-circle distance in kilometres.
func haversine(a, b model.Point) float64 {
	const R = 6371 // Earth radius, km
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return R * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
