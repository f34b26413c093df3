package model

import "math"

const (
	MinRiskScore = 0
	MaxRiskScore = 100
)

// IncidentRecord is one labeled sample of the training corpus.
type IncidentRecord struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
	IsNight   bool    `json:"is_night" db:"is_night"`
	RiskScore float64 `json:"risk_score" db:"risk_score"`
}

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

type Bounds struct {
	MinLat float64 `yaml:"min_lat"`
	MinLon float64 `yaml:"min_lon"`
	MaxLat float64 `yaml:"max_lat"`
	MaxLon float64 `yaml:"max_lon"`
}

// ContainsStrict reports whether p lies strictly inside the box; points on
// an edge are outside.
func (b Bounds) ContainsStrict(p Point) bool {
	return b.MinLat < p.Lat && p.Lat < b.MaxLat && b.MinLon < p.Lon && p.Lon < b.MaxLon
}

// Valid reports whether the box has a positive extent on both axes.
func (b Bounds) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLon < b.MaxLon
}

// ClampScore limits a score to [MinRiskScore, MaxRiskScore]. NaN maps to
// MinRiskScore.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return MinRiskScore
	}
	return math.Max(MinRiskScore, math.Min(MaxRiskScore, v))
}

// ClampScoreInt is the integer form of ClampScore.
func ClampScoreInt(v int) int {
	return max(MinRiskScore, min(MaxRiskScore, v))
}
