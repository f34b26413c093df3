package core

import (
	"math/rand/v2"

	"risk_service/internal/domain/model"
)

// DegradeHeuristic scores points while no model is loaded. It mirrors the
// shape of the synthetic labels: a low baseline plus a large bonus inside a
// high-density zone.
type DegradeHeuristic struct {
	Zone        model.Bounds
	BaselineMin int
	BaselineMax int
	BonusMin    int
	BonusMax    int

	// intn returns a uniform int in [0, n). It must be safe for concurrent use.
	intn func(n int) int
}

// DefaultDegradeHeuristic uses the Nairobi CBD box.
func DefaultDegradeHeuristic() *DegradeHeuristic {
	return &DegradeHeuristic{
		Zone:        model.Bounds{MinLat: -1.29, MinLon: 36.81, MaxLat: -1.27, MaxLon: 36.83},
		BaselineMin: 10,
		BaselineMax: 30,
		BonusMin:    40,
		BonusMax:    60,
		intn:        rand.IntN,
	}
}

// Score draws a baseline in [BaselineMin, BaselineMax], adds a bonus in
// [BonusMin, BonusMax] when p is strictly inside Zone, and caps at 100.
func (h *DegradeHeuristic) Score(p model.Point) int {
	score := h.between(h.BaselineMin, h.BaselineMax)
	if h.Zone.ContainsStrict(p) {
		score += h.between(h.BonusMin, h.BonusMax)
	}
	return min(score, model.MaxRiskScore)
}

func (h *DegradeHeuristic) between(lo, hi int) int {
	if h.intn == nil {
		return lo + rand.IntN(hi-lo+1)
	}
	return lo + h.intn(hi-lo+1)
}
