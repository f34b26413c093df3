package core

import (
	"context"
	"fmt"
	"math"

	"risk_service/internal/domain/model"
)

// ScoreRequest is one inference call. TimeOfDay is optional.
type ScoreRequest struct {
	Latitude  float64
	Longitude float64
	TimeOfDay string
}

// ScoreResult is an assessment together with the mode that produced it.
type ScoreResult struct {
	model.RiskAssessment
	Mode Mode
}

// PredictionService scores points with the registry's model, or with the
// degrade heuristic when none is loaded.
type PredictionService struct {
	registry  *Registry
	heuristic *DegradeHeuristic
	schema    model.FeatureSchema
}

func NewPredictionService(registry *Registry, heuristic *DegradeHeuristic) *PredictionService {
	if heuristic == nil {
		heuristic = DefaultDegradeHeuristic()
	}
	return &PredictionService{
		registry:  registry,
		heuristic: heuristic,
		schema:    model.Features,
	}
}

// Score validates the request and returns a classified assessment.
// Coordinates outside any known area are scored, not rejected.
func (s *PredictionService) Score(ctx context.Context, req ScoreRequest) (model.RiskAssessment, error) {
	res, err := s.Evaluate(ctx, req)
	if err != nil {
		return model.RiskAssessment{}, err
	}
	return res.RiskAssessment, nil
}

// Evaluate is Score plus the serving mode, for callers that report it.
func (s *PredictionService) Evaluate(_ context.Context, req ScoreRequest) (ScoreResult, error) {
	if !finite(req.Latitude) || !finite(req.Longitude) {
		return ScoreResult{}, fmt.Errorf("%w: latitude and longitude must be finite numbers", model.ErrInvalidRequest)
	}

	p := model.Point{Lat: req.Latitude, Lon: req.Longitude}
	snap := s.registry.current()

	var score int
	switch snap.mode {
	case ModeModelLoaded:
		score = s.modelScore(snap.model, p, IsNight(req.TimeOfDay))
	default:
		score = s.heuristic.Score(p)
	}
	return ScoreResult{RiskAssessment: model.NewAssessment(score), Mode: snap.mode}, nil
}

// modelScore truncates the raw prediction toward zero and clamps it.
func (s *PredictionService) modelScore(m model.Regressor, p model.Point, isNight bool) int {
	raw := m.Predict(s.schema.Vector(p.Lat, p.Lon, isNight))
	if math.IsNaN(raw) {
		return model.MinRiskScore
	}
	return int(model.ClampScore(math.Trunc(raw)))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
