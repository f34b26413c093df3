package core

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk_service/internal/domain/model"
)

type funcRegressor func(x []float64) float64

func (f funcRegressor) Predict(x []float64) float64 { return f(x) }

func loadedService(t *testing.T, m model.Regressor) *PredictionService {
	t.Helper()
	r := NewRegistry()
	require.Equal(t, ModeModelLoaded, r.LoadRegressor(m, "test"))
	return NewPredictionService(r, nil)
}

func degradedService(t *testing.T) *PredictionService {
	t.Helper()
	r := NewRegistry()
	require.Equal(t, ModeDegraded, r.Load(context.Background(), ""))
	return NewPredictionService(r, nil)
}

func TestScore_RejectsNonFiniteCoordinates(t *testing.T) {
	svc := degradedService(t)
	tests := []ScoreRequest{
		{Latitude: math.NaN(), Longitude: 36.8},
		{Latitude: -1.28, Longitude: math.Inf(1)},
		{Latitude: math.Inf(-1), Longitude: math.NaN()},
	}
	for _, req := range tests {
		_, err := svc.Score(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrInvalidRequest)
	}
}

func TestScore_ModelPredictionTruncatedAndClamped(t *testing.T) {
	tests := []struct {
		raw       float64
		wantScore int
		wantLevel model.RiskLevel
	}{
		{72.9, 72, model.RiskHigh},
		{90.99, 90, model.RiskHigh},
		{91.0, 91, model.RiskCritical},
		{40.7, 40, model.RiskLow},
		{41.2, 41, model.RiskMedium},
		{150, 100, model.RiskCritical},
		{-12.5, 0, model.RiskLow},
		{math.NaN(), 0, model.RiskLow},
	}
	for _, tt := range tests {
		svc := loadedService(t, funcRegressor(func([]float64) float64 { return tt.raw }))
		got, err := svc.Score(context.Background(), ScoreRequest{Latitude: -1.28, Longitude: 36.82})
		require.NoError(t, err)
		assert.Equal(t, tt.wantScore, got.RiskScore, "raw %v", tt.raw)
		assert.Equal(t, tt.wantLevel, got.RiskLevel, "raw %v", tt.raw)
	}
}

func TestScore_FeatureVectorFollowsSchema(t *testing.T) {
	var seen []float64
	svc := loadedService(t, funcRegressor(func(x []float64) float64 {
		seen = append([]float64(nil), x...)
		return 50
	}))

	_, err := svc.Score(context.Background(), ScoreRequest{Latitude: -1.3, Longitude: 36.9, TimeOfDay: "night"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-1.3, 36.9, 1}, seen)
}

func TestScore_UnrecognizedTimeOfDayIsDay(t *testing.T) {
	svc := loadedService(t, funcRegressor(func(x []float64) float64 { return 30 + 40*x[2] }))
	ctx := context.Background()

	absent, err := svc.Score(ctx, ScoreRequest{Latitude: -1.28, Longitude: 36.82})
	require.NoError(t, err)
	for _, tod := range []string{"afternoon", "Night", "evening", ""} {
		got, err := svc.Score(ctx, ScoreRequest{Latitude: -1.28, Longitude: 36.82, TimeOfDay: tod})
		require.NoError(t, err)
		assert.Equal(t, absent, got, "time_of_day %q", tod)
	}

	night, err := svc.Score(ctx, ScoreRequest{Latitude: -1.28, Longitude: 36.82, TimeOfDay: "night"})
	require.NoError(t, err)
	assert.Equal(t, 70, night.RiskScore)
}

func TestScore_OutOfRangeCoordinatesAreScored(t *testing.T) {
	svc := degradedService(t)
	got, err := svc.Score(context.Background(), ScoreRequest{Latitude: 123.4, Longitude: -500})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.RiskScore, 10)
	assert.LessOrEqual(t, got.RiskScore, 30)
}

func TestScore_DegradeModeZones(t *testing.T) {
	svc := degradedService(t)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		in, err := svc.Score(ctx, ScoreRequest{Latitude: -1.28, Longitude: 36.82})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, in.RiskScore, 50)
		assert.LessOrEqual(t, in.RiskScore, 90)

		out, err := svc.Score(ctx, ScoreRequest{Latitude: -1.33, Longitude: 36.72, TimeOfDay: "night"})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.RiskScore, 10)
		assert.LessOrEqual(t, out.RiskScore, 30)
		assert.Equal(t, model.RiskLow, out.RiskLevel)
		assert.Empty(t, out.ContributingFactors)
	}
}

func TestScore_DegradeModeEdgesAreOutsideZone(t *testing.T) {
	h := DefaultDegradeHeuristic()
	h.intn = func(n int) int { return n - 1 }
	svc := NewPredictionService(NewRegistry(), h)

	edge, err := svc.Score(context.Background(), ScoreRequest{Latitude: -1.29, Longitude: 36.82})
	require.NoError(t, err)
	assert.Equal(t, 30, edge.RiskScore)

	inside, err := svc.Score(context.Background(), ScoreRequest{Latitude: -1.28, Longitude: 36.82})
	require.NoError(t, err)
	assert.Equal(t, 90, inside.RiskScore)
	assert.Equal(t, model.RiskHigh, inside.RiskLevel)
}

func TestDegradeHeuristic_CapsAtHundred(t *testing.T) {
	h := DefaultDegradeHeuristic()
	h.BonusMin, h.BonusMax = 90, 95
	h.intn = func(n int) int { return n - 1 }
	assert.Equal(t, 100, h.Score(model.Point{Lat: -1.28, Lon: 36.82}))
}

func TestEvaluate_ReportsMode(t *testing.T) {
	res, err := degradedService(t).Evaluate(context.Background(), ScoreRequest{Latitude: 0, Longitude: 0})
	require.NoError(t, err)
	assert.Equal(t, ModeDegraded, res.Mode)

	res, err = loadedService(t, funcRegressor(func([]float64) float64 { return 55 })).
		Evaluate(context.Background(), ScoreRequest{Latitude: 0, Longitude: 0})
	require.NoError(t, err)
	assert.Equal(t, ModeModelLoaded, res.Mode)
	assert.Equal(t, []string{"Recent minor incidents"}, res.ContributingFactors)
}

func TestScore_TrainedModelNightExceedsDayAtHotspot(t *testing.T) {
	path := trainedArtifact(t)
	r := NewRegistry()
	require.Equal(t, ModeModelLoaded, r.Load(context.Background(), path))
	svc := NewPredictionService(r, nil)

	hot := DefaultGeneratorConfig().Hotspot
	day, err := svc.Score(context.Background(), ScoreRequest{Latitude: hot.Lat, Longitude: hot.Lon})
	require.NoError(t, err)
	night, err := svc.Score(context.Background(), ScoreRequest{Latitude: hot.Lat, Longitude: hot.Lon, TimeOfDay: "night"})
	require.NoError(t, err)

	assert.Greater(t, night.RiskScore, day.RiskScore)
	assert.Greater(t, day.RiskScore, 60, "hotspot should score well above the baseline")

	far, err := svc.Score(context.Background(), ScoreRequest{Latitude: -1.34, Longitude: 36.94})
	require.NoError(t, err)
	assert.Less(t, far.RiskScore, day.RiskScore)
}
