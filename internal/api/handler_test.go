package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk_service/internal/core"
	"risk_service/internal/domain/model"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.ErrorLevel)
	}
	os.Exit(m.Run())
}

type constRegressor float64

func (c constRegressor) Predict([]float64) float64 { return float64(c) }

type fakeDetector struct {
	report *model.SurveillanceReport
	err    error
}

func (f fakeDetector) Detect(_ context.Context, req model.SurveillanceRequest) (*model.SurveillanceReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := *f.report
	r.FeedID = req.FeedID
	return &r, nil
}

type fakeSentiment struct{}

func (fakeSentiment) Analyze(_ context.Context, text string) (*model.Sentiment, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", model.ErrInvalidRequest)
	}
	return &model.Sentiment{TextPreview: text, Label: model.SentimentNegative, Score: -0.6}, nil
}

func loadedHandler(t *testing.T, score float64, opts ...Option) *Handler {
	t.Helper()
	registry := core.NewRegistry()
	require.Equal(t, core.ModeModelLoaded, registry.LoadRegressor(constRegressor(score), "test"))
	return NewHandler(core.NewPredictionService(registry, nil), registry, opts...)
}

func degradedHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	registry := core.NewRegistry()
	missing := filepath.Join(t.TempDir(), "absent.bin")
	require.Equal(t, core.ModeDegraded, registry.Load(context.Background(), missing))
	return NewHandler(core.NewPredictionService(registry, nil), registry, opts...)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		handler *Handler
		mode    string
	}{
		{"loaded", loadedHandler(t, 10), "MODEL_LOADED"},
		{"degraded", degradedHandler(t), "DEGRADED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tt.handler.Routes(), http.MethodGet, "/", "")
			require.Equal(t, http.StatusOK, rec.Code)

			var got HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, "operational", got.Status)
			assert.Equal(t, ServiceName, got.Service)
			assert.Equal(t, tt.mode, got.Mode)
		})
	}
}

func TestPredictRiskScore_ModelLoaded(t *testing.T) {
	routes := loadedHandler(t, 75.9).Routes()

	rec := do(t, routes, http.MethodPost, "/predict/risk-score",
		`{"latitude": -1.282, "longitude": 36.821, "time_of_day": "night"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got model.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 75, got.RiskScore)
	assert.Equal(t, model.RiskHigh, got.RiskLevel)
	assert.Len(t, got.ContributingFactors, 3)
}

func TestPredictRiskScore_LowHasEmptyFactors(t *testing.T) {
	rec := do(t, loadedHandler(t, 12).Routes(), http.MethodPost, "/predict/risk-score",
		`{"latitude": -1.3, "longitude": 36.9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"contributing_factors":[]`)
}

func TestPredictRiskScore_Degraded(t *testing.T) {
	routes := degradedHandler(t).Routes()

	for range 20 {
		rec := do(t, routes, http.MethodPost, "/predict/risk-score",
			`{"latitude": -1.28, "longitude": 36.82}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var got model.RiskAssessment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.GreaterOrEqual(t, got.RiskScore, 50)
		assert.LessOrEqual(t, got.RiskScore, 90)
	}
}

func TestPredictRiskScore_BadRequests(t *testing.T) {
	routes := loadedHandler(t, 50).Routes()

	tests := []struct {
		name string
		body string
	}{
		{"missing latitude", `{"longitude": 36.8}`},
		{"missing longitude", `{"latitude": -1.2}`},
		{"empty object", `{}`},
		{"not json", `latitude=-1.2`},
		{"wrong type", `{"latitude": "north", "longitude": 36.8}`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, routes, http.MethodPost, "/predict/risk-score", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid request\n", rec.Body.String())
		})
	}
}

func TestPredictRiskScore_MethodNotAllowed(t *testing.T) {
	rec := do(t, loadedHandler(t, 50).Routes(), http.MethodGet, "/predict/risk-score", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeSurveillance(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		rec := do(t, loadedHandler(t, 50).Routes(), http.MethodPost, "/analyze/surveillance", `{"feed_id":"cam-1"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("forwards", func(t *testing.T) {
		detector := fakeDetector{report: &model.SurveillanceReport{
			Timestamp:       "2024-05-01T18:30:00Z",
			DetectedObjects: []model.Detection{{Label: "knife", Confidence: 0.8, BBox: []int{1, 2, 3, 4}}},
			AlertTriggered:  true,
		}}
		rec := do(t, loadedHandler(t, 50, WithDetectionClient(detector)).Routes(),
			http.MethodPost, "/analyze/surveillance", `{"feed_id":"cam-1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var got model.SurveillanceReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "cam-1", got.FeedID)
		assert.True(t, got.AlertTriggered)
	})

	t.Run("collaborator down", func(t *testing.T) {
		detector := fakeDetector{err: fmt.Errorf("%w: dial refused", model.ErrCollaboratorUnavailable)}
		rec := do(t, loadedHandler(t, 50, WithDetectionClient(detector)).Routes(),
			http.MethodPost, "/analyze/surveillance", `{"feed_id":"cam-1"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "dial refused")
	})

	t.Run("internal failure", func(t *testing.T) {
		detector := fakeDetector{err: fmt.Errorf("unexpected state")}
		rec := do(t, loadedHandler(t, 50, WithDetectionClient(detector)).Routes(),
			http.MethodPost, "/analyze/surveillance", `{"feed_id":"cam-1"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal error\n", rec.Body.String())
	})
}

func TestAnalyzeSentiment(t *testing.T) {
	routes := loadedHandler(t, 50, WithSentimentClient(fakeSentiment{})).Routes()

	rec := do(t, routes, http.MethodPost, "/analyze/sentiment?text="+url.QueryEscape("riot gear deployed"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Sentiment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "riot gear deployed", got.TextPreview)
	assert.Equal(t, model.SentimentNegative, got.Label)

	rec = do(t, routes, http.MethodPost, "/analyze/sentiment", `{"text":"from body"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"text_preview":"from body"`)

	rec = do(t, routes, http.MethodPost, "/analyze/sentiment", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, loadedHandler(t, 50).Routes(), http.MethodPost, "/analyze/sentiment?text=x", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	routes := loadedHandler(t, 50, WithRateLimit(1, 1)).Routes()

	first := do(t, routes, http.MethodGet, "/", "")
	second := do(t, routes, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	metrics := do(t, routes, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, metrics.Code, "metrics are not rate limited")
}

func TestMetricsEndpoint(t *testing.T) {
	routes := loadedHandler(t, 95).Routes()

	rec := do(t, routes, http.MethodPost, "/predict/risk-score", `{"latitude": -1.28, "longitude": 36.82}`)
	require.Equal(t, http.StatusOK, rec.Code)
	do(t, routes, http.MethodPost, "/predict/risk-score", `{}`)

	rec = do(t, routes, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `risk_predictions_total{level="CRITICAL",mode="MODEL_LOADED"} 1`)
	assert.Contains(t, text, `risk_http_requests_total{code="400",route="predict"} 1`)
	assert.Contains(t, text, "risk_model_loaded 1")
}
