package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"risk_service/internal/core"
	"risk_service/internal/domain/model"
)

const (
	ServiceName     = "Geospatial Risk Scoring Engine"
	maxRequestBytes = 1 << 20
)

type Handler struct {
	service   *core.PredictionService
	registry  *core.Registry
	detector  model.DetectionClient
	sentiment model.SentimentClient
	metrics   *Metrics
	limiter   *rate.Limiter
}

type Option func(*Handler)

// WithDetectionClient enables POST /analyze/surveillance.
func WithDetectionClient(c model.DetectionClient) Option {
	return func(h *Handler) { h.detector = c }
}

// WithSentimentClient enables POST /analyze/sentiment.
func WithSentimentClient(c model.SentimentClient) Option {
	return func(h *Handler) { h.sentiment = c }
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithRateLimit caps the request rate across all clients. rps <= 0 disables
// limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(h *Handler) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func NewHandler(service *core.PredictionService, registry *core.Registry, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		registry: registry,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics(registry)
	}
	return h
}

// Routes builds the service mux. /metrics is exempt from rate limiting.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /{$}", h.wrap("health", h.Health))
	mux.Handle("POST /predict/risk-score", h.wrap("predict", h.PredictRiskScore))
	mux.Handle("POST /analyze/surveillance", h.wrap("surveillance", h.AnalyzeSurveillance))
	mux.Handle("POST /analyze/sentiment", h.wrap("sentiment", h.AnalyzeSentiment))
	mux.Handle("GET /metrics", h.metrics.Handler())
	return mux
}

func (h *Handler) wrap(route string, fn http.HandlerFunc) http.Handler {
	return h.metrics.instrument(route, h.rateLimit(fn))
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "operational",
		Service: ServiceName,
		Mode:    h.registry.Mode().String(),
	})
}

// RiskScoreRequest uses pointers so a missing coordinate is distinguishable
// from zero.
type RiskScoreRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	TimeOfDay *string  `json:"time_of_day,omitempty"`
}

func (h *Handler) PredictRiskScore(w http.ResponseWriter, r *http.Request) {
	var req RiskScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		writeError(w, model.ErrInvalidRequest)
		return
	}

	sr := core.ScoreRequest{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if req.TimeOfDay != nil {
		sr.TimeOfDay = *req.TimeOfDay
	}

	res, err := h.service.Evaluate(r.Context(), sr)
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.observePrediction(res)
	writeJSON(w, http.StatusOK, res.RiskAssessment)
}

func (h *Handler) AnalyzeSurveillance(w http.ResponseWriter, r *http.Request) {
	if h.detector == nil {
		http.Error(w, "surveillance analysis is not configured", http.StatusServiceUnavailable)
		return
	}

	var req model.SurveillanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.detector.Detect(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type SentimentRequest struct {
	Text string `json:"text"`
}

// AnalyzeSentiment takes the text from the "text" query parameter or a JSON
// body.
func (h *Handler) AnalyzeSentiment(w http.ResponseWriter, r *http.Request) {
	if h.sentiment == nil {
		http.Error(w, "sentiment analysis is not configured", http.StatusServiceUnavailable)
		return
	}

	text := r.URL.Query().Get("text")
	if text == "" {
		var req SentimentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		text = req.Text
	}

	result, err := h.sentiment.Analyze(r.Context(), text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(model.ErrInvalidRequest, err)
	}
	return nil
}

// writeError maps the error taxonomy to a status with a fixed message.
// Internal details only reach the log.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		logrus.Debugf("rejected request: %v", err)
		http.Error(w, "invalid request", http.StatusBadRequest)
	case errors.Is(err, model.ErrCollaboratorUnavailable):
		logrus.Warnf("Warning: %v", err)
		http.Error(w, "upstream analysis service unavailable", http.StatusBadGateway)
	default:
		logrus.Errorf("request failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("failed to encode response: %v", err)
	}
}

// NewServer wraps the handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
