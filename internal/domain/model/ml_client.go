package model

import "context"

// Regressor maps a feature vector, laid out by Features, to a raw risk
// estimate. Implementations must be safe for concurrent use.
type Regressor interface {
	Predict(x []float64) float64
}

// DetectionClient talks to the object-detection collaborator.
type DetectionClient interface {
	Detect(ctx context.Context, req SurveillanceRequest) (*SurveillanceReport, error)
}

// SentimentClient talks to the sentiment collaborator.
type SentimentClient interface {
	Analyze(ctx context.Context, text string) (*Sentiment, error)
}

type SurveillanceRequest struct {
	FeedID   string `json:"feed_id"`
	ImageURL string `json:"image_url,omitempty"`
}

// Detection is one object found in a frame. BBox is [x, y, w, h].
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       []int   `json:"bbox"`
}

type SurveillanceReport struct {
	FeedID          string      `json:"feed_id"`
	Timestamp       string      `json:"timestamp"`
	DetectedObjects []Detection `json:"detected_objects"`
	AlertTriggered  bool        `json:"alert_triggered"`
}

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POSITIVE"
	SentimentNeutral  SentimentLabel = "NEUTRAL"
	SentimentNegative SentimentLabel = "NEGATIVE"
)

// Sentiment is the aggregated polarity of a text. Score is in [-1, 1].
type Sentiment struct {
	TextPreview string         `json:"text_preview"`
	Label       SentimentLabel `json:"sentiment"`
	Score       float64        `json:"score"`
}

// ClassifySentiment applies the fixed compound thresholds.
func ClassifySentiment(compound float64) SentimentLabel {
	switch {
	case compound >= 0.05:
		return SentimentPositive
	case compound <= -0.05:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
