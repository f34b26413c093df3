package mlclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"risk_service/internal/domain/model"
)

// MinDetectionConfidence drops low-confidence boxes.
const MinDetectionConfidence = 0.35

// securityLabels are the detector classes worth reporting. Anything but a
// person raises an alert.
var securityLabels = map[string]bool{
	"person":   false,
	"backpack": true,
	"handbag":  true,
	"suitcase": true,
	"knife":    true,
}

type detectRequest struct {
	FeedID   string `json:"feed_id"`
	ImageURL string `json:"image_url,omitempty"`
}

type detectResponse struct {
	Detections []model.Detection `json:"detections"`
}

// DetectionHTTPClient calls the object-detection collaborator.
type DetectionHTTPClient struct {
	http httpJSONClient
	now  func() time.Time
}

func NewDetectionHTTPClient(baseURL string, timeout time.Duration) *DetectionHTTPClient {
	return &DetectionHTTPClient{
		http: newHTTPJSONClient(baseURL, timeout),
		now:  time.Now,
	}
}

func (c *DetectionHTTPClient) Detect(ctx context.Context, req model.SurveillanceRequest) (*model.SurveillanceReport, error) {
	if strings.TrimSpace(req.FeedID) == "" {
		return nil, fmt.Errorf("%w: feed_id is required", model.ErrInvalidRequest)
	}

	var resp detectResponse
	if err := c.http.post(ctx, "/detect", detectRequest{FeedID: req.FeedID, ImageURL: req.ImageURL}, &resp); err != nil {
		return nil, err
	}

	report := &model.SurveillanceReport{
		FeedID:          req.FeedID,
		Timestamp:       c.now().UTC().Format(time.RFC3339),
		DetectedObjects: make([]model.Detection, 0, len(resp.Detections)),
	}
	for _, d := range resp.Detections {
		label := strings.ToLower(d.Label)
		alerting, ok := securityLabels[label]
		if !ok || d.Confidence < MinDetectionConfidence {
			continue
		}
		d.Label = label
		report.DetectedObjects = append(report.DetectedObjects, d)
		if alerting {
			report.AlertTriggered = true
		}
	}
	return report, nil
}
