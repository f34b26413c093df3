package mlclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"risk_service/internal/domain/model"
)

const previewRunes = 50

type polarityRequest struct {
	Text string `json:"text"`
}

type polarityResponse struct {
	Compound float64 `json:"compound"`
}

// SentimentHTTPClient calls the sentiment collaborator and classifies the
// compound polarity it returns.
type SentimentHTTPClient struct {
	http httpJSONClient
}

func NewSentimentHTTPClient(baseURL string, timeout time.Duration) *SentimentHTTPClient {
	return &SentimentHTTPClient{http: newHTTPJSONClient(baseURL, timeout)}
}

func (c *SentimentHTTPClient) Analyze(ctx context.Context, text string) (*model.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", model.ErrInvalidRequest)
	}

	var resp polarityResponse
	if err := c.http.post(ctx, "/polarity", polarityRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	score := min(max(resp.Compound, -1), 1)
	return &model.Sentiment{
		TextPreview: preview(text),
		Label:       model.ClassifySentiment(score),
		Score:       score,
	}, nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes])
}
