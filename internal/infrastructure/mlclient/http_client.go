package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"risk_service/internal/domain/model"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// httpJSONClient posts JSON to one collaborator and decodes its reply.
// Every failure is reported as model.ErrCollaboratorUnavailable.
type httpJSONClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPJSONClient(baseURL string, timeout time.Duration) httpJSONClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpJSONClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c httpJSONClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", model.ErrCollaboratorUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", model.ErrCollaboratorUnavailable, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", model.ErrCollaboratorUnavailable, path, err)
	}
	return nil
}
