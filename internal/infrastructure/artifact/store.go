package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"risk_service/internal/domain/model"
	"risk_service/internal/ml/forest"
)

// maxRemoteBytes caps a fetched artifact.
const maxRemoteBytes = 512 << 20

// WriteFile persists f at path through a temp file and rename, so readers
// never observe a partial artifact. It returns the on-disk size.
func WriteFile(path string, f *forest.Forest, schema model.FeatureSchema) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp artifact in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, f, schema); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat artifact: %w", err)
	}
	return info.Size(), nil
}

// ReadFile loads the artifact at path.
func ReadFile(path string, schema model.FeatureSchema) (*forest.Forest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Decode(file, schema)
}

// Fetch downloads and decodes an artifact over HTTP. The whole exchange is
// bounded by timeout.
func Fetch(ctx context.Context, client *http.Client, url string, timeout time.Duration, schema model.FeatureSchema) (*forest.Forest, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("artifact request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artifact server returned status: %d", resp.StatusCode)
	}
	return Decode(io.LimitReader(resp.Body, maxRemoteBytes), schema)
}

// IsRemote reports whether source names an HTTP(S) location.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
