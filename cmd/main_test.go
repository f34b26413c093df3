package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk_service/internal/config"
	"risk_service/internal/core"
	"risk_service/internal/domain/model"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.ErrorLevel)
	}
	os.Exit(m.Run())
}

// testEnv writes a config with a small forest and a sqlite store under a
// temp directory.
func testEnv(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	configPath = filepath.Join(dir, "risk.yaml")
	body := fmt.Sprintf(`
trainer:
  forest:
    trees: 8
    max_depth: 6
    min_samples_leaf: 3
  artifact_path: %s
store:
  driver: sqlite
  dsn: %s
log:
  level: error
`, filepath.Join(dir, "models", "risk_model.bin"), filepath.Join(dir, "risk.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(body), 0o644))
	return dir, configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateThenTrainFromFile(t *testing.T) {
	dir, cfgPath := testEnv(t)
	corpus := filepath.Join(dir, "data", "corpus.csv")

	out, err := execute(t, "--config", cfgPath, "generate", "-n", "600", "--out", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "corpus written to")

	out, err = execute(t, "--config", cfgPath, "train", "--corpus", corpus)
	require.NoError(t, err)
	assert.Contains(t, out, "MSE:")
	assert.Contains(t, out, "train/test: 480/120")
	assert.FileExists(t, filepath.Join(dir, "models", "risk_model.bin"))

	out, err = execute(t, "--config", cfgPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "file:"+corpus)
}

func TestGenerate_NonPositiveCount(t *testing.T) {
	dir, cfgPath := testEnv(t)
	_, err := execute(t, "--config", cfgPath, "generate", "--count", "0", "--out", filepath.Join(dir, "c.csv"))
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.ErrorContains(t, err, "--count must be positive")
}

func TestTrain_RejectsNonFiniteCorpusFile(t *testing.T) {
	dir, cfgPath := testEnv(t)
	corpus := filepath.Join(dir, "nan.csv")
	rows := "latitude,longitude,is_night,risk_score\n-1.28,36.82,1,NaN\n-1.29,36.81,0,20\n"
	require.NoError(t, os.WriteFile(corpus, []byte(rows), 0o600))

	_, err := execute(t, "--config", cfgPath, "train", "--corpus", corpus)
	assert.ErrorContains(t, err, "non-finite")
	assert.NoFileExists(t, filepath.Join(dir, "models", "risk_model.bin"))
}

func TestGenerateStoreThenTrainFromRun(t *testing.T) {
	_, cfgPath := testEnv(t)

	_, err := execute(t, "--config", cfgPath, "generate", "-n", "300", "--store", "--run-id", "nairobi-1")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "train", "--corpus-run", "nairobi-1")
	require.NoError(t, err)
	assert.Contains(t, out, "train/test: 240/60")
	assert.Contains(t, out, "training run:")

	_, err = execute(t, "--config", cfgPath, "train", "--corpus-run", "unknown")
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestGenerate_NeedsDestination(t *testing.T) {
	_, cfgPath := testEnv(t)
	_, err := execute(t, "--config", cfgPath, "generate")
	assert.ErrorContains(t, err, "nothing to do")
}

func TestTrain_CorpusFlagsExclusive(t *testing.T) {
	_, cfgPath := testEnv(t)
	_, err := execute(t, "--config", cfgPath, "train", "--corpus", "a.csv", "--corpus-run", "b")
	assert.Error(t, err)
}

func TestRuns_NeedsStore(t *testing.T) {
	_, err := execute(t, "--config", "", "runs")
	assert.ErrorContains(t, err, "no store configured")
}

func TestRoot_RejectsBadLogLevel(t *testing.T) {
	_, cfgPath := testEnv(t)
	_, err := execute(t, "--config", cfgPath, "--log-level", "shouty", "runs")
	assert.Error(t, err)
}

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("-1.30, 36.80,-1.27,36.83")
	require.NoError(t, err)
	assert.Equal(t, model.Bounds{MinLat: -1.30, MinLon: 36.80, MaxLat: -1.27, MaxLon: 36.83}, b)

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "-1.27,36.83,-1.30,36.80"} {
		_, err := parseBBox(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildHandler_DegradedWithoutArtifact(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.bin")

	srv := httptest.NewServer(buildHandler(context.Background(), cfg).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `"mode":"`+core.ModeDegraded.String()+`"`)

	resp2, err := http.Post(srv.URL+"/analyze/sentiment?text=hi", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Model.Path = filepath.Join(t.TempDir(), "missing.bin")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
