package core

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"risk_service/internal/domain/model"
	"risk_service/internal/infrastructure/artifact"
	"risk_service/internal/ml/forest"
)

const bytesPerMB = 1024 * 1024

// TrainerConfig controls splitting, fitting and persisting.
type TrainerConfig struct {
	Forest        forest.Config `yaml:"forest"`
	TestRatio     float64       `yaml:"test_ratio"`
	SplitSeed     int64         `yaml:"split_seed"`
	ArtifactPath  string        `yaml:"artifact_path"`
	SizeCeilingMB float64       `yaml:"size_ceiling_mb"`
	// MinR2 rejects models whose held-out R² is lower. Nil leaves metrics
	// informational.
	MinR2 *float64 `yaml:"min_r2,omitempty"`
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Forest:        forest.DefaultConfig(),
		TestRatio:     0.2,
		SplitSeed:     42,
		ArtifactPath:  "models/risk_model.bin",
		SizeCeilingMB: 250,
	}
}

func (c TrainerConfig) Validate() error {
	if err := c.Forest.Validate(); err != nil {
		return err
	}
	if c.TestRatio <= 0 || c.TestRatio >= 1 {
		return fmt.Errorf("test_ratio %v outside (0,1)", c.TestRatio)
	}
	if c.ArtifactPath == "" {
		return fmt.Errorf("artifact_path is required")
	}
	if c.SizeCeilingMB <= 0 {
		return fmt.Errorf("size_ceiling_mb must be positive, got %v", c.SizeCeilingMB)
	}
	return nil
}

// Metrics are computed on the held-out partition.
type Metrics struct {
	TrainSize int           `json:"train_size"`
	TestSize  int           `json:"test_size"`
	MSE       float64       `json:"mse"`
	R2        float64       `json:"r2"`
	FitTime   time.Duration `json:"fit_time"`
}

// ArtifactInfo describes a persisted model.
type ArtifactInfo struct {
	Path        string
	Bytes       int64
	OverCeiling bool
}

type Trainer struct {
	cfg    TrainerConfig
	schema model.FeatureSchema
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trainer config: %w", err)
	}
	return &Trainer{cfg: cfg, schema: model.Features}, nil
}

// Train splits the corpus, fits the forest on the training part and
// evaluates it on the rest.
func (t *Trainer) Train(ctx context.Context, corpus []model.IncidentRecord) (*forest.Forest, Metrics, error) {
	if len(corpus) == 0 {
		return nil, Metrics{}, fmt.Errorf("%w: corpus is empty", model.ErrInsufficientData)
	}
	if i, ok := firstNonFinite(corpus); ok {
		return nil, Metrics{}, fmt.Errorf("%w: record %d has a non-finite value", model.ErrInsufficientData, i)
	}
	train, test := t.split(corpus)
	if len(train) == 0 || len(test) == 0 {
		return nil, Metrics{}, fmt.Errorf("%w: %d records cannot be split %v/%v",
			model.ErrInsufficientData, len(corpus), 1-t.cfg.TestRatio, t.cfg.TestRatio)
	}

	x, y := t.design(train)
	start := time.Now()
	f, err := forest.Fit(ctx, x, y, t.cfg.Forest)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("failed to fit forest: %w", err)
	}

	m := t.evaluate(f, test)
	m.TrainSize = len(train)
	m.FitTime = time.Since(start)
	logrus.Infof("Model evaluation: MSE=%.2f R2=%.4f (train=%d, test=%d, nodes=%d)",
		m.MSE, m.R2, m.TrainSize, m.TestSize, f.NodeCount())

	if t.cfg.MinR2 != nil && (math.IsNaN(m.R2) || m.R2 < *t.cfg.MinR2) {
		return nil, m, fmt.Errorf("%w: R2 %.4f below %.4f", model.ErrModelRejected, m.R2, *t.cfg.MinR2)
	}
	return f, m, nil
}

// Persist writes the model to the configured artifact path and warns when
// it exceeds the deployment size ceiling.
func (t *Trainer) Persist(f *forest.Forest) (ArtifactInfo, error) {
	size, err := artifact.WriteFile(t.cfg.ArtifactPath, f, t.schema)
	if err != nil {
		return ArtifactInfo{}, fmt.Errorf("%w: %w", model.ErrPersistence, err)
	}

	info := ArtifactInfo{
		Path:        t.cfg.ArtifactPath,
		Bytes:       size,
		OverCeiling: float64(size) > t.cfg.SizeCeilingMB*bytesPerMB,
	}
	sizeMB := float64(size) / bytesPerMB
	if info.OverCeiling {
		logrus.Warnf("Warning: artifact %s is %.2f MB, above the %.0f MB deployment ceiling",
			info.Path, sizeMB, t.cfg.SizeCeilingMB)
	} else {
		logrus.Infof("Model saved to %s (%.2f MB)", info.Path, sizeMB)
	}
	return info, nil
}

// Run trains and persists in one step.
func (t *Trainer) Run(ctx context.Context, corpus []model.IncidentRecord) (Metrics, ArtifactInfo, error) {
	f, m, err := t.Train(ctx, corpus)
	if err != nil {
		return m, ArtifactInfo{}, err
	}
	info, err := t.Persist(f)
	if err != nil {
		return m, ArtifactInfo{}, err
	}
	return m, info, nil
}

// split shuffles with the fixed split seed and holds out TestRatio of the
// records, rounding the test side up.
func (t *Trainer) split(corpus []model.IncidentRecord) (train, test []model.IncidentRecord) {
	n := len(corpus)
	testN := int(math.Ceil(float64(n) * t.cfg.TestRatio))
	perm := rand.New(rand.NewPCG(uint64(t.cfg.SplitSeed), 0)).Perm(n)

	test = make([]model.IncidentRecord, 0, testN)
	train = make([]model.IncidentRecord, 0, n-testN)
	for i, j := range perm {
		if i < testN {
			test = append(test, corpus[j])
		} else {
			train = append(train, corpus[j])
		}
	}
	return train, test
}

func (t *Trainer) design(records []model.IncidentRecord) ([][]float64, []float64) {
	x := make([][]float64, len(records))
	y := make([]float64, len(records))
	for i, r := range records {
		x[i] = t.schema.RecordVector(r)
		y[i] = model.ClampScore(r.RiskScore)
	}
	return x, y
}

func (t *Trainer) evaluate(f *forest.Forest, test []model.IncidentRecord) Metrics {
	x, y := t.design(test)
	pred := make([]float64, len(x))
	var sse float64
	for i := range x {
		pred[i] = f.Predict(x[i])
		d := pred[i] - y[i]
		sse += d * d
	}
	return Metrics{
		TestSize: len(test),
		MSE:      sse / float64(len(test)),
		R2:       stat.RSquaredFrom(pred, y, nil),
	}
}

func firstNonFinite(records []model.IncidentRecord) (int, bool) {
	for i, r := range records {
		for _, v := range [...]float64{r.Latitude, r.Longitude, r.RiskScore} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return i, true
			}
		}
	}
	return 0, false
}
