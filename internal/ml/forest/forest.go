// Package forest fits bagged CART regression trees.
//
// Every tree is grown on its own bootstrap sample drawn from a PCG stream
// keyed by (Seed, tree index), so a fit is reproducible regardless of how
// many workers run it.
package forest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls the ensemble shape.
type Config struct {
	Trees          int   `yaml:"trees"`
	MaxDepth       int   `yaml:"max_depth"`
	MinSamplesLeaf int   `yaml:"min_samples_leaf"`
	Seed           int64 `yaml:"seed"`
	// Workers bounds concurrent tree fitting; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// DefaultConfig is 100 trees of depth at most 10.
func DefaultConfig() Config {
	return Config{
		Trees:          100,
		MaxDepth:       10,
		MinSamplesLeaf: 1,
		Seed:           42,
	}
}

// Validate rejects shapes that cannot be fitted.
func (c Config) Validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("trees must be positive, got %d", c.Trees)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MinSamplesLeaf < 1 {
		return fmt.Errorf("min_samples_leaf must be positive, got %d", c.MinSamplesLeaf)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Forest is a fitted ensemble. Its fields are exported for encoding only;
// a Forest is never modified after Fit returns.
type Forest struct {
	Features int
	Trees    []Tree
}

// ErrNoSamples is returned by Fit for an empty training set.
var ErrNoSamples = errors.New("forest: no samples")

// Fit grows cfg.Trees trees over rows x with targets y.
func Fit(ctx context.Context, x [][]float64, y []float64, cfg Config) (*Forest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("forest: %w", err)
	}
	if len(x) == 0 {
		return nil, ErrNoSamples
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("forest: %d rows but %d targets", len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("forest: rows have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("forest: row %d has %d features, want %d", i, len(row), width)
		}
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for t := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(t)+1))
			idx := make([]int, len(x))
			for i := range idx {
				idx[i] = rng.IntN(len(x))
			}
			trees[t] = growTree(x, y, idx, cfg.MaxDepth, cfg.MinSamplesLeaf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forest: fit interrupted: %w", err)
	}

	return &Forest{Features: width, Trees: trees}, nil
}

// Predict averages the tree outputs for x.
func (f *Forest) Predict(x []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// Check verifies that a decoded forest is walkable: every split references a
// known feature and every child index is in range and points forward.
func (f *Forest) Check() error {
	if f.Features < 1 {
		return fmt.Errorf("forest: invalid feature count %d", f.Features)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest: no trees")
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("forest: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature == leafFeature {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return fmt.Errorf("forest: tree %d node %d splits on feature %d", ti, ni, n.Feature)
			}
			for _, c := range []int32{n.Left, n.Right} {
				if int(c) <= ni || int(c) >= len(t.Nodes) {
					return fmt.Errorf("forest: tree %d node %d has child %d out of range", ti, ni, c)
				}
			}
		}
	}
	return nil
}

// NodeCount returns the total number of nodes across all trees.
func (f *Forest) NodeCount() int {
	n := 0
	for i := range f.Trees {
		n += len(f.Trees[i].Nodes)
	}
	return n
}
