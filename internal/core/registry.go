package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"risk_service/internal/domain/model"
	"risk_service/internal/infrastructure/artifact"
)

// Mode is the serving state of the process.
type Mode int

const (
	// ModeDegraded serves heuristic scores because no model is available.
	ModeDegraded Mode = iota
	// ModeModelLoaded serves model predictions.
	ModeModelLoaded
)

func (m Mode) String() string {
	switch m {
	case ModeModelLoaded:
		return "MODEL_LOADED"
	default:
		return "DEGRADED"
	}
}

// snapshot is published once and never modified.
type snapshot struct {
	mode     Mode
	model    model.Regressor
	source   string
	err      error
	loadedAt time.Time
}

var notLoaded = &snapshot{mode: ModeDegraded, err: errors.New("registry not loaded")}

// Registry owns the process's single trained model. It is written once at
// cold start and read concurrently afterwards without locks.
type Registry struct {
	once         sync.Once
	state        atomic.Pointer[snapshot]
	schema       model.FeatureSchema
	client       *http.Client
	fetchTimeout time.Duration
}

// RegistryOption customises a Registry.
type RegistryOption func(*Registry)

// WithHTTPClient sets the client used for remote artifacts.
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(r *Registry) { r.client = c }
}

// WithFetchTimeout bounds a remote artifact download.
func WithFetchTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.fetchTimeout = d }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		schema:       model.Features,
		client:       &http.Client{},
		fetchTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load reads the artifact at source, a file path or an http(s) URL, and
// publishes the resulting state. Only the first call does any work. Failures
// never propagate: they are logged and the registry stays degraded.
func (r *Registry) Load(ctx context.Context, source string) Mode {
	r.once.Do(func() {
		m, err := r.read(ctx, source)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", model.ErrArtifactLoad, source, err)
			logrus.Warnf("Warning: %v (%s); running in degrade mode", err, describeLoadFailure(err))
			r.state.Store(&snapshot{mode: ModeDegraded, source: source, err: err})
			return
		}
		logrus.Infof("Risk model loaded from %s", source)
		r.state.Store(&snapshot{mode: ModeModelLoaded, model: m, source: source, loadedAt: time.Now()})
	})
	return r.Mode()
}

// LoadRegressor publishes an already constructed model. Like Load it only
// takes effect on the first call.
func (r *Registry) LoadRegressor(m model.Regressor, source string) Mode {
	r.once.Do(func() {
		if m == nil {
			r.state.Store(&snapshot{mode: ModeDegraded, source: source,
				err: fmt.Errorf("%w: %s: nil model", model.ErrArtifactLoad, source)})
			return
		}
		r.state.Store(&snapshot{mode: ModeModelLoaded, model: m, source: source, loadedAt: time.Now()})
	})
	return r.Mode()
}

func (r *Registry) read(ctx context.Context, source string) (model.Regressor, error) {
	if source == "" {
		return nil, errors.New("no artifact source configured")
	}
	if artifact.IsRemote(source) {
		return artifact.Fetch(ctx, r.client, source, r.fetchTimeout, r.schema)
	}
	return artifact.ReadFile(source, r.schema)
}

func (r *Registry) current() *snapshot {
	if s := r.state.Load(); s != nil {
		return s
	}
	return notLoaded
}

// Mode reports the published state.
func (r *Registry) Mode() Mode {
	return r.current().mode
}

// Err returns why the registry is degraded, or nil once a model is loaded.
func (r *Registry) Err() error {
	return r.current().err
}

// Source returns the artifact location passed to the first load.
func (r *Registry) Source() string {
	return r.current().source
}

func describeLoadFailure(err error) string {
	switch {
	case errors.Is(err, artifact.ErrOutdated):
		return "artifact written for another format or feature schema"
	case errors.Is(err, artifact.ErrCorrupt):
		return "artifact bytes are corrupt"
	case errors.Is(err, context.DeadlineExceeded):
		return "artifact fetch timed out"
	default:
		return "artifact unavailable"
	}
}
