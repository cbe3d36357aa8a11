// Package predict turns raw feature values into a class label using the
// latest registered model.
package predict

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"irisml/internal/dataset"
	"irisml/internal/logging"
	"irisml/internal/model"
	"irisml/internal/registry"
	"irisml/internal/telemetry"
	"irisml/internal/tracking"
)

var (
	ErrInvalidFeatures  = errors.New("predict: invalid features")
	ErrModelUnavailable = registry.ErrModelUnavailable
)

// FormatFeatures parses the four Iris measurements into a single-row table
// with the canonical feature columns.
func FormatFeatures(values []string) (*dataset.Table, error) {
	if len(values) != len(dataset.IrisFeatures) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidFeatures, len(values), len(dataset.IrisFeatures))
	}
	row := make([]float64, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a number", ErrInvalidFeatures, dataset.IrisFeatures[i], v)
		}
		row[i] = f
	}
	return FeatureTable(row)
}

// FeatureTable wraps already-parsed measurements.
func FeatureTable(row []float64) (*dataset.Table, error) {
	if len(row) != len(dataset.IrisFeatures) {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidFeatures, len(row), len(dataset.IrisFeatures))
	}
	return dataset.NewTable(dataset.IrisFeatures, [][]float64{row})
}

// MakePrediction returns the label for the first row of features.
func MakePrediction(m model.Classifier, features *dataset.Table) (string, error) {
	if m == nil {
		return "", ErrModelUnavailable
	}
	if features == nil {
		return "", fmt.Errorf("%w: no rows", ErrInvalidFeatures)
	}
	out, err := m.Predict(features.Rows()[:1])
	if err != nil {
		return "", fmt.Errorf("predict: %w", err)
	}
	if len(out) == 0 {
		return "", errors.New("predict: model returned no prediction")
	}
	return out[0], nil
}

// Loader is satisfied by *registry.Registry.
type Loader interface {
	LoadLatest(ctx context.Context, name string) (registry.Loaded, error)
}

// Service holds the serving model. Reload swaps it without blocking readers.
type Service struct {
	name    string
	loader  Loader
	metrics *telemetry.Metrics

	current atomic.Pointer[registry.Loaded]

	mu      sync.Mutex // serialises Load
	lastErr error
}

// NewService returns a service with no model loaded. metrics may be nil.
func NewService(loader Loader, modelName string, metrics *telemetry.Metrics) *Service {
	return &Service{name: modelName, loader: loader, metrics: metrics}
}

// Load fetches the latest version. On failure the previously loaded model,
// if any, keeps serving.
func (s *Service) Load(ctx context.Context) (tracking.ModelVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logging.For("predict")
	loaded, err := s.loader.LoadLatest(ctx, s.name)
	if err != nil {
		s.lastErr = err
		log.Warn("model load failed", "model", s.name, "err", err)
		return tracking.ModelVersion{}, err
	}
	s.current.Store(&loaded)
	s.lastErr = nil
	if s.metrics != nil {
		s.metrics.ModelLoaded.Set(1)
		s.metrics.ModelVersion.Set(float64(loaded.Version.Version))
	}
	log.Info("model loaded", "model", s.name, "version", loaded.Version.Version, "run_id", loaded.Version.RunID)
	return loaded.Version, nil
}

// Reload is Load under the name the admin endpoint uses.
func (s *Service) Reload(ctx context.Context) (tracking.ModelVersion, error) { return s.Load(ctx) }

func (s *Service) Ready() bool { return s.current.Load() != nil }

// Version reports the serving version; ok is false when nothing is loaded.
func (s *Service) Version() (mv tracking.ModelVersion, ok bool) {
	cur := s.current.Load()
	if cur == nil {
		return tracking.ModelVersion{}, false
	}
	return cur.Version, true
}

// LastError is the error from the most recent failed Load, or nil.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) ModelName() string { return s.name }

// Predict classifies one row of measurements.
func (s *Service) Predict(features *dataset.Table) (string, error) {
	cur := s.current.Load()
	if cur == nil {
		return "", ErrModelUnavailable
	}
	return MakePrediction(cur.Tree, features)
}
