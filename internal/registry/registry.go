// Package registry loads and publishes model versions kept in the tracking
// store.
package registry

import (
	"context"
	"errors"
	"fmt"

	"irisml/internal/model"
	"irisml/internal/tracking"
)

// ErrModelUnavailable wraps every LoadLatest failure.
var ErrModelUnavailable = errors.New("registry: model unavailable")

// Store is the part of the tracking store the registry uses.
type Store interface {
	RegisterModelVersion(ctx context.Context, name, runID string, artifact []byte) (tracking.ModelVersion, error)
	LatestModelVersion(ctx context.Context, name string) (tracking.ModelVersion, error)
}

type Registry struct {
	store Store
}

func New(store Store) *Registry { return &Registry{store: store} }

// Loaded is a decoded model and the version it came from.
type Loaded struct {
	Tree    *model.DecisionTree
	Version tracking.ModelVersion
}

// LoadLatest decodes the highest version registered under name.
func (r *Registry) LoadLatest(ctx context.Context, name string) (Loaded, error) {
	mv, err := r.store.LatestModelVersion(ctx, name)
	if err != nil {
		return Loaded{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	var tree model.DecisionTree
	if err := tree.UnmarshalBinary(mv.Artifact); err != nil {
		return Loaded{}, fmt.Errorf("%w: %s v%d: %w", ErrModelUnavailable, name, mv.Version, err)
	}
	mv.Artifact = nil
	return Loaded{Tree: &tree, Version: mv}, nil
}

// Publish registers tree as a new version of name produced by runID.
func (r *Registry) Publish(ctx context.Context, name, runID string, tree *model.DecisionTree) (tracking.ModelVersion, error) {
	raw, err := tree.MarshalBinary()
	if err != nil {
		return tracking.ModelVersion{}, fmt.Errorf("registry: encode %s: %w", name, err)
	}
	mv, err := r.store.RegisterModelVersion(ctx, name, runID, raw)
	if err != nil {
		return tracking.ModelVersion{}, err
	}
	mv.Artifact = nil
	return mv, nil
}
