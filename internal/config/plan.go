package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"irisml/internal/model"
	"irisml/internal/plan"
)

const (
	SupportedSchema   = "v1"
	DefaultExperiment = "iris-decision-tree-tuning"
	DefaultModelName  = "iris-model"
)

// DefaultModels are the two configurations every plan trains unless it
// lists its own.
func DefaultModels() []plan.ModelSpec {
	return []plan.ModelSpec{
		{MaxDepth: 3, Criterion: model.CriterionGini, RandomState: 1},
		{MaxDepth: 10, Criterion: model.CriterionEntropy, RandomState: 1},
	}
}

// DefaultPlan trains the default models once on clean data.
func DefaultPlan(dataPath string) plan.File {
	f := plan.File{Dataset: plan.DatasetSpec{Path: dataPath}}
	applyPlanDefaults(&f)
	return f
}

// LoadPlan parses an experiment plan YAML, validates schema_version and
// resolves the dataset path against the plan's directory.
func LoadPlan(path string) (plan.File, error) {
	var f plan.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("plan %s: %w", path, err)
	}
	if f.SchemaVersion == "" {
		f.SchemaVersion = SupportedSchema
	}
	if f.SchemaVersion != SupportedSchema {
		return f, fmt.Errorf("plan schema_version %q not supported (want %q)", f.SchemaVersion, SupportedSchema)
	}
	if p := f.Dataset.Path; p != "" && !filepath.IsAbs(p) {
		f.Dataset.Path = filepath.Join(filepath.Dir(path), p)
	}
	applyPlanDefaults(&f)
	if err := ValidatePlan(f); err != nil {
		return f, fmt.Errorf("plan %s: %w", path, err)
	}
	return f, nil
}

func applyPlanDefaults(f *plan.File) {
	if f.SchemaVersion == "" {
		f.SchemaVersion = SupportedSchema
	}
	if f.Experiment == "" {
		f.Experiment = DefaultExperiment
	}
	if f.ModelName == "" {
		f.ModelName = DefaultModelName
	}
	if len(f.PoisonLevels) == 0 {
		f.PoisonLevels = []float64{0}
	}
	if len(f.Models) == 0 {
		f.Models = DefaultModels()
	}
}

// ValidatePlan checks the fields a run cannot recover from.
func ValidatePlan(f plan.File) error {
	var errs []error
	if f.Dataset.Path == "" {
		errs = append(errs, errors.New("dataset.path is required"))
	}
	if h := f.Dataset.HoldoutFraction; math.IsNaN(h) || h < 0 || h >= 1 {
		errs = append(errs, fmt.Errorf("dataset.holdout_fraction %v not in [0,1)", h))
	}
	for i, lvl := range f.PoisonLevels {
		if math.IsNaN(lvl) || lvl < 0 || lvl > 1 {
			errs = append(errs, fmt.Errorf("poison_levels[%d] %v not in [0,1]", i, lvl))
		}
	}
	for i, m := range f.Models {
		p := model.Params{MaxDepth: m.MaxDepth, Criterion: m.Criterion}
		if err := p.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("models[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
