package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}
	return path
}

func TestLoadPlan_ResolvesRelativeDatasetAndDefaults(t *testing.T) {
	path := writePlan(t, `schema_version: v1
dataset:
  path: data/iris.csv
poison_levels: [0, 0.05, 0.1]
sinks: [stdout]
`)
	f, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if want := filepath.Join(filepath.Dir(path), "data/iris.csv"); f.Dataset.Path != want {
		t.Fatalf("want dataset %s, got %s", want, f.Dataset.Path)
	}
	if f.Experiment != DefaultExperiment || f.ModelName != DefaultModelName {
		t.Fatalf("names not defaulted: %q %q", f.Experiment, f.ModelName)
	}
	if len(f.Models) != 2 || f.Models[0].MaxDepth != 3 || f.Models[1].Criterion != "entropy" {
		t.Fatalf("unexpected default models %+v", f.Models)
	}
	if f.Runs() != 6 {
		t.Fatalf("want 6 runs, got %d", f.Runs())
	}
}

func TestLoadPlan_AbsoluteDatasetKept(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "iris.csv")
	f, err := LoadPlan(writePlan(t, "dataset: { path: "+abs+" }\n"))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if f.Dataset.Path != abs || f.SchemaVersion != SupportedSchema {
		t.Fatalf("got %+v", f)
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	cases := map[string]struct{ body, want string }{
		"schema":    {"schema_version: v999\ndataset: { path: a.csv }\n", "not supported"},
		"no data":   {"poison_levels: [0]\n", "dataset.path"},
		"level":     {"dataset: { path: a.csv }\npoison_levels: [1.5]\n", "poison_levels[0]"},
		"holdout":   {"dataset: { path: a.csv, holdout_fraction: 1 }\n", "holdout_fraction"},
		"criterion": {"dataset: { path: a.csv }\nmodels: [{ max_depth: 2, criterion: mse }]\n", "models[0]"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadPlan(writePlan(t, c.body))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("want error containing %q, got %v", c.want, err)
			}
		})
	}
}

func TestDefaultPlan(t *testing.T) {
	f := DefaultPlan("iris.csv")
	if err := ValidatePlan(f); err != nil {
		t.Fatalf("default plan invalid: %v", err)
	}
	if len(f.PoisonLevels) != 1 || f.PoisonLevels[0] != 0 {
		t.Fatalf("want clean-only levels, got %v", f.PoisonLevels)
	}
}

func TestExampleFilesLoad(t *testing.T) {
	f, err := LoadPlan(filepath.Join("..", "..", "examples", "poisoning.yml"))
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if f.Runs() != 8 || f.Seed != 42 {
		t.Fatalf("unexpected plan %+v", f)
	}
	if _, err := os.Stat(f.Dataset.Path); err != nil {
		t.Fatalf("dataset not resolved: %v", err)
	}
	if _, err := Load(filepath.Join("..", "..", "examples", "irisml.yml")); err != nil {
		t.Fatalf("Load: %v", err)
	}
}
