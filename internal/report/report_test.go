package report

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"irisml/internal/tracking"
)

func seed(t *testing.T) *tracking.Store {
	t.Helper()
	s, err := tracking.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	exp, _ := s.SetExperiment(ctx, "iris")
	for _, r := range []struct {
		poison, depth string
		clean, train  float64
	}{
		{"0.1", "3", 0.9, 0.85},
		{"0", "3", 0.96, 0.96},
		{"0.05", "10", 0.933333333, 0.99},
		{"", "10", -1, 1},
	} {
		run, err := s.StartRun(ctx, exp.ID, "r")
		if err != nil {
			t.Fatal(err)
		}
		params := map[string]string{"max_depth": r.depth}
		if r.poison != "" {
			params["poison_percent"] = r.poison
		}
		_ = s.LogParams(ctx, run.ID, params)
		if r.clean >= 0 {
			_ = s.LogMetric(ctx, run.ID, "validation_accuracy_clean", r.clean)
		}
		_ = s.LogMetric(ctx, run.ID, "train_accuracy", r.train)
		_ = s.EndRun(ctx, run.ID, tracking.StatusFinished)
	}
	return s
}

func TestBuild_SortsByPoison(t *testing.T) {
	rows, err := Build(context.Background(), seed(t), "iris", DefaultLimit)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("want 4 rows, got %d", len(rows))
	}
	want := []float64{0, 0.05, 0.1}
	for i, w := range want {
		if rows[i].PoisonFraction != w {
			t.Fatalf("row %d: want %v, got %v", i, w, rows[i].PoisonFraction)
		}
	}
	if !math.IsNaN(rows[3].PoisonFraction) || !math.IsNaN(rows[3].CleanAccuracy) {
		t.Fatalf("missing values should sort last as NaN, got %+v", rows[3])
	}
}

func TestBuild_Limit(t *testing.T) {
	rows, err := Build(context.Background(), seed(t), "iris", 2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// The two newest runs: the unlabelled one and 5%.
	if len(rows) != 2 || rows[0].PoisonFraction != 0.05 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestBuild_UnknownExperiment(t *testing.T) {
	if _, err := Build(context.Background(), seed(t), "nope", 8); !errors.Is(err, tracking.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRender(t *testing.T) {
	rows, _ := Build(context.Background(), seed(t), "iris", DefaultLimit)
	var buf bytes.Buffer
	if err := Render(&buf, "iris", rows); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "### Poisoning Experiment Results (Experiment: iris)\n\n") {
		t.Fatalf("unexpected heading in %q", out)
	}
	for _, want := range append(Headers, "0.0%", "5.0%", "10.0%", "0.933333", "0.96") {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// heading, blank, header, separator, 4 rows
	if len(lines) != 8 {
		t.Fatalf("want 8 lines, got %d:\n%s", len(lines), out)
	}
	for _, l := range lines[2:] {
		if !strings.HasPrefix(l, "|") || !strings.HasSuffix(l, "|") {
			t.Fatalf("not a markdown row: %q", l)
		}
	}
}

func TestRender_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = Render(&buf, "iris", nil)
	if !strings.Contains(buf.String(), "No runs found") {
		t.Fatalf("got %q", buf.String())
	}
}
