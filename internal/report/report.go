// Package report renders recent experiment runs as a Markdown table.
package report

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"irisml/internal/tracking"
)

// DefaultLimit covers four poison levels across two model configurations.
const DefaultLimit = 8

var Headers = []string{"Poisoning %", "Max Depth", "Accuracy (on Clean Data)", "Accuracy (on Train Data)"}

// Searcher is the part of *tracking.Store the report reads.
type Searcher interface {
	ExperimentByName(ctx context.Context, name string) (tracking.Experiment, error)
	SearchRuns(ctx context.Context, experimentID string, limit int) ([]tracking.Run, error)
}

// Row is one run. NaN marks a value the run never logged.
type Row struct {
	PoisonFraction float64
	MaxDepth       string
	CleanAccuracy  float64
	TrainAccuracy  float64
}

// Build fetches the newest limit runs and orders them by poisoning level.
// Runs without a poison_percent param sort last.
func Build(ctx context.Context, s Searcher, experiment string, limit int) ([]Row, error) {
	exp, err := s.ExperimentByName(ctx, experiment)
	if err != nil {
		return nil, fmt.Errorf("report: experiment %q: %w", experiment, err)
	}
	runs, err := s.SearchRuns(ctx, exp.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	rows := make([]Row, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, Row{
			PoisonFraction: parseParam(r.Params["poison_percent"]),
			MaxDepth:       r.Params["max_depth"],
			CleanAccuracy:  metric(r.Metrics, "validation_accuracy_clean"),
			TrainAccuracy:  metric(r.Metrics, "train_accuracy"),
		})
	}
	slices.SortStableFunc(rows, func(a, b Row) int {
		an, bn := math.IsNaN(a.PoisonFraction), math.IsNaN(b.PoisonFraction)
		switch {
		case an && bn:
			return 0
		case an:
			return 1
		case bn:
			return -1
		}
		return cmp.Compare(a.PoisonFraction, b.PoisonFraction)
	})
	return rows, nil
}

// Render writes the heading and table. An empty rows slice prints a notice
// instead of an empty table.
func Render(w io.Writer, experiment string, rows []Row) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No runs found in experiment.")
		return err
	}
	t := table.New().
		Border(lipgloss.MarkdownBorder()).
		BorderTop(false).
		BorderBottom(false).
		StyleFunc(func(row, col int) lipgloss.Style { return lipgloss.NewStyle().Padding(0, 1) }).
		Headers(Headers...)
	for _, r := range rows {
		t.Row(percent(r.PoisonFraction), r.MaxDepth, number(r.CleanAccuracy), number(r.TrainAccuracy))
	}
	_, err := fmt.Fprintf(w, "### Poisoning Experiment Results (Experiment: %s)\n\n%s\n", experiment, t.String())
	return err
}

func parseParam(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func metric(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return math.NaN()
}

func percent(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

func number(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}
