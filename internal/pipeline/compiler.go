package pipeline

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strings"

	"irisml/internal/config"
	"irisml/internal/dataset"
	"irisml/internal/plan"
	"irisml/internal/telemetry"
	"irisml/sink"
	"irisml/sink/kafka"
	"irisml/sink/stdout"
)

// Options carries process-level wiring the plan file cannot express.
type Options struct {
	Stdout  io.Writer // stdout sink destination; nil = os.Stdout
	Metrics *telemetry.Metrics
}

// Compile loads a plan file and builds a runner for it.
func Compile(path string, tracker Tracker, publisher Publisher, opts Options) (*Runner, error) {
	f, err := config.LoadPlan(path)
	if err != nil {
		return nil, err
	}
	return Build(f, tracker, publisher, opts)
}

// Build wires an already-parsed plan: dataset, holdout split and sinks.
func Build(f plan.File, tracker Tracker, publisher Publisher, opts Options) (*Runner, error) {
	if err := config.ValidatePlan(f); err != nil {
		return nil, err
	}
	r := NewRunner(f, tracker, publisher)
	r.SetMetrics(opts.Metrics)

	ds, err := dataset.Load(f.Dataset.Path, f.Dataset.LabelColumn)
	if err != nil {
		return nil, err
	}
	train, test, err := dataset.Split(ds, f.Dataset.HoldoutFraction, splitSource(f.Seed))
	if err != nil {
		return nil, err
	}
	if test == nil {
		// No holdout: clean validation runs on the full unpoisoned table.
		test = ds
	}
	r.SetData(train, test)

	for _, name := range f.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("%w (available: %s)", err, strings.Join(sink.Names(), ", "))
		}

		switch name {
		case "stdout":
			c := f.SinkConfigs.Stdout
			err = sDrv.Configure(stdout.Config{
				PrintCounter: c.PrintCounter,
				JSON:         c.JSON,
				Out:          opts.Stdout,
			})
		case "kafka":
			c := f.SinkConfigs.Kafka
			err = sDrv.Configure(kafka.Config{
				Brokers: c.Brokers,
				Topic:   c.Topic,
				Acks:    c.RequiredAcks,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.AddSink(sDrv)
	}
	return r, nil
}

// The holdout split uses a stream no run index can reach.
func splitSource(seed uint64) rand.Source { return rand.NewPCG(seed, math.MaxUint64) }
