package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"irisml/internal/dataset"
	"irisml/internal/logging"
	"irisml/internal/model"
	"irisml/internal/plan"
	"irisml/internal/poison"
	"irisml/internal/telemetry"
	"irisml/internal/tracking"
	"irisml/sink"
)

// Metric and param keys written for every run.
const (
	ParamMaxDepth      = "max_depth"
	ParamCriterion     = "criterion"
	ParamRandomState   = "random_state"
	ParamPoisonPercent = "poison_percent"

	MetricTrainAccuracy = "train_accuracy"
	MetricCleanAccuracy = "validation_accuracy_clean"
)

// Tracker is the part of *tracking.Store a run writes to.
type Tracker interface {
	SetExperiment(ctx context.Context, name string) (tracking.Experiment, error)
	StartRun(ctx context.Context, experimentID, name string) (tracking.Run, error)
	LogParams(ctx context.Context, runID string, params map[string]string) error
	LogMetric(ctx context.Context, runID, key string, value float64) error
	EndRun(ctx context.Context, runID string, status tracking.RunStatus) error
}

// Publisher is satisfied by *registry.Registry.
type Publisher interface {
	Publish(ctx context.Context, name, runID string, tree *model.DecisionTree) (tracking.ModelVersion, error)
}

// Result summarises one finished run.
type Result struct {
	RunID          string
	RunName        string
	PoisonFraction float64
	Params         model.Params
	PoisonedCells  int
	TrainAccuracy  float64
	CleanAccuracy  float64
	ModelVersion   int
}

type Runner struct {
	plan plan.File

	train *dataset.Dataset // what the model is fit on, before poisoning
	clean *dataset.Dataset // what validation_accuracy_clean is measured on

	tracker   Tracker
	publisher Publisher
	sinks     []sink.Adapter
	metrics   *telemetry.Metrics
	now       func() time.Time
}

func NewRunner(p plan.File, tracker Tracker, publisher Publisher) *Runner {
	return &Runner{plan: p, tracker: tracker, publisher: publisher, now: time.Now}
}

// SetData installs the training split and the clean evaluation set.
func (r *Runner) SetData(train, clean *dataset.Dataset) { r.train, r.clean = train, clean }

func (r *Runner) AddSink(s sink.Adapter) { r.sinks = append(r.sinks, s) }

func (r *Runner) SetMetrics(m *telemetry.Metrics) { r.metrics = m }

// Close closes every sink and joins their errors.
func (r *Runner) Close() error {
	var errs []error
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// RunSource is the poisoning source for run i. Each run gets its own PCG
// stream so results do not depend on which runs came before.
func RunSource(seed uint64, i int) rand.Source { return rand.NewPCG(seed, uint64(i)) }

// Run trains every poison level × model combination in plan order. The
// first failing run is marked FAILED and aborts the rest.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if r.train == nil || r.clean == nil {
		return nil, errors.New("runner: no dataset configured")
	}
	log := logging.For("pipeline")
	exp, err := r.tracker.SetExperiment(ctx, r.plan.Experiment)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, r.plan.Runs())
	i := 0
	for _, level := range r.plan.PoisonLevels {
		for _, ms := range r.plan.Models {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			res, err := r.runOne(ctx, exp, i, level, paramsOf(ms))
			if err != nil {
				return results, fmt.Errorf("run %d (poison %.1f%%, depth %d): %w", i+1, level*100, ms.MaxDepth, err)
			}
			log.Info("run finished",
				"run_id", res.RunID, "run", res.RunName,
				"poison_percent", level*100, "poisoned_cells", res.PoisonedCells,
				MetricTrainAccuracy, res.TrainAccuracy, MetricCleanAccuracy, res.CleanAccuracy,
				"model_version", res.ModelVersion)
			results = append(results, res)
			i++
		}
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, exp tracking.Experiment, i int, fraction float64, params model.Params) (res Result, err error) {
	res = Result{RunName: runName(i, params.MaxDepth, fraction), PoisonFraction: fraction, Params: params}
	run, err := r.tracker.StartRun(ctx, exp.ID, res.RunName)
	if err != nil {
		return res, err
	}
	res.RunID = run.ID

	defer func() {
		status := tracking.StatusFinished
		if err != nil {
			status = tracking.StatusFailed
		}
		// Runs are closed even when ctx was cancelled mid-run.
		if endErr := r.tracker.EndRun(context.WithoutCancel(ctx), run.ID, status); endErr != nil {
			err = errors.Join(err, endErr)
			status = tracking.StatusFailed
		}
		if r.metrics != nil {
			r.metrics.TrainingRunsTotal.WithLabelValues(string(status)).Inc()
		}
		r.publish(exp, res, status, err)
	}()

	if err = r.tracker.LogParams(ctx, run.ID, map[string]string{
		ParamMaxDepth:      strconv.Itoa(params.MaxDepth),
		ParamCriterion:     params.Criterion,
		ParamRandomState:   strconv.FormatInt(params.RandomState, 10),
		ParamPoisonPercent: strconv.FormatFloat(fraction, 'g', -1, 64),
	}); err != nil {
		return res, err
	}

	// Labels are never touched; only the training features are poisoned.
	X, y, err := poison.New(RunSource(r.plan.Seed, i)).Poison(r.train.Features, r.train.Labels, fraction)
	if err != nil {
		return res, err
	}
	rows, cols := X.Dims()
	if fraction > 0 {
		res.PoisonedCells = poison.CellCount(rows, cols, fraction)
	}
	if r.metrics != nil {
		r.metrics.PoisonedCellsTotal.Add(float64(res.PoisonedCells))
	}

	tree, err := model.Fit(X.Rows(), y, X.Columns(), params)
	if err != nil {
		return res, err
	}
	if res.TrainAccuracy, err = accuracy(tree, X, y); err != nil {
		return res, err
	}
	if res.CleanAccuracy, err = accuracy(tree, r.clean.Features, r.clean.Labels); err != nil {
		return res, err
	}
	if err = r.tracker.LogMetric(ctx, run.ID, MetricTrainAccuracy, res.TrainAccuracy); err != nil {
		return res, err
	}
	if err = r.tracker.LogMetric(ctx, run.ID, MetricCleanAccuracy, res.CleanAccuracy); err != nil {
		return res, err
	}
	if r.metrics != nil {
		r.metrics.ObserveRun(fraction, params.MaxDepth, res.TrainAccuracy, res.CleanAccuracy)
	}

	mv, err := r.publisher.Publish(ctx, r.plan.ModelName, run.ID, tree)
	if err != nil {
		return res, err
	}
	res.ModelVersion = mv.Version
	return res, nil
}

// publish fans the run event out to every sink. Sink failures are logged,
// they never fail the run.
func (r *Runner) publish(exp tracking.Experiment, res Result, status tracking.RunStatus, runErr error) {
	ev := sink.Event{
		RunID:          res.RunID,
		RunName:        res.RunName,
		Experiment:     exp.Name,
		PoisonFraction: res.PoisonFraction,
		Params: map[string]string{
			ParamMaxDepth:    strconv.Itoa(res.Params.MaxDepth),
			ParamCriterion:   res.Params.Criterion,
			ParamRandomState: strconv.FormatInt(res.Params.RandomState, 10),
		},
		Metrics: map[string]float64{
			MetricTrainAccuracy: res.TrainAccuracy,
			MetricCleanAccuracy: res.CleanAccuracy,
		},
		ModelName:    r.plan.ModelName,
		ModelVersion: res.ModelVersion,
		Status:       string(status),
		Time:         r.now().UTC(),
	}
	if runErr != nil {
		ev.Error = runErr.Error()
		ev.Metrics = nil
	}
	for _, s := range r.sinks {
		if err := s.Push(ev); err != nil {
			logging.For("pipeline").Warn("sink push failed", "run_id", res.RunID, "err", err)
		}
	}
}

func accuracy(m model.Classifier, x *dataset.Table, y dataset.Labels) (float64, error) {
	pred, err := m.Predict(x.Rows())
	if err != nil {
		return 0, err
	}
	return model.Accuracy(y, pred), nil
}

func paramsOf(ms plan.ModelSpec) model.Params {
	p := model.Params{
		MaxDepth:        ms.MaxDepth,
		Criterion:       ms.Criterion,
		RandomState:     ms.RandomState,
		MinSamplesSplit: ms.MinSamplesSplit,
		MinSamplesLeaf:  ms.MinSamplesLeaf,
	}
	if p.Criterion == "" {
		p.Criterion = model.CriterionGini
	}
	return p
}

func runName(i, depth int, fraction float64) string {
	name := fmt.Sprintf("run_%d_depth_%d", i+1, depth)
	if fraction > 0 {
		name += "_poison_" + strconv.FormatFloat(fraction*100, 'f', 1, 64)
	}
	return name
}
