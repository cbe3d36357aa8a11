package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"irisml/internal/config"
	"irisml/internal/dataset"
	"irisml/internal/model"
	"irisml/internal/registry"
	"irisml/internal/tracking"
	"irisml/sink"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		HTTP:            config.HTTPCfg{Addr: "127.0.0.1:0"},
		Tracking:        config.TrackingCfg{DBPath: filepath.Join(t.TempDir(), "runs.db"), Experiment: config.DefaultExperiment},
		Model:           config.ModelCfg{Name: config.DefaultModelName},
		ShutdownTimeout: 2 * time.Second,
	}
}

func publish(t *testing.T, dbPath string) {
	t.Helper()
	store, err := tracking.Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	exp, _ := store.SetExperiment(ctx, config.DefaultExperiment)
	run, _ := store.StartRun(ctx, exp.ID, "run_1_depth_3")
	tree, err := model.Fit(
		[][]float64{{5.1, 3.5, 1.4, 0.2}, {7.0, 3.2, 4.7, 1.4}, {6.3, 3.3, 6.0, 2.5}},
		[]string{"setosa", "versicolor", "virginica"},
		dataset.IrisFeatures, model.Params{MaxDepth: 3})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if _, err := registry.New(store).Publish(ctx, config.DefaultModelName, run.ID, tree); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func health(t *testing.T, e *Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	e.Handler().ServeHTTP(w, req)
	return w.Body.String()
}

func TestBootstrap_NoModelStillServes(t *testing.T) {
	e, err := Bootstrap(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if e.Service().Ready() {
		t.Fatal("no model was published")
	}
	if body := health(t, e); !strings.Contains(body, `"model_status":"load_failed"`) {
		t.Fatalf("unexpected health %s", body)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not shut down")
	}
}

func TestBootstrap_LoadsLatestModel(t *testing.T) {
	cfg := testConfig(t)
	publish(t, cfg.Tracking.DBPath)

	e, err := Bootstrap(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = e.store.Close() })
	if !e.Service().Ready() {
		t.Fatal("model should be loaded")
	}
	if body := health(t, e); !strings.Contains(body, `"model_status":"loaded"`) {
		t.Fatalf("unexpected health %s", body)
	}
}

func TestOnRunEvent_ReloadsNewerVersions(t *testing.T) {
	cfg := testConfig(t)
	e, err := Bootstrap(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	t.Cleanup(func() { _ = e.store.Close() })
	var serving []bool
	e.onReload = func(ready bool) { serving = append(serving, ready) }
	ctx := context.Background()

	// Another process trains and registers v1 in the same database.
	publish(t, cfg.Tracking.DBPath)

	ignored := []sink.Event{
		{Status: "FAILED", ModelName: cfg.Model.Name, ModelVersion: 1},
		{Status: "FINISHED", ModelName: "other-model", ModelVersion: 1},
	}
	for _, ev := range ignored {
		if err := e.onRunEvent(ctx, ev); err != nil {
			t.Fatalf("onRunEvent: %v", err)
		}
	}
	if e.Service().Ready() || len(serving) != 0 {
		t.Fatal("unrelated events must not trigger a reload")
	}

	if err := e.onRunEvent(ctx, sink.Event{Status: "FINISHED", ModelName: cfg.Model.Name, ModelVersion: 1}); err != nil {
		t.Fatalf("onRunEvent: %v", err)
	}
	if v, ok := e.Service().Version(); !ok || v.Version != 1 {
		t.Fatalf("want v1 serving, got v%d ok=%v", v.Version, ok)
	}
	if len(serving) != 1 || !serving[0] {
		t.Fatalf("serving callback: %v", serving)
	}

	// Replays of an already-serving version are no-ops.
	_ = e.onRunEvent(ctx, sink.Event{Status: "FINISHED", ModelName: cfg.Model.Name, ModelVersion: 1})
	if len(serving) != 1 {
		t.Fatalf("stale event reloaded: %v", serving)
	}
}

func TestBootstrap_WatchMisconfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch = config.WatchCfg{Enabled: true, Driver: "sarama"}
	if _, err := Bootstrap(context.Background(), cfg); err == nil {
		t.Fatal("expected watch configuration error")
	}
}
