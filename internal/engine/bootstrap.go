package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"irisml/internal/api"
	"irisml/internal/config"
	"irisml/internal/logging"
	"irisml/internal/predict"
	"irisml/internal/registry"
	"irisml/internal/telemetry"
	"irisml/internal/tracking"
	"irisml/internal/transport"
	"irisml/source/kafka"
)

// Bootstrap opens the tracking store, loads the latest model and prepares
// the listeners. A missing model is not fatal: the API serves with
// model_status load_failed until /admin/reload succeeds.
func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	log := logging.For("engine")

	// 1. tracking store + registry
	store, err := tracking.Open(cfg.Tracking.DBPath)
	if err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}

	// 2. model
	metrics := telemetry.New()
	svc := predict.NewService(registry.New(store), cfg.Model.Name, metrics)
	if _, err := svc.Load(ctx); err != nil {
		log.Error("could not load model at startup", "model", cfg.Model.Name, "db", cfg.Tracking.DBPath, "err", err)
	}

	// 3. transport server
	var grpcSrv *transport.Server
	if cfg.GRPC.Port > 0 {
		grpcSrv, err = transport.StartServer(cfg.GRPC.Port)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("transport: %w", err)
		}
		grpcSrv.SetServing(svc.Ready())
	}

	// 4. run-event watcher
	var watcher kafka.Adapter
	if cfg.Watch.Enabled {
		if watcher, err = kafka.NewAdapter(cfg.Watch.Driver); err == nil {
			err = watcher.Configure(cfg.Watch.Kafka)
		}
		if err != nil {
			if grpcSrv != nil {
				grpcSrv.Stop()
			}
			_ = store.Close()
			return nil, fmt.Errorf("watch: %w", err)
		}
	}

	// 5. HTTP API
	onReload := func(ready bool) {
		if grpcSrv != nil {
			grpcSrv.SetServing(ready)
		}
	}
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(svc, metrics, onReload),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		service:  svc,
		metrics:  metrics,
		http:     httpSrv,
		grpc:     grpcSrv,
		watcher:  watcher,
		onReload: onReload,
		shutdown: cfg.ShutdownTimeout,
	}, nil
}
