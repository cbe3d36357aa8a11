package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"irisml/internal/config"
	"irisml/internal/logging"
	"irisml/internal/predict"
	"irisml/internal/telemetry"
	"irisml/internal/tracking"
	"irisml/internal/transport"
	"irisml/sink"
	"irisml/source/kafka"
)

type Engine struct {
	cfg      config.Config
	store    *tracking.Store
	service  *predict.Service
	metrics  *telemetry.Metrics
	http     *http.Server
	grpc     *transport.Server // nil when disabled
	watcher  kafka.Adapter     // nil when disabled
	onReload func(ready bool)
	shutdown time.Duration
}

func (e *Engine) Service() *predict.Service { return e.service }

func (e *Engine) Handler() http.Handler { return e.http.Handler }

// Run serves HTTP, gRPC and the optional metrics port until ctx is done or
// one listener fails, then drains them within the shutdown timeout.
func (e *Engine) Run(ctx context.Context) error {
	log := logging.For("engine")
	g, gctx := errgroup.WithContext(ctx)

	metricsSrv := telemetry.Expose(e.cfg.Metrics.Port, e.metrics)

	g.Go(func() error {
		log.Info("http listening", "addr", e.http.Addr)
		if err := e.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if e.grpc != nil {
		g.Go(func() error {
			log.Info("grpc listening", "addr", e.grpc.Addr().String())
			return e.grpc.Serve()
		})
	}
	if e.watcher != nil {
		g.Go(func() error {
			log.Info("watching run events", "topics", e.cfg.Watch.Kafka.Topics)
			err := e.watcher.Run(gctx, e.onRunEvent)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", e.shutdown)
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.shutdown)
		defer cancel()

		if e.grpc != nil {
			e.grpc.Stop()
		}
		return errors.Join(
			e.http.Shutdown(sctx),
			telemetry.Shutdown(sctx, metricsSrv),
		)
	})

	err := g.Wait()
	if e.watcher != nil {
		err = errors.Join(err, e.watcher.Close())
	}
	return errors.Join(err, e.store.Close())
}

// onRunEvent reloads the model when a run registers a version newer than
// the one serving. Reload failures are logged and the consumer continues.
func (e *Engine) onRunEvent(ctx context.Context, ev sink.Event) error {
	if ev.Status != string(tracking.StatusFinished) || ev.ModelName != e.cfg.Model.Name {
		return nil
	}
	if cur, ok := e.service.Version(); ok && ev.ModelVersion <= cur.Version {
		return nil
	}
	log := logging.For("engine")
	if _, err := e.service.Reload(ctx); err != nil {
		log.Warn("reload after run event failed", "run_id", ev.RunID, "err", err)
	}
	if e.onReload != nil {
		e.onReload(e.service.Ready())
	}
	return nil
}
