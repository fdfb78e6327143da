package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autoquest/autoquest/internal/bootstrap"
	"github.com/autoquest/autoquest/internal/config"
	"github.com/autoquest/autoquest/internal/core/domain"
	natsbus "github.com/autoquest/autoquest/internal/infrastructure/queue/nats"
	"github.com/autoquest/autoquest/internal/observability/logging"
)

const serviceWorker = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger(serviceWorker, "info").Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger(serviceWorker, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: worker.Metrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	documentsDone := make(chan error, 1)
	queriesDone := make(chan error, 1)

	go func() {
		documentsDone <- worker.Bus.SubscribeDocumentEvents(ctx, func(handlerCtx context.Context, event domain.DocumentEvent) error {
			worker.Metrics.ObserveEventLag(serviceWorker, natsbus.SubjectDocuments, time.Since(event.OccurredAt))
			worker.Metrics.StartEvent()
			start := time.Now()

			recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
			defer cancel()
			err := worker.Journal.RecordDocumentEvent(recordCtx, event)

			worker.Metrics.FinishEvent(serviceWorker, natsbus.SubjectDocuments, time.Since(start), err)
			return err
		})
	}()

	go func() {
		queriesDone <- worker.Bus.SubscribeQueryEvents(ctx, func(handlerCtx context.Context, event domain.QueryEvent) error {
			worker.Metrics.ObserveEventLag(serviceWorker, natsbus.SubjectQueries, time.Since(event.OccurredAt))
			worker.Metrics.StartEvent()
			start := time.Now()

			recordCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
			defer cancel()
			err := worker.Journal.RecordQuery(recordCtx, event)

			worker.Metrics.FinishEvent(serviceWorker, natsbus.SubjectQueries, time.Since(start), err)
			return err
		})
	}()

	logger.Info("worker subscribed",
		"documents_subject", natsbus.SubjectDocuments,
		"queries_subject", natsbus.SubjectQueries,
	)

	for i := 0; i < 2; i++ {
		select {
		case err := <-documentsDone:
			if err != nil {
				logger.Error("document subscription error", "error", err)
				stop()
			}
		case err := <-queriesDone:
			if err != nil {
				logger.Error("query subscription error", "error", err)
				stop()
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
