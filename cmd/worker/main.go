package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/knowledge-gateway/internal/bootstrap"
	"github.com/kirillkom/knowledge-gateway/internal/config"
	"github.com/kirillkom/knowledge-gateway/internal/core/domain"
	"github.com/kirillkom/knowledge-gateway/internal/observability/logging"
	"github.com/kirillkom/knowledge-gateway/internal/observability/metrics"
)

const processTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: mux,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	pool, err := ants.NewPool(cfg.WorkerPoolSize)
	if err != nil {
		log.Fatalf("worker pool error: %v", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(30 * time.Second); err != nil {
			logger.Warn("worker_pool_release_timeout", "error", err)
		}
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeEnrichmentCandidates(ctx, func(_ context.Context, candidate domain.EnrichmentCandidate) error {
		if !candidate.AcceptedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(candidate.AcceptedAt))
		}
		// Submit blocks when every pool worker is busy, which is the
		// backpressure we want between NATS and ingestion.
		return pool.Submit(func() {
			processCtx, cancel := context.WithTimeout(context.Background(), processTimeout)
			defer cancel()

			workerMetrics.StartCandidate()
			start := time.Now()
			chunks, err := app.Processor.Process(processCtx, candidate)
			workerMetrics.FinishCandidate("worker", time.Since(start), err)
			if err != nil {
				logger.Error("candidate_failed", "candidate_id", candidate.ID, "url", candidate.URL, "error", err)
				return
			}
			workerMetrics.ObserveIndexedChunks("worker", chunks)
			logger.Info("candidate_ingested", "candidate_id", candidate.ID, "workspace", candidate.Workspace, "chunks", chunks)
		})
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
