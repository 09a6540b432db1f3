package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"scuola/internal/amqp"
	"scuola/internal/cache"
	"scuola/internal/cli"
	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/notify"
	"scuola/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify worker")
		os.Exit(1)
	}

	var mailer notify.Mailer
	if cfg.SendGridAPIKey != "" {
		mailer = notify.NewSendGridMailer(cfg.SendGridAPIKey, cfg.SchoolName, cfg.NotifyFromEmail)
		logger.Info("Mailing absentee notices through SendGrid", "from", cfg.NotifyFromEmail)
	} else {
		mailer = notify.NewLogMailer(logger)
		logger.Warn("SENDGRID_API_KEY not set, absentee notices will only be logged")
	}

	m := metrics.New()
	w := worker.NewNoticeWorker(mailer, logger, m)
	caches := cache.NewManager(logger)
	caches.Register(w.Sent())
	caches.StartCleanup(cleanupInterval)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}

	root, stop := context.WithCancel(context.Background())
	defer stop()

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", log.FieldError, err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(root, logger, shutdownTimeout, func(ctx context.Context) {
		caches.Stop()
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	logger.Info("Starting notify worker", "queue", cfg.AMQPQueue, "prefetch", cfg.WorkerPrefetch)
	if err := client.ConsumeAbsentees(ctx, cfg.WorkerPrefetch, w.HandleNotice); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		stop()
		cli.WaitForShutdown(ctx, done)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Notify worker stopped")
}
