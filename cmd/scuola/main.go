package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"scuola/internal/amqp"
	"scuola/internal/cli"
	apphttp "scuola/internal/http"
	"scuola/internal/lock"
	"scuola/internal/log"
	"scuola/internal/metrics"
	"scuola/internal/notify"
	"scuola/internal/router"
	"scuola/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	root, stop := context.WithCancel(context.Background())
	defer stop()

	store := cli.OpenBackend(root, logger, cfg)
	m := metrics.New()
	locker := lock.New(cfg.LockTimeout, lock.WithObserver(m.ObserveLockWait))

	// Absentee notices go to the broker when one is configured, otherwise to the log.
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, absentee notices will only be logged", log.FieldError, err)
		} else {
			amqpClient = c
			notifier = c
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	svc := services.New(store.Store, locker, services.Options{
		RejectLockedDays: cfg.AttendanceRejectLocked,
		Logger:           logger,
		Notifier:         notify.WithMetrics(notifier, m),
		SchoolName:       cfg.SchoolName,
	})
	r := router.New(svc, router.WithLogger(logger), router.WithMetrics(m))

	srv, err := apphttp.NewServer(":"+cfg.Port, r, apphttp.Options{
		Logger:             logger,
		Metrics:            m,
		Health:             store.Health,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		AllowedOrigin:      cfg.CORSAllowedOrigin,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(root, logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := store.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting scuola server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"actions", len(r.Actions()),
		"amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		cli.WaitForShutdown(ctx, done)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
