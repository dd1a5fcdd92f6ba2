package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting report-worker")

	if cfg.AMQPURL == "" && cfg.ScheduleInterval == 0 {
		logger.Error("Nothing to do: set AMQP_URL, SCHEDULE_INTERVAL or both")
		os.Exit(1)
	}

	components := cli.InitComponents(context.Background(), logger, cfg)
	defer components.Close()

	var scheduler *services.Scheduler
	var amqpClient *amqp.Client

	ctx, done := cli.GracefulShutdown(logger, 5*time.Minute, func(ctx context.Context) {
		if scheduler != nil && scheduler.IsRunning() {
			if err := scheduler.Stop(ctx); err != nil {
				logger.Error("Scheduler stop error", log.FieldError, err)
			}
			if last := scheduler.LastPeriod(); !last.IsZero() {
				logger.Info("Last scheduled month", log.FieldPeriod, last.String())
			}
		}
	})

	var wg sync.WaitGroup

	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		processed := cache.NewLRUCache[services.BatchSummary](256, 24*time.Hour)
		caches := cache.NewManager(logger)
		caches.Register(processed)
		caches.StartCleanup(time.Hour)
		defer caches.Stop()

		reportWorker := worker.NewReportWorker(components.Orchestrator, processed, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := amqpClient.ConsumeReportRuns(ctx, reportWorker.HandleRunMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				os.Exit(1)
			}
		}()
		logger.Info("Consuming report runs", "queue", cfg.AMQPQueue)
	}

	if cfg.ScheduleInterval > 0 {
		scheduler = services.NewScheduler(components.Orchestrator, components.Checkpoint,
			services.SchedulerConfig{Interval: cfg.ScheduleInterval}, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Error("Failed to start scheduler", log.FieldError, err)
			os.Exit(1)
		}
	}

	cli.WaitForShutdown(ctx, done)
	wg.Wait()
	logger.Info("Worker stopped gracefully")
}
