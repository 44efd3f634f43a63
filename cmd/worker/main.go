// Package main is the entry point for the Tillpoint background worker.
// It relays the transactional outbox and runs periodic cleanup.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tillpoint/internal/app"
	"tillpoint/internal/config"
	"tillpoint/internal/infrastructure/events"
	"tillpoint/internal/infrastructure/storage/postgres"
	"tillpoint/pkg/logger"
)

// publishedRetention is how long delivered outbox rows are kept.
const publishedRetention = 7 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
		Service:     "tillpoint-worker",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatalw("worker requires the postgres driver", "driver", cfg.Database.Driver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting tillpoint worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	worker := NewWorker(a, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the background loops of one process.
type Worker struct {
	cfg       config.WorkerConfig
	pool      *postgres.Pool
	relay     *postgres.OutboxRelay
	envelopes *postgres.EnvelopeStore
	log       *logger.Logger
}

func NewWorker(a *app.App, log *logger.Logger) *Worker {
	var handler postgres.OutboxHandler = events.LogHandler{}
	if a.Redis != nil {
		handler = events.Fanout{
			events.LogHandler{},
			events.NewRedisHandler(a.Redis, a.Config.Redis.EventsChannel, 0),
		}
	}

	return &Worker{
		cfg:       a.Config.Worker,
		pool:      a.Pool,
		relay:     postgres.NewOutboxRelay(a.TxManager, a.Config.Worker.OutboxBatchSize, handler),
		envelopes: a.Envelopes,
		log:       log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)

	outboxTicker := time.NewTicker(w.cfg.OutboxPollInterval)
	defer outboxTicker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(w.cfg.PoolStatsInterval)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-outboxTicker.C:
			w.drainOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		case <-statsTicker.C:
			postgres.LogPoolStats(ctx, w.pool.Pool)
		}
	}
}

// drainOutbox processes batches until one comes back short.
func (w *Worker) drainOutbox(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "count", n)
		}
		if n < w.cfg.OutboxBatchSize {
			return
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "error", err)
	} else if n > 0 {
		w.log.Warnw("moved outbox messages to DLQ", "count", n)
	}

	if n, err := w.relay.PurgePublished(ctx, publishedRetention); err != nil {
		w.log.Errorw("failed to purge published outbox messages", "error", err)
	} else if n > 0 {
		w.log.Infow("purged published outbox messages", "count", n)
	}

	if n, err := w.envelopes.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up sync envelopes", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up expired sync envelopes", "count", n)
	}
}
