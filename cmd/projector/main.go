// Command projector consumes user events and maintains the local user
// projection.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/authsync/internal/broker"
	"github.com/and161185/authsync/internal/config"
	"github.com/and161185/authsync/internal/consumer"
	"github.com/and161185/authsync/internal/logx"
	"github.com/and161185/authsync/internal/migrate"
	"github.com/and161185/authsync/internal/repository/postgres"
	"github.com/and161185/authsync/internal/syncer"
	"github.com/and161185/authsync/migrations"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logx.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	logger.Info("starting projector",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Stringer("config", cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applied, err := migrate.Up(ctx, cfg.ProjectionDSN, migrations.Projection)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("migrations applied", zap.Int64s("versions", applied))
	db, err := postgres.New(ctx, cfg.ProjectionDSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()

	coord := syncer.New(cfg.Topology(), postgres.NewProjectionRepo(db))
	handler := consumer.New(coord, cfg.StoreTimeout, logger.Named("consumer"))

	sess, err := broker.Dial(ctx, cfg.RabbitURL,
		broker.WithSetup(broker.TopologySetup(coord)),
		broker.WithRetry(cfg.ReconnectMaxRetries, cfg.ReconnectBase),
		broker.WithLogger(logger.Named("broker")),
	)
	if err != nil {
		logger.Fatal("broker dial", zap.Error(err))
	}
	defer func() { _ = sess.Close() }()

	sub := broker.NewSubscriber(sess, cfg.Queue, cfg.ConsumerPrefetch, cfg.ConsumerWorkers, handler,
		logger.Named("subscriber"), broker.WithRequeueDelay(cfg.RequeueDelay))
	logger.Info("consuming", zap.String("queue", cfg.Queue), zap.Int("workers", cfg.ConsumerWorkers))
	if err := sub.Run(ctx); err != nil {
		logger.Error("subscriber stopped", zap.Error(err))
		return
	}
	logger.Info("shutdown complete")
}
