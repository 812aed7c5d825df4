// Command identity serves account and token operations over gRPC and
// announces user changes to the broker.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	api "github.com/and161185/authsync/internal/api/identityv1"
	"github.com/and161185/authsync/internal/broker"
	"github.com/and161185/authsync/internal/config"
	"github.com/and161185/authsync/internal/keystore"
	"github.com/and161185/authsync/internal/limiter"
	"github.com/and161185/authsync/internal/logx"
	"github.com/and161185/authsync/internal/migrate"
	"github.com/and161185/authsync/internal/repository/postgres"
	"github.com/and161185/authsync/internal/revocation"
	grpcserver "github.com/and161185/authsync/internal/server/grpc"
	"github.com/and161185/authsync/internal/service"
	"github.com/and161185/authsync/internal/syncer"
	"github.com/and161185/authsync/internal/token"
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
	logger.Info("starting identity",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.Stringer("config", cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Keys and tokens
	keys, err := keystore.Load(cfg.TokenAlgorithm, cfg.PrivateKeyPath, cfg.PublicKeyPath)
	if err != nil {
		logger.Fatal("load signing keys", zap.Error(err))
	}
	codec := token.NewCodec(keys, token.WithLeeway(cfg.TokenLeeway))

	// Storage
	applied, err := migrate.Up(ctx, cfg.IdentityDSN, migrations.Identity)
	if err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	logger.Info("migrations applied", zap.Int64s("versions", applied))
	db, err := postgres.New(ctx, cfg.IdentityDSN)
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer db.Close()
	userRepo := postgres.NewUserRepo(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	var store revocation.Store
	switch cfg.RevocationBackend {
	case "memory":
		mem := revocation.NewMemory()
		go mem.RunCleanup(ctx, time.Minute)
		store = mem
		logger.Warn("in-memory revocation store: revocations are lost on restart")
	default:
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", zap.Error(err))
		}
		store = revocation.NewRedis(rdb)
	}
	lim := limiter.NewRedis(rdb, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	// Broker
	coord := syncer.New(cfg.Topology(), nil)
	sess, err := broker.Dial(ctx, cfg.RabbitURL,
		broker.WithSetup(broker.TopologySetup(coord)),
		broker.WithRetry(cfg.ReconnectMaxRetries, cfg.ReconnectBase),
		broker.WithLogger(logger.Named("broker")),
	)
	if err != nil {
		logger.Fatal("broker dial", zap.Error(err))
	}
	defer func() { _ = sess.Close() }()
	pub := broker.NewPublisher(sess, coord, cfg.BrokerTimeout, logger.Named("publisher"))

	// Services
	tokens := service.NewTokenService(codec, store, service.TokenConfig{
		AccessTTL:        cfg.AccessTTL,
		RefreshTTL:       cfg.RefreshTTL,
		StoreTimeout:     cfg.StoreTimeout,
		BlacklistEnabled: cfg.BlacklistEnabled,
	}, logger.Named("tokens"))
	authSvc := service.NewAuthService(userRepo, tokens, lim, pub, service.PublishPolicy{
		MaxRetries: cfg.PublishMaxRetries,
		Base:       cfg.PublishRetryBase,
	}, logger.Named("auth"))

	// gRPC server with interceptors
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(tokens, api.Identity_UpdateEmail_FullMethodName),
		),
	}
	if cfg.GRPCInsecure {
		logger.Warn("serving without TLS")
	} else {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	app := grpcserver.New(authSvc, tokens, keys, logger.Named("grpc"))
	api.RegisterIdentityServer(s, app)

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.GRPCReflection {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.GRPCAddr), zap.Bool("tls", !cfg.GRPCInsecure))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
