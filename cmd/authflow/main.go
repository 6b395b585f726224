package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/datastore"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/authflow/authflow"
	authgrpc "github.com/authflow/authflow/grpc"
	"github.com/authflow/authflow/oauth2"
	"github.com/authflow/authflow/stores/fs"
	"github.com/authflow/authflow/stores/gae"
	gormstore "github.com/authflow/authflow/stores/gorm"
	"github.com/authflow/authflow/stores/memory"
	redisstore "github.com/authflow/authflow/stores/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	cfg, err := authflow.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	store, closeStore, err := openStore(ctx, cfg.DB)
	if err != nil {
		logger.Error("failed to open user store", "driver", cfg.DB.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	coordinator := authflow.NewCoordinator(store,
		authflow.WithHashCost(cfg.BcryptCost),
		authflow.WithLogger(logger))

	var sessionStore *redisstore.SessionStore
	if cfg.Session.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Session.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to reach redis", "addr", cfg.Session.RedisAddr, "err", err)
			os.Exit(1)
		}
		sessionStore = redisstore.New(client, "")
	}
	manager := authflow.NewSessionManager(cfg.Session, nil)
	if sessionStore != nil {
		manager.Store = sessionStore
	}
	sessions := authflow.NewSessions(manager, coordinator)
	sessions.Logger = logger

	var tokens *authflow.TokenIssuer
	if cfg.JWT.Secret != "" {
		tokens = authflow.NewTokenIssuer(coordinator, cfg.JWT)
	}

	localAuth := &authflow.LocalAuth{
		Coordinator: coordinator,
		Sessions:    sessions,
		Tokens:      tokens,
		Logger:      logger,
	}
	providers := map[string]http.Handler{}
	if cfg.Twitter.Enabled() {
		twitter := oauth2.NewTwitterOAuth2(cfg.Twitter, localAuth.HandleProviderUser)
		twitter.Logger = logger
		providers["twitter"] = twitter
	}
	if cfg.GitHub.Enabled() {
		github := oauth2.NewGithubOAuth2(cfg.GitHub, localAuth.HandleProviderUser)
		github.Logger = logger
		providers["github"] = github
	}
	for name := range providers {
		localAuth.Providers = append(localAuth.Providers, name)
	}

	middleware := &authflow.Middleware{Sessions: sessions, Tokens: tokens, LoginURL: "/login", Logger: logger}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           authflow.NewRouter(authflow.RouterConfig{Auth: localAuth, Middleware: middleware, Providers: providers}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting http server", "address", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer, err = startGRPC(cfg.GRPCAddr, coordinator, logger, &wg, stop)
		if err != nil {
			logger.Error("failed to start grpc server", "address", cfg.GRPCAddr, "err", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during http shutdown", "err", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	wg.Wait()
	logger.Info("shutdown complete")
}

// openStore builds the user store named by cfg.Driver
func openStore(ctx context.Context, cfg authflow.DBConfig) (authflow.Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "sqlite", "postgres":
		db, err := gormstore.Open(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, noop, fmt.Errorf("migrate: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, noop, err
		}
		return gormstore.NewUserStore(db), func() { sqlDB.Close() }, nil
	case "datastore":
		client, err := datastore.NewClient(ctx, cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("datastore client: %w", err)
		}
		return gae.NewUserStore(client, cfg.Namespace), func() { client.Close() }, nil
	case "fs":
		return fs.NewFSUserStore(cfg.DSN), noop, nil
	case "memory":
		return memory.New(), noop, nil
	}
	return nil, noop, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// startGRPC serves the health service behind the session interceptors.
// Applications register their own services on the same server.
func startGRPC(addr string, resolver authgrpc.SessionResolver, logger *slog.Logger, wg *sync.WaitGroup, stop func()) (*grpc.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	config := authgrpc.NewPublicMethodsConfig(resolver,
		healthpb.Health_Check_FullMethodName,
		healthpb.Health_Watch_FullMethodName)
	config.Logger = logger

	server := grpc.NewServer(
		grpc.UnaryInterceptor(authgrpc.UnaryAuthInterceptor(config)),
		grpc.StreamInterceptor(authgrpc.StreamAuthInterceptor(config)),
	)
	healthpb.RegisterHealthServer(server, health.NewServer())

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting grpc server", "address", addr)
		if err := server.Serve(listener); err != nil {
			logger.Error("grpc server failed", "err", err)
			stop()
		}
	}()
	return server, nil
}
