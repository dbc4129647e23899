package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	awardsv1 "github.com/MarkoPoloResearchLab/gamification/api/awards/v1"
	"github.com/MarkoPoloResearchLab/gamification/internal/catalogfile"
	"github.com/MarkoPoloResearchLab/gamification/internal/config"
	"github.com/MarkoPoloResearchLab/gamification/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/gamification/internal/httpapi"
	"github.com/MarkoPoloResearchLab/gamification/internal/lock/redislock"
	"github.com/MarkoPoloResearchLab/gamification/internal/telemetry"
	"github.com/MarkoPoloResearchLab/gamification/pkg/ledger"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server and, when configured, the HTTP api",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *cfg)
		},
	}
}

// daemon bundles what every subcommand needs to talk to the ledger.
type daemon struct {
	logger   *zap.Logger
	service  *ledger.Service
	registry *prometheus.Registry
	closers  []func()
}

func (rt *daemon) Close() {
	for index := len(rt.closers) - 1; index >= 0; index-- {
		rt.closers[index]()
	}
}

func newDaemon(ctx context.Context, cfg config.Config) (*daemon, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	rt := &daemon{logger: logger, registry: prometheus.NewRegistry()}
	rt.closers = append(rt.closers, func() { _ = logger.Sync() })

	catalog, err := catalogfile.Load(cfg.CatalogPath)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("catalog: %w", err)
	}
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeStore)

	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(rt.registry)
	options := []ledger.ServiceOption{
		ledger.WithOperationLogger(telemetry.MultiLogger{telemetry.NewZapLogger(logger), metrics}),
	}
	if cfg.LockBackend == config.LockBackendRedis {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			rt.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		options = append(options, ledger.WithUserLocker(redislock.New(client, redislock.WithTTL(cfg.RedisLockTTL))))
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := ledger.NewService(store, catalog, clock, options...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("award service init: %w", err)
	}
	rt.service = service
	logger.Info("award service ready",
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("lock_backend", cfg.LockBackend),
		zap.Int("currencies", len(catalog.Currencies())),
		zap.Int("badges", len(catalog.Badges())),
	)
	return rt, nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	rt, err := newDaemon(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	awardsv1.RegisterAwardServiceServer(grpcServer, grpcserver.NewAwardServiceServer(rt.service))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		rt.logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		rt.logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		return nil
	})

	if cfg.HTTPEnabled() {
		validator, err := sessionvalidator.New(sessionvalidator.Config{
			SigningKey: []byte(cfg.SessionSigningKey),
			Issuer:     cfg.SessionIssuer,
			CookieName: cfg.SessionCookieName,
		})
		if err != nil {
			grpcServer.Stop()
			return fmt.Errorf("session validator: %w", err)
		}
		gin.SetMode(gin.ReleaseMode)
		router, err := httpapi.NewRouter(cfg, httpapi.Dependencies{
			Service:   rt.service,
			Validator: validator,
			Gatherer:  rt.registry,
			Logger:    rt.logger,
		})
		if err != nil {
			grpcServer.Stop()
			return err
		}
		group.Go(func() error {
			return httpapi.Run(groupCtx, cfg.HTTPListenAddr, router, rt.logger)
		})
	}
	return group.Wait()
}
