package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/PaulBabatuyi/resonance/internal/auth"
	"github.com/PaulBabatuyi/resonance/internal/config"
	"github.com/PaulBabatuyi/resonance/internal/logger"
	"github.com/PaulBabatuyi/resonance/internal/middleware"
	"github.com/PaulBabatuyi/resonance/internal/notify"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg.Store, cfg.Matching.StrictPairKey, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = st.close(closeCtx)
	}()

	// Single JWT_SECRET is the backward-compatible path; JWT_KEYS enables rotation.
	var jwtMgr *auth.JWTManager
	if len(cfg.JWT.Keys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWT.Keys, cfg.JWT.ActiveKID, cfg.JWT.TTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	}

	// Small burst to allow a couple of quick retries.
	limiterStore := middleware.NewLimiterStore(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, time.Minute)
	defer limiterStore.Stop()
	notifyLimits := middleware.NewLimiterStore(cfg.RateLimit.NotifyPerMinute, cfg.RateLimit.NotifyBurst, time.Minute)
	defer notifyLimits.Stop()

	hub := NewConnectionHub()
	dispatcherOpts := []notify.Option{
		notify.WithArchive(notify.NewStoreSink(st.notifications)),
		notify.WithSink(hub),
		notify.WithQueueSize(cfg.Notify.QueueSize),
		notify.WithLimiter(notifyLimits),
	}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		dispatcherOpts = append(dispatcherOpts, notify.WithSink(notify.NewRedisSink(rdb,
			notify.WithChannelPrefix(cfg.Redis.ChannelPrefix),
			notify.WithRedisLogger(log))))
		log.Info("publishing notifications to redis", zap.String("addr", cfg.Redis.Addr))
	}
	dispatcher := notify.NewDispatcher(st.users, log, dispatcherOpts...)

	srv := newServer(st, dispatcher, jwtMgr, hub, log, cfg.Matching.RetryDelay)
	hub.presence = srv.setPresence

	serverOpts, err := tlsOptions(cfg.TLS)
	if err != nil {
		return err
	}
	if len(serverOpts) == 0 {
		log.Warn("TLS is not configured; serving plaintext")
	}
	// logging outermost so rejected calls are logged too; auth before rate
	// limiting so authenticated calls are limited per user
	serverOpts = append(serverOpts,
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(log),
			authUnaryInterceptor(jwtMgr),
			middleware.RateLimitUnaryInterceptor(limiterStore, limitedMethods),
		),
		grpc.ChainStreamInterceptor(
			logger.StreamServerInterceptor(log),
			authStreamInterceptor(jwtMgr),
		),
	)

	grpcServer := grpc.NewServer(serverOpts...)
	registerService(grpcServer, srv)

	listenAddr := fmt.Sprintf(":%s", cfg.App.Port)
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", listenAddr), zap.String("env", cfg.App.Env), zap.String("store", cfg.Store.Driver))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gRPC server")
		// watch streams only end when their client goes away
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			log.Warn("graceful stop timed out, closing open streams")
			grpcServer.Stop()
		}
		return nil
	})
	return g.Wait()
}

// tlsOptions returns the credentials option when a certificate is configured.
func tlsOptions(cfg config.TLSConfig) ([]grpc.ServerOption, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		if cfg.Required {
			return nil, errors.New("TLS is required but tls.cert_file/tls.key_file are not configured")
		}
		return nil, nil
	}
	creds, err := credentials.NewServerTLSFromFile(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load TLS certs: %w", err)
	}
	return []grpc.ServerOption{grpc.Creds(creds)}, nil
}
