package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xtding233/tarot-house/internal/catalog"
	"github.com/xtding233/tarot-house/internal/config"
	"github.com/xtding233/tarot-house/internal/gacha"
	"github.com/xtding233/tarot-house/internal/ledger"
	"github.com/xtding233/tarot-house/internal/metrics"
	"github.com/xtding233/tarot-house/internal/pull"
	"github.com/xtding233/tarot-house/internal/shop"
	"github.com/xtding233/tarot-house/internal/transport/grpcapi"
	"github.com/xtding233/tarot-house/internal/transport/httpapi"
)

func main() {
	configPath := flag.String("config", "./configs", "directory holding config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("cannot load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := catalog.NewLoader(cfg.Catalog.Dir)
	cat, err := loader.Load()
	if err != nil {
		logger.Error("cannot load catalog", "dir", cfg.Catalog.Dir, "error", err)
		os.Exit(1)
	}
	pools := catalog.NewSource(cat)
	logger.Info("catalog loaded", "version", cat.Version(), "pools", len(cat.Pools()))
	if cfg.Catalog.ReloadInterval > 0 {
		reloader := catalog.NewReloader(loader, pools, cfg.Catalog.ReloadInterval, logger)
		reloader.Start()
		defer reloader.Stop()
	}

	store, closeStore, err := openStore(ctx, cfg.Ledger)
	if err != nil {
		logger.Error("cannot open ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	accounts := ledger.NewService(logger, store)

	var rng gacha.RandomSource = gacha.DefaultRNG()
	if cfg.RNG.Seed != 0 {
		logger.Warn("using seeded random source", "seed", cfg.RNG.Seed)
		rng = gacha.NewSeededRNG(cfg.RNG.Seed)
	}

	m := metrics.New()
	processor := pull.NewProcessor(logger, pools, accounts, rng, m)
	ticketShop := shop.New(logger, cfg.ShopCatalog(), accounts)

	var limiter *httpapi.RateLimiter
	if cfg.HTTP.RateLimit.RPS > 0 {
		limiter = httpapi.NewRateLimiter(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst)
		limiter.StartCleanup(10*time.Minute, ctx.Done())
	}

	starting := ledger.Balance{Tickets: cfg.Session.StartingTickets, Diamonds: cfg.Session.StartingDiamonds}
	handler := httpapi.NewHandler(logger, pools, processor, accounts, ticketShop, starting, gacha.DefaultRNG())
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewRouter(logger, handler, limiter, m.Handler()),
	}

	var grpcLimiter grpcapi.Limiter
	if limiter != nil {
		grpcLimiter = limiter
	}
	grpcServer, err := grpcapi.New(cfg.GRPC.Addr, grpcapi.NewService(logger, pools, processor, accounts), grpcLimiter, logger)
	if err != nil {
		logger.Error("cannot start grpc server", "error", err)
		os.Exit(1)
	}
	grpcDone := make(chan error, 1)
	go func() { grpcDone <- grpcServer.Serve(ctx) }()

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := <-grpcDone; err != nil {
		logger.Error("grpc shutdown", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.LedgerConfig) (ledger.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return ledger.NewRedisStore(rdb, cfg.Redis.Prefix, cfg.Redis.SessionTTL), func() { _ = rdb.Close() }, nil
	default:
		return ledger.NewMemoryStore(), func() {}, nil
	}
}
