package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/media-catalog/internal/auth"
	"github.com/Clark-Hu/media-catalog/internal/blobtoken"
	"github.com/Clark-Hu/media-catalog/internal/cache"
	"github.com/Clark-Hu/media-catalog/internal/cache/lru"
	"github.com/Clark-Hu/media-catalog/internal/cache/redis"
	"github.com/Clark-Hu/media-catalog/internal/catalog"
	"github.com/Clark-Hu/media-catalog/internal/config"
	httpserver "github.com/Clark-Hu/media-catalog/internal/http"
	"github.com/Clark-Hu/media-catalog/internal/rating"
	"github.com/Clark-Hu/media-catalog/internal/repository"
	"github.com/Clark-Hu/media-catalog/internal/repository/memory"
	"github.com/Clark-Hu/media-catalog/internal/sentiment"
	"github.com/Clark-Hu/media-catalog/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	stores, health, closeStore, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	backend, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()
	layer := cache.New(backend, logger)
	invalidator := cache.NewInvalidator(layer, cfg.CacheInvalidationQueue, cfg.CacheInvalidationWorkers, logger)

	issuer, err := blobtoken.New(blobtoken.Options{
		AccountName: cfg.StorageAccountName,
		AccountKey:  cfg.StorageAccountKey,
		Container:   cfg.StorageContainerName,
		Endpoint:    cfg.BlobEndpoint,
		AllowHTTP:   cfg.BlobAllowHTTP,
	})
	if err != nil {
		logger.Error("init blob token issuer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var annotator sentiment.Annotator = sentiment.Noop{}
	if cfg.SentimentURL != "" {
		client, err := sentiment.NewHTTPClient(cfg.SentimentURL, cfg.SentimentAPIKey,
			time.Duration(cfg.SentimentTimeoutMilli)*time.Millisecond, cfg.SentimentRPS, logger)
		if err != nil {
			logger.Error("init sentiment client", slog.String("error", err.Error()))
			os.Exit(1)
		}
		annotator = client
	} else {
		logger.Warn("SENTIMENT_URL not set, comments will be scored neutral")
	}

	aggregator := rating.NewAggregator(stores.Items, stores.Ratings, cfg.RatingMaxAttempts, logger)
	svc := catalog.New(catalog.Deps{
		Items:       stores.Items,
		Comments:    stores.Comments,
		Aggregator:  aggregator,
		Cache:       layer,
		Invalidator: invalidator,
		Tokens:      issuer,
		Sentiment:   annotator,
		Logger:      logger,
	}, catalog.Options{
		ListTTL:          time.Duration(cfg.CacheTTLListSecs) * time.Second,
		ItemTTL:          time.Duration(cfg.CacheTTLItemSecs) * time.Second,
		ReadTokenMinutes: cfg.ReadTokenMinutes,
		MaxAttempts:      cfg.RatingMaxAttempts,
	})
	authSvc := auth.NewService(stores.Users, auth.NewTokens(cfg.JWTSecret), logger)

	if cfg.RatingReconcileSecs > 0 {
		reconciler := rating.NewReconciler(stores.Items, stores.Ratings, time.Duration(cfg.RatingReconcileSecs)*time.Second, logger)
		reconciler.OnCorrected(svc.InvalidateItem)
		reconciler.Start(ctx)
		defer reconciler.Stop()
	}

	server := httpserver.New(cfg, svc, authSvc, health, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("graceful shutdown error", slog.String("error", err.Error()))
	}
	if err := invalidator.Close(shutdownCtx); err != nil {
		logger.Warn("cache invalidation queue not drained", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

// openStores selects the persistence driver. The returned health checker is
// nil for the in-memory driver.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Stores, httpserver.HealthChecker, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New().Stores(), nil, func() {}, nil
	}

	if cfg.DBAutoMigrate {
		if err := store.Migrate(cfg.DBURL, logger); err != nil {
			return repository.Stores{}, nil, nil, err
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DBConnTimeoutSecs)*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return repository.Stores{}, nil, nil, err
	}
	return repository.New(st).Stores(), st, st.Close, nil
}

// openCache selects the cache backend. A nil backend disables caching; a
// Redis backend that fails its first ping is still used and degrades per call.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Backend, func()) {
	switch cfg.CacheBackend {
	case config.CacheBackendLRU:
		maxTTL := time.Duration(max(cfg.CacheTTLListSecs, cfg.CacheTTLItemSecs)) * time.Second
		return lru.New(cfg.CacheLRUSize, maxTTL), func() {}
	case config.CacheBackendRedis:
		if cfg.RedisAddr == "" {
			logger.Warn("REDIS_ADDR not set, caching disabled")
			return nil, func() {}
		}
		backend := redis.New(redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			TLS:      cfg.RedisTLS,
			Timeout:  time.Duration(cfg.RedisTimeoutMillis) * time.Millisecond,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := backend.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable at startup, serving uncached until it recovers",
				slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		}
		return backend, func() { _ = backend.Close() }
	default:
		logger.Info("caching disabled")
		return nil, func() {}
	}
}
