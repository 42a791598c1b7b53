package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"assessd/internal/assessment"
	"assessd/internal/cache"
	"assessd/internal/catalog"
	"assessd/internal/config"
	"assessd/internal/logging"
	"assessd/internal/metrics"
	"assessd/internal/repository"
	"assessd/internal/service"
	"assessd/internal/transport/rest"
	"assessd/internal/transport/ws"
)

// @title assessd API
// @version 1.0
// @description Behavioral assessment sessions for DISC and PI instruments
// @host localhost:8080
// @BasePath /v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// stores bundles what the configured driver provides
type stores struct {
	sessions  repository.SessionRepo
	responses repository.ResponseRepo
	catalogs  repository.CatalogRepo
	close     func()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Result cache (optional)
	var results cache.ResultCache = cache.Nop{}
	if cfg.RedisURI != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		results = cache.NewResultCache(rdb, cfg.ResultCacheTTL)
		logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr()))
	}

	engine := assessment.NewEngine()
	engine.Scorer = assessment.NewScorer(assessment.Weights{
		Descriptor:  cfg.DescriptorWeight,
		Situational: cfg.SituationalWeight,
	})

	// Initialize WebSocket hub
	wsHub := ws.NewHub(logger.Named("ws"))
	defer wsHub.Close()

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.RecruiterUser, cfg.RecruiterPass, cfg.CandidateTokenTTL)
	assessmentSvc := service.NewAssessmentService(
		st.sessions,
		st.responses,
		st.catalogs,
		results,
		engine,
		logger.Named("assessment"),
		metrics.Default(),
	)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	assessmentSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:       authSvc,
		AssessmentService: assessmentSvc,
		WSHub:             wsHub,
		Logger:            logger.Named("http"),
		CORSOrigins:       cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.StoreDriver),
			zap.Bool("result_cache", cfg.RedisURI != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	var fileCatalogs repository.CatalogRepo
	if cfg.CatalogFile != "" {
		p, err := catalog.NewFileProvider(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		fileCatalogs = p
		logger.Info("catalog loaded from file", zap.String("path", cfg.CatalogFile))
	}

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		if fileCatalogs == nil {
			return nil, errors.New("sqlite store needs CATALOG_FILE")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		s, err := repository.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.SQLitePath))
		return &stores{
			sessions:  s,
			responses: s,
			catalogs:  fileCatalogs,
			close:     func() { s.Close() },
		}, nil

	default:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("ping mongodb: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := repository.EnsureIndexes(pingCtx, db); err != nil {
			client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info("connected to mongodb", zap.String("db", cfg.MongoDB))

		catalogs := fileCatalogs
		if catalogs == nil {
			catalogs = catalog.NewCached(repository.NewCatalogRepo(db), cfg.CatalogCacheSize, cfg.CatalogCacheTTL)
		}
		return &stores{
			sessions:  repository.NewSessionRepo(db),
			responses: repository.NewResponseRepo(db),
			catalogs:  catalogs,
			close:     func() { client.Disconnect(context.Background()) },
		}, nil
	}
}
