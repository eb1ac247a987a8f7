package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock_ledger/api"
	"stock_ledger/internal/config"
	"stock_ledger/internal/coordinator"
	"stock_ledger/internal/events"
	"stock_ledger/internal/observability"
	"stock_ledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	gw, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer closeStore()

	state, err := coordinator.Load(ctx, gw)
	if err != nil {
		logger.Fatal("failed to load snapshots", zap.Error(err))
	}

	writer := store.NewWriter(gw, logger.Named("writer"), store.WithRetry(200*time.Millisecond, cfg.SaveMaxRetryElapsed))
	go func() {
		for err := range writer.Failures() {
			logger.Warn("changes not saved; in-memory state is still current", zap.Error(err))
		}
	}()

	var publisher events.Publisher = events.NopPublisher{}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(brokers, cfg.KafkaTopic), logger.Named("events"))
		defer kp.Close()
		publisher = kp
	}

	coord := coordinator.New(state,
		coordinator.WithLogger(logger.Named("coordinator")),
		coordinator.WithWriter(writer),
		coordinator.WithPublisher(publisher),
		coordinator.WithLowStockThreshold(cfg.LowStockThreshold),
	)
	if err := coord.Verify(); err != nil {
		logger.Fatal("loaded state is inconsistent", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(api.RequestID())
	router.Use(api.Logger(logger.Named("http")))
	api.InitRoutes(router, coord, logger.Named("api"))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := coord.Close(shutdownCtx); err != nil {
		logger.Warn("pending events not delivered", zap.Error(err))
	}
	if err := writer.Close(shutdownCtx); err != nil {
		logger.Error("pending snapshots not saved", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	logger.Info("Server exited")
}

// openStore builds the snapshot gateway for the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (store.Gateway, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemoryStore(), noop, nil
	case config.BackendDynamoDB:
		client, err := store.NewDynamoDBClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, noop, err
		}
		return store.NewDynamoStore(client, cfg.DynamoTable), noop, nil
	case config.BackendPostgres:
		pool, err := store.NewPgxPool(ctx, cfg.PgsqlURL)
		if err != nil {
			return nil, noop, err
		}
		gw, err := store.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return gw, pool.Close, nil
	default:
		gw, err := store.NewFileStore(cfg.StoreDir)
		return gw, noop, err
	}
}
