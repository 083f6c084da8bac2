package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/redisclient"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/store/memory"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// backend is a Repository that can also be pinged and closed
type backend interface {
	store.Repository
	Ping(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (backend, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.New(), nil
	}

	db, err := store.NewStore(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("Database schema applied")
	}
	return db, nil
}

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service", zap.String("env", cfg.Server.Env))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint, cfg.Server.Env)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx := context.Background()

	repo, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer repo.Close()
	logger.Info("Store ready", zap.String("driver", cfg.Database.Driver))

	readiness := []api.ReadinessCheck{{Name: "database", Check: repo.Ping}}

	// Redis backs the stock cache, idempotency keys and transition locks.
	// Without it the services fall back to their no-op implementations.
	var (
		cache  service.StockCache
		idem   service.IdempotencyStore
		locker service.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		cache, idem, locker = redisClient, redisClient, redisClient
		readiness = append(readiness, api.ReadinessCheck{Name: "redis", Check: redisClient.Ping})
	}

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))
	}

	inventoryService := service.NewInventoryService(repo, cache, idem, events, service.InventoryOptions{
		LowStockAlerts: cfg.Business.LowStockAlerts,
		IdempotencyTTL: time.Duration(cfg.Business.IdempotencyTTLSeconds) * time.Second,
	})
	orderService := service.NewPurchaseOrderService(repo, inventoryService, locker, events,
		time.Duration(cfg.Business.TransitionLockSeconds)*time.Second)
	catalogService := service.NewCatalogService(repo, cache)
	authService := service.NewAuthService(repo, service.NewLogMailer(), cfg.Auth.JWTSecret,
		cfg.Auth.TokenTTL, cfg.Auth.ResetTokenTTL)
	reportService := service.NewReportService(repo)

	if cfg.Auth.ManagerEmail != "" {
		if err := authService.SeedManager(ctx, cfg.Auth.ManagerEmail, cfg.Auth.ManagerPassword, cfg.Auth.ManagerName); err != nil {
			logger.Fatal("Failed to seed manager account", zap.Error(err))
		}
	}

	if err := inventoryService.SyncStockToCache(ctx); err != nil {
		logger.Warn("Failed to sync stock to cache", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var stockWorker *worker.StockWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		stockWorker = worker.NewStockWorker(consumer, inventoryService, repo)
		go func() {
			if err := stockWorker.Start(workerCtx); err != nil {
				logger.Error("Stock worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(api.Services{
		Auth:           authService,
		Catalog:        catalogService,
		Inventory:      inventoryService,
		PurchaseOrders: orderService,
		Reports:        reportService,
	}, api.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		UploadsDir:  cfg.Server.UploadsDir,
		Readiness:   readiness,
		Tracing:     cfg.Observ.TracingEnabled,
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if stockWorker != nil {
		if err := stockWorker.Stop(); err != nil {
			logger.Error("Error stopping stock worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
