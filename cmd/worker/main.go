package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GitRadiation/template-filler/internal/config"
	amqpdelivery "github.com/GitRadiation/template-filler/internal/delivery/amqp"
	"github.com/GitRadiation/template-filler/internal/domain"
	"github.com/GitRadiation/template-filler/internal/pool"
	"github.com/GitRadiation/template-filler/internal/registry"
	"github.com/GitRadiation/template-filler/internal/renderer"
	"github.com/GitRadiation/template-filler/internal/repository/postgres"
	redisrepo "github.com/GitRadiation/template-filler/internal/repository/redis"
	"github.com/GitRadiation/template-filler/internal/storage"
	"github.com/GitRadiation/template-filler/internal/task"
	"github.com/GitRadiation/template-filler/internal/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting document render worker")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Connect to MinIO
	store, err := storage.NewMinioStore(ctx, cfg.Minio, logger)
	if err != nil {
		logger.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	logger.Info("Connected to MinIO", zap.String("bucket", cfg.Minio.Bucket))

	// Load the template registry
	reg, err := registry.New(cfg.Render.TemplatesDir)
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}

	// Initialize repositories
	jobRepo := postgres.NewJobRepository(dbPool)
	processLock := redisrepo.NewProcessLock(redisClient)

	// Initialize renderer
	conv := renderer.NewWkhtmltopdfConverter()
	rend := renderer.New(conv, cfg.Render.StrictFields, logger)

	// Retry policy for transient render failures
	policy := task.RetryPolicy{
		MaxAttempts: cfg.Render.MaxAttempts,
		Delay:       cfg.Render.RetryDelay,
		Classify:    task.DefaultClassify,
	}

	// Initialize use case
	renderUC := usecase.NewRenderJobUsecase(
		jobRepo,
		processLock,
		reg,
		rend,
		store,
		policy,
		cfg.Render.SoftTimeLimit,
		cfg.Render.HardTimeLimit,
		logger,
	)

	// Create buffered task channel
	tasksChan := make(chan *domain.TaskMessage, cfg.Worker.PoolSize*2)

	// Initialize AMQP consumer
	consumer, err := amqpdelivery.NewConsumer(cfg.RabbitMQ.URL, tasksChan, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AMQP consumer", zap.Error(err))
	}
	defer consumer.Close()
	logger.Info("Connected to RabbitMQ")

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, tasksChan, renderUC, logger)
	workerPool.Start(ctx)

	// Start AMQP consumer in a goroutine
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("AMQP consumer error", zap.Error(err))
			cancel()
		}
	}()

	// Start Prometheus metrics server
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()

	// Wait for workers to finish in-flight renders
	workerPool.Stop()

	logger.Info("Worker stopped")
}
