package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mkrylov/docpress/internal/cfg"
	"github.com/mkrylov/docpress/internal/document"
	"github.com/mkrylov/docpress/internal/policy"
	"github.com/mkrylov/docpress/internal/queue"
	"github.com/mkrylov/docpress/internal/storage"
	"github.com/mkrylov/docpress/internal/worker"
)

func main() {
	conf := cfg.LoadConfig()
	logger := log.New(os.Stdout, "[docpress] ", log.LstdFlags|log.Lmicroseconds)

	db := mustConnectDB(conf, logger)
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("failed to access sql DB: %v", err)
	}
	defer sqlDB.Close()

	if err := document.Migrate(db); err != nil {
		logger.Fatalf("migrate documents: %v", err)
	}
	if err := queue.Migrate(db); err != nil {
		logger.Fatalf("migrate queue: %v", err)
	}

	var redisClient *redis.Client
	if conf.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatalf("failed to connect redis: %v", err)
		}
	}

	store := mustBuildStorage(conf, logger)

	var producer queue.Producer
	brokers := splitCSV(conf.KafkaBrokers)
	if len(brokers) > 0 && conf.KafkaTopic != "" {
		producer = queue.NewKafkaProducer(brokers, conf.KafkaTopic)
		defer producer.Close()
	}

	jobs := queue.New(db, queue.Options{
		MaxAttempts:  conf.MaxAttempts,
		RetryBackoff: conf.RetryBackoff,
		Producer:     producer,
	})
	docs := document.NewRepository(db)
	types := document.NewTypeRepository(db)
	registry := policy.NewRegistry(types, redisClient)

	pool := worker.NewPool(db, docs, registry, jobs, store, logger, worker.Options{
		Workers:      conf.WorkerCount,
		PollInterval: conf.PollInterval,
		JobTimeout:   conf.JobTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pool.Start(ctx); err != nil {
		logger.Fatalf("start worker pool: %v", err)
	}
	logger.Printf("worker pool started with %d worker(s)", conf.WorkerCount)

	if len(brokers) > 0 && conf.KafkaTopic != "" {
		consumer := worker.NewKafkaWaker(brokers, conf.KafkaTopic, conf.KafkaGroupID, pool, logger)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Printf("wake consumer stopped: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Println("shutdown signal received")
	pool.Wait()
	logger.Println("worker pool drained")
}

func mustConnectDB(conf cfg.Config, logger *log.Logger) *gorm.DB {
	if conf.DatabaseDSN == "" {
		logger.Fatal("DATABASE_DSN must be set")
	}
	db, err := gorm.Open(postgres.Open(conf.DatabaseDSN), &gorm.Config{})
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}
	return db
}

func mustBuildStorage(conf cfg.Config, logger *log.Logger) storage.Storage {
	if conf.MinioEndpoint != "" {
		store, err := storage.NewMinioStorage(
			conf.MinioEndpoint,
			conf.MinioAccessKey,
			conf.MinioSecretKey,
			conf.MinioUseSSL,
			conf.MinioBucket,
		)
		if err != nil {
			logger.Fatalf("failed to init minio: %v", err)
		}
		return store
	}

	store, err := storage.NewLocalStorage(conf.StoragePath)
	if err != nil {
		logger.Fatalf("failed to init local storage: %v", err)
	}
	return store
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
