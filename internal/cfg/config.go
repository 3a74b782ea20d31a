package cfg

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers string
	KafkaTopic   string
	KafkaGroupID string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	StoragePath string

	WorkerCount  int
	MaxAttempts  int
	PollInterval time.Duration
	JobTimeout   time.Duration
	RetryBackoff time.Duration
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not found, using environment variables")
	}

	cfg := Config{
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:     os.Getenv("KAFKA_TOPIC"),
		KafkaGroupID:   os.Getenv("KAFKA_GROUP_ID"),
		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    os.Getenv("MINIO_BUCKET"),
		StoragePath:    os.Getenv("STORAGE_PATH"),
	}

	if os.Getenv("MINIO_USE_SSL") == "true" || os.Getenv("MINIO_USE_SSL") == "1" {
		cfg.MinioUseSSL = true
	}
	if cfg.KafkaGroupID == "" {
		cfg.KafkaGroupID = "docpress-workers"
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "./data"
	}

	cfg.WorkerCount = intEnv("WORKER_COUNT", 4)
	cfg.MaxAttempts = intEnv("MAX_ATTEMPTS", 3)
	cfg.PollInterval = durationEnv("POLL_INTERVAL", 5*time.Second)
	cfg.JobTimeout = durationEnv("JOB_TIMEOUT", 2*time.Minute)
	cfg.RetryBackoff = durationEnv("RETRY_BACKOFF", 30*time.Second)

	return cfg
}

func intEnv(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if v, err := time.ParseDuration(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}
