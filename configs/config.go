package config

import (
	"os"
	"strconv"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	TriggerModeCron  = "cron"
	TriggerModeQueue = "queue"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	URLTTL     time.Duration
}

func (r R2) Enabled() bool {
	return r.AccountID != "" && r.BucketName != ""
}

type Publisher struct {
	GraphAPIBaseURL      string
	Concurrency          int
	RequestTimeout       time.Duration
	ItemTimeout          time.Duration
	ContainerPollInitial time.Duration
	ContainerPollMax     time.Duration
	ContainerWaitTimeout time.Duration
	LeaseTTL             time.Duration
}

type Trigger struct {
	Mode     string
	Schedule string
	Timezone string
}

type Config struct {
	Env           string
	LogLevel      string
	HTTPAddr      string
	StoreDriver   string
	PostgresURI   string
	MongoURI      string
	MongoDatabase string
	RedisURI      string
	SecretKey     string
	Trigger       Trigger
	Publisher     Publisher
	R2            R2
}

func LoadConfig() *Config {
	return &Config{
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":3000"),
		StoreDriver:   getEnv("STORE_DRIVER", StoreDriverPostgres),
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "publisher"),
		RedisURI:      getEnv("REDIS_URI", "localhost:6379"),
		SecretKey:     getEnv("SECRET_KEY", ""),
		Trigger: Trigger{
			Mode:     getEnv("TRIGGER_MODE", TriggerModeCron),
			Schedule: getEnv("TRIGGER_SCHEDULE", "@every 1m"),
			Timezone: getEnv("TIMEZONE", "UTC"),
		},
		Publisher: Publisher{
			GraphAPIBaseURL:      getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v21.0"),
			Concurrency:          getEnvInt("PUBLISH_CONCURRENCY", 10),
			RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
			ItemTimeout:          getEnvDuration("ITEM_TIMEOUT", 5*time.Minute),
			ContainerPollInitial: getEnvDuration("CONTAINER_POLL_INITIAL", 2*time.Second),
			ContainerPollMax:     getEnvDuration("CONTAINER_POLL_MAX", 30*time.Second),
			ContainerWaitTimeout: getEnvDuration("CONTAINER_WAIT_TIMEOUT", 5*time.Minute),
			LeaseTTL:             getEnvDuration("LEASE_TTL", 10*time.Minute),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			URLTTL:     getEnvDuration("MEDIA_URL_TTL", time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
