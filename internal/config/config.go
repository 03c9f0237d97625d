package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Telegram TelegramConfig
	Review   ReviewConfig
	Feed     FeedConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type DatabaseConfig struct {
	Type       string // "sqlite" or "postgres"
	Path       string // SQLite file
	Connection string // Postgres DSN
}

type TelegramConfig struct {
	Token string
}

// ReviewConfig holds the tunable timings of the review controller and the mutation store
type ReviewConfig struct {
	// Time without a resolving feed event before loading turns into an error
	LoadingTimeout time.Duration
	// How long a confirmed optimistic overlay stays visible
	SettleDelay time.Duration
	// Upper bound for an overlay whose remote call never returns
	PendingTTL time.Duration
	// Delay before a wrongly answered question is due again
	RequeueDelay time.Duration
}

type FeedConfig struct {
	Transport    string // "poll" or "nats"
	PollInterval time.Duration
	NatsURL      string
}

// DefaultReviewConfig returns the default controller timings
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		LoadingTimeout: 5 * time.Second,
		SettleDelay:    1500 * time.Millisecond,
		PendingTTL:     2 * time.Minute,
		RequeueDelay:   0,
	}
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	defaults := DefaultReviewConfig()

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "logs/scry.log"),
		},
		Database: DatabaseConfig{
			Type:       getEnv("DB_TYPE", "sqlite"),
			Path:       getEnv("DB_PATH", "data/scry.db"),
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Telegram: TelegramConfig{
			Token: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Review: ReviewConfig{
			LoadingTimeout: getEnvAsDuration("LOADING_TIMEOUT", defaults.LoadingTimeout),
			SettleDelay:    getEnvAsDuration("SETTLE_DELAY", defaults.SettleDelay),
			PendingTTL:     getEnvAsDuration("PENDING_TTL", defaults.PendingTTL),
			RequeueDelay:   getEnvAsDuration("REQUEUE_DELAY", defaults.RequeueDelay),
		},
		Feed: FeedConfig{
			Transport:    getEnv("FEED_TRANSPORT", "poll"),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 2*time.Second),
			NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		},
	}
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("750ms", "5s") or a plain number of milliseconds
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if d, err := time.ParseDuration(strValue); err == nil && d >= 0 {
		return d
	}
	if ms := getEnvAsInt(key, -1); ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
