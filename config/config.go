package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var (
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// ScoringConfig holds the connection settings for the external lead-scoring model.
type ScoringConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxBatch       int    `json:"max_batch"`
	MaxAttempts    int    `json:"max_attempts"`
}

// IngestConfig bounds the CSV ingestion pipeline.
type IngestConfig struct {
	BatchSize     int `json:"batch_size"`
	Workers       int `json:"workers"`        // per-session scoring workers
	GlobalWorkers int `json:"global_workers"` // process-wide cap across sessions
	SessionTTLMin int `json:"session_ttl_minutes"`
}

type Config struct {
	Environment      string        `json:"environment"`
	ServerPort       string        `json:"server_port"`
	EncryptionKey    string        `json:"-"`
	DBHost           string        `json:"db_host"`
	DBPort           string        `json:"db_port"`
	DBUser           string        `json:"db_user"`
	DBPassword       string        `json:"-"`
	DBName           string        `json:"db_name"`
	DBSSLMode        string        `json:"db_ssl_mode"`
	DBMaxIdleConns   int           `json:"db_max_idle_conns"`
	DBMaxOpenConns   int           `json:"db_max_open_conns"`
	Scoring          ScoringConfig `json:"scoring"`
	Ingest           IngestConfig  `json:"ingest"`
	Redis            RedisConfig   `json:"redis"`
	RateLimitUploads int           `json:"rate_limit_uploads"`
	SentryDSN        string        `json:"-"`
	SMTPHost         string        `json:"smtp_host"`
	SMTPPort         int           `json:"smtp_port"`
	SMTPUsername     string        `json:"smtp_username"`
	SMTPPassword     string        `json:"-"`
	FromEmail        string        `json:"from_email"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadnest"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
		Scoring: ScoringConfig{
			BaseURL:        getEnv("SCORING_BASE_URL", "http://localhost:8000"),
			TimeoutSeconds: getEnvAsInt("SCORING_TIMEOUT_SECONDS", 10),
			MaxBatch:       getEnvAsInt("SCORING_MAX_BATCH", 100),
			MaxAttempts:    getEnvAsInt("SCORING_MAX_ATTEMPTS", 4),
		},
		Ingest: IngestConfig{
			BatchSize:     getEnvAsInt("INGEST_BATCH_SIZE", 200),
			Workers:       getEnvAsInt("INGEST_WORKERS", 4),
			GlobalWorkers: getEnvAsInt("INGEST_GLOBAL_WORKERS", 8),
			SessionTTLMin: getEnvAsInt("SESSION_TTL_MINUTES", 10),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimitUploads: getEnvAsInt("RATE_LIMIT_UPLOADS", 5),
		SentryDSN:        getEnv("SENTRY_DSN", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		FromEmail:        getEnv("FROM_EMAIL", "noreply@leadnest.local"),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if AppConfig.Scoring.BaseURL == "" {
		return fmt.Errorf("SCORING_BASE_URL is required")
	}

	logConfig()
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		log.Printf("⚠️ Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	log.Println("🔧 Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Scoring endpoint: %s (batch %d, %d attempts)",
		AppConfig.Scoring.BaseURL,
		AppConfig.Scoring.MaxBatch,
		AppConfig.Scoring.MaxAttempts)
	log.Printf("Ingest: batch %d, %d workers/session, %d global",
		AppConfig.Ingest.BatchSize,
		AppConfig.Ingest.Workers,
		AppConfig.Ingest.GlobalWorkers)
}
