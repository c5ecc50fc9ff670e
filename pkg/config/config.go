package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds ingestion service configuration
type Config struct {
	Server     ServerConfig     `envconfig:"SERVER"`
	Database   DatabaseConfig   `envconfig:"DB"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Storage    StorageConfig    `envconfig:"STORAGE"`
	Assembly   AssemblyAIConfig `envconfig:"ASSEMBLYAI"`
	Ingest     IngestConfig     `envconfig:"INGEST"`
	Transcribe TranscribeConfig `envconfig:"TRANSCRIBE"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8000"`
	Host            string   `envconfig:"HOST" default:"127.0.0.1"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"HOST" default:"localhost"`
	Port        string `envconfig:"PORT" default:"5432"`
	User        string `envconfig:"USER" default:"postgres"`
	Password    string `envconfig:"PASSWORD" default:"postgres"`
	Name        string `envconfig:"NAME" default:"meeting_ai"`
	SSLMode     string `envconfig:"SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"false"`
	Migrations  string `envconfig:"MIGRATIONS_DIR" default:"migrations"`
}

// RedisConfig holds Redis configuration. An empty host keeps ingest
// stats in process memory.
type RedisConfig struct {
	Host     string        `envconfig:"HOST"`
	Port     string        `envconfig:"PORT" default:"6379"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	StatsTTL time.Duration `envconfig:"STATS_TTL" default:"24h"`
}

// StorageConfig holds object storage configuration for archived session audio
type StorageConfig struct {
	Enabled         bool   `envconfig:"ENABLED" default:"false"`
	Endpoint        string `envconfig:"ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"BUCKET" default:"meeting-audio"`
	UseSSL          bool   `envconfig:"USE_SSL" default:"false"`
	PublicURL       string `envconfig:"PUBLIC_URL"`
}

// AssemblyAIConfig holds AssemblyAI configuration
type AssemblyAIConfig struct {
	APIKey string `envconfig:"API_KEY"`
}

// IngestConfig holds websocket ingestion settings
type IngestConfig struct {
	InitTimeout    time.Duration `envconfig:"INIT_TIMEOUT" default:"10s"`
	ReadLimit      int64         `envconfig:"READ_LIMIT" default:"4194304"`
	AckEveryFrames int           `envconfig:"ACK_EVERY_FRAMES" default:"20"`
	FinalizeAfter  time.Duration `envconfig:"FINALIZE_TIMEOUT" default:"5m"`
}

// TranscribeConfig controls utterance derivation
type TranscribeConfig struct {
	Enabled       bool   `envconfig:"ENABLED" default:"false"`
	InterimFrames int    `envconfig:"INTERIM_FRAMES" default:"0"`
	LanguageCode  string `envconfig:"LANGUAGE_CODE"`
	SpeakerLabels bool   `envconfig:"SPEAKER_LABELS" default:"true"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	loadDotEnv()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Transcribe.Enabled && c.Assembly.APIKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is required when TRANSCRIBE_ENABLED is set")
	}
	if c.Transcribe.InterimFrames < 0 {
		return fmt.Errorf("TRANSCRIBE_INTERIM_FRAMES must not be negative")
	}
	if c.Ingest.InitTimeout <= 0 {
		return fmt.Errorf("INGEST_INIT_TIMEOUT must be positive")
	}
	if c.Ingest.AckEveryFrames <= 0 {
		return fmt.Errorf("INGEST_ACK_EVERY_FRAMES must be positive")
	}
	if c.Storage.Enabled && c.Storage.BucketName == "" {
		return fmt.Errorf("STORAGE_BUCKET is required when STORAGE_ENABLED is set")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// loadDotEnv loads .env if present (ignore error if file doesn't exist)
func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}
}
