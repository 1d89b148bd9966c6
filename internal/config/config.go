package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	DBConnectRetries int      `mapstructure:"DB_CONNECT_RETRIES"`
	JWTSecret        string   `mapstructure:"JWT_SECRET"`
	JWTExpire        string   `mapstructure:"JWT_EXPIRE"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	FrontendURL      string   `mapstructure:"FRONTEND_URL"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`

	SMTPHost  string `mapstructure:"SMTP_HOST"`
	SMTPPort  int    `mapstructure:"SMTP_PORT"`
	SMTPUser  string `mapstructure:"SMTP_USER"`
	SMTPPass  string `mapstructure:"SMTP_PASS"`
	EmailFrom string `mapstructure:"EMAIL_FROM"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	S3Bucket       string `mapstructure:"S3_BUCKET"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MaxCSVFileSize int64  `mapstructure:"MAX_CSV_FILE_SIZE"`

	RedisURL      string   `mapstructure:"REDIS_URL"`
	EventsBackend string   `mapstructure:"EVENTS_BACKEND"`
	KafkaBrokers  []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string   `mapstructure:"KAFKA_TOPIC"`
	SQSQueueURL   string   `mapstructure:"SQS_QUEUE_URL"`
	WebhookURL    string   `mapstructure:"WEBHOOK_URL"`
	WebhookSecret string   `mapstructure:"WEBHOOK_SECRET"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_CONNECT_RETRIES",
	"JWT_SECRET", "JWT_EXPIRE", "CORS_ORIGINS", "FRONTEND_URL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "EMAIL_FROM",
	"UPLOAD_DIR", "STORAGE_BACKEND", "S3_BUCKET",
	"MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_USE_SSL",
	"MAX_CSV_FILE_SIZE", "REDIS_URL", "EVENTS_BACKEND", "KAFKA_BROKERS", "KAFKA_TOPIC", "SQS_QUEUE_URL",
	"WEBHOOK_URL", "WEBHOOK_SECRET",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 5)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("JWT_EXPIRE", "7d")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_FROM", "UmutiSafe <noreply@umutisafe.gov.rw>")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("MINIO_BUCKET", "umutisafe")
	v.SetDefault("MAX_CSV_FILE_SIZE", 2*1024*1024)
	v.SetDefault("EVENTS_BACKEND", "none")
	v.SetDefault("KAFKA_TOPIC", "umutisafe.events")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitList normalizes comma separated env values, which viper leaves as a
// single element slice.
func splitList(current []string, raw string) []string {
	if len(current) > 1 {
		return current
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL parses JWT_EXPIRE. Besides Go durations it accepts a day suffix
// ("7d") as used by the web client configuration.
func (c *Config) TokenTTL() (time.Duration, error) {
	return ParseTTL(c.JWTExpire)
}

func ParseTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 7 * 24 * time.Hour, nil
	}
	if strings.HasSuffix(raw, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(raw, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid JWT_EXPIRE %q", raw)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid JWT_EXPIRE %q", raw)
	}
	return d, nil
}

// Validate checks that the configuration is safe to run. Production requires
// a real JWT secret, and every non-local backend needs its connection settings.
func (c *Config) Validate() error {
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}

	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when STORAGE_BACKEND is \"local\"")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when STORAGE_BACKEND is \"minio\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"local\", \"s3\", or \"minio\", got %q", c.StorageBackend)
	}

	switch c.EventsBackend {
	case "", "none":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND is \"kafka\"")
		}
	case "sqs":
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required when EVENTS_BACKEND is \"sqs\"")
		}
	case "webhook":
		if c.WebhookURL == "" || c.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_URL and WEBHOOK_SECRET are required when EVENTS_BACKEND is \"webhook\"")
		}
	default:
		return fmt.Errorf("EVENTS_BACKEND must be \"none\", \"kafka\", \"sqs\", or \"webhook\", got %q", c.EventsBackend)
	}

	if c.MaxCSVFileSize <= 0 {
		return fmt.Errorf("MAX_CSV_FILE_SIZE must be positive")
	}
	return nil
}
