// Package config читает настройки сервера из окружения (.env.local, .env, переменные процесса).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string

	JWTSecret string
	JWTTTL    time.Duration

	BlobBackend        string
	BlobDir            string
	BlobBaseURL        string
	BlobSigningKey     string
	SignedURLTTL       time.Duration
	GCSBucket          string
	GCSCredentialsFile string

	BroadcastBackend   string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	BroadcastAttempts  int
	BroadcastBaseDelay time.Duration
	BroadcastMaxDelay  time.Duration
	BroadcastBudget    time.Duration

	PageDefaultLimit   int
	PageMaxLimit       int
	MaxUploadBytes     int64
	RateLimitPerSecond uint
	CORSOrigins        []string
}

// LoadEnv подгружает .env.local, затем .env; отсутствие файлов не ошибка
func LoadEnv() {
	// Load не перезаписывает уже заданные переменные, поэтому .env.local главнее .env
	local := godotenv.Load(".env.local")
	if err := godotenv.Load(); err != nil && local != nil {
		log.Println(".env not found, using environment variables")
	}
}

// FromEnv собирает Config из окружения. Обязательны DATABASE_URL и JWT_SECRET.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port: p.str("PORT", "8080"),

		DatabaseDriver: p.str("DATABASE_DRIVER", "postgres"),
		DatabaseURL:    p.required("DATABASE_URL"),
		RedisURL:       p.str("REDIS_URL", ""),

		JWTSecret: p.required("JWT_SECRET"),
		JWTTTL:    p.duration("JWT_TTL", 24*time.Hour),

		BlobBackend:        p.str("BLOB_BACKEND", "local"),
		BlobDir:            p.str("BLOB_DIR", "./data/blobs"),
		BlobBaseURL:        p.str("BLOB_BASE_URL", "http://localhost:8080/blobs"),
		BlobSigningKey:     p.str("BLOB_SIGNING_KEY", ""),
		SignedURLTTL:       p.duration("SIGNED_URL_TTL", 15*time.Minute),
		GCSBucket:          p.str("GCS_BUCKET", ""),
		GCSCredentialsFile: p.str("GCS_CREDENTIALS_FILE", ""),

		BroadcastBackend:   p.str("BROADCAST_BACKEND", "local"),
		KafkaBrokers:       p.list("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:         p.str("KAFKA_TOPIC", "chat-events"),
		KafkaGroupID:       p.str("KAFKA_GROUP_ID", ""),
		BroadcastAttempts:  p.int("BROADCAST_ATTEMPTS", 3),
		BroadcastBaseDelay: p.duration("BROADCAST_BASE_DELAY", time.Second),
		BroadcastMaxDelay:  p.duration("BROADCAST_MAX_DELAY", 10*time.Second),
		BroadcastBudget:    p.duration("BROADCAST_BUDGET", 30*time.Second),

		PageDefaultLimit:   p.int("PAGE_DEFAULT_LIMIT", 50),
		PageMaxLimit:       p.int("PAGE_MAX_LIMIT", 200),
		MaxUploadBytes:     int64(p.int("MAX_UPLOAD_BYTES", 25<<20)),
		RateLimitPerSecond: uint(p.int("RATE_LIMIT_PER_SECOND", 100)),
		CORSOrigins:        p.list("CORS_ORIGINS", []string{"*"}),
	}

	if cfg.BlobSigningKey == "" {
		cfg.BlobSigningKey = cfg.JWTSecret
	}

	if err := cfg.validate(); err != nil {
		p.errs = append(p.errs, err)
	}
	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER: unsupported driver %q", c.DatabaseDriver))
	}

	switch c.BlobBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("GCS_BUCKET is required for the gcs blob backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND: unsupported backend %q", c.BlobBackend))
	}

	switch c.BroadcastBackend {
	case "local", "kafka":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis broadcast backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("BROADCAST_BACKEND: unsupported backend %q", c.BroadcastBackend))
	}

	if c.BroadcastAttempts < 1 {
		errs = append(errs, errors.New("BROADCAST_ATTEMPTS must be at least 1"))
	}
	if c.PageMaxLimit < 1 || c.PageDefaultLimit < 1 || c.PageDefaultLimit > c.PageMaxLimit {
		errs = append(errs, errors.New("PAGE_DEFAULT_LIMIT must be between 1 and PAGE_MAX_LIMIT"))
	}

	return errors.Join(errs...)
}

type parser struct {
	errs []error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		p.errs = append(p.errs, fmt.Errorf("%s is required", key))
	}
	return v
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
