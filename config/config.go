package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tonotes/utils"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type StoreConfig struct {
	Driver       string
	Mongo        DatabaseConfig
	SQLitePath   string
	RedisURL     string
	ListCacheTTL time.Duration
}

type SearchConfig struct {
	IndexPath          string
	EmbeddingsProvider string // "", "ollama" or "openai"
	EmbeddingsURL      string
	EmbeddingsModel    string
	EmbeddingsAPIKey   string
	KeywordWeight      float64
	ChunkSize          int
	ChunkOverlap       int
	RateLimit          float64 // searches per second per client, 0 disables
	RateBurst          int
}

type TelemetryConfig struct {
	Exporter     string // "", "stdout" or "otlp"
	OTLPEndpoint string
	ServiceName  string
}

type Config struct {
	Port            string
	GinMode         string
	LogFormat       string
	LogLevel        slog.Level
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	ShareSigningKey string
	ShareBaseURL    string
	AuthJWTSecret   string

	Store     StoreConfig
	Search    SearchConfig
	Telemetry TelemetryConfig
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Port:            utils.GetEnvAsString("PORT", "8080"),
		GinMode:         utils.GetEnvAsString("GIN_MODE", "release"),
		LogFormat:       utils.GetEnvAsString("LOG_FORMAT", "json"),
		LogLevel:        parseLevel(utils.GetEnvAsString("LOG_LEVEL", "info")),
		MaxBodyBytes:    utils.GetEnvAsInt64("MAX_BODY_BYTES", 1<<20),
		ShutdownTimeout: utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		AllowedOrigins:  splitList(utils.GetEnvAsString("CORS_ALLOWED_ORIGINS", "")),

		ShareSigningKey: os.Getenv("SHARE_SIGNING_KEY"),
		ShareBaseURL:    strings.TrimSuffix(os.Getenv("SHARE_BASE_URL"), "/"),
		AuthJWTSecret:   os.Getenv("AUTH_JWT_SECRET"),

		Store: StoreConfig{
			Driver:       strings.ToLower(utils.GetEnvAsString("STORE_DRIVER", DriverSQLite)),
			Mongo:        LoadDatabaseConfig(),
			SQLitePath:   utils.GetEnvAsString("SQLITE_PATH", "notes.db"),
			RedisURL:     os.Getenv("REDIS_URL"),
			ListCacheTTL: utils.GetEnvAsDuration("LIST_CACHE_TTL", 30*time.Second),
		},
		Search: SearchConfig{
			IndexPath:          os.Getenv("SEARCH_INDEX_PATH"),
			EmbeddingsProvider: strings.ToLower(os.Getenv("EMBEDDINGS_PROVIDER")),
			EmbeddingsURL:      os.Getenv("EMBEDDINGS_URL"),
			EmbeddingsModel:    os.Getenv("EMBEDDINGS_MODEL"),
			EmbeddingsAPIKey:   os.Getenv("EMBEDDINGS_API_KEY"),
			KeywordWeight:      utils.GetEnvAsFloat("SEARCH_KEYWORD_WEIGHT", 0.4),
			ChunkSize:          utils.GetEnvAsInt("SEARCH_CHUNK_SIZE", 200),
			ChunkOverlap:       utils.GetEnvAsInt("SEARCH_CHUNK_OVERLAP", 20),
			RateLimit:          utils.GetEnvAsFloat("SEARCH_RATE_LIMIT", 5),
			RateBurst:          utils.GetEnvAsInt("SEARCH_RATE_BURST", 10),
		},
		Telemetry: TelemetryConfig{
			Exporter:     strings.ToLower(os.Getenv("TRACE_EXPORTER")),
			OTLPEndpoint: utils.GetEnvAsString("OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  utils.GetEnvAsString("OTEL_SERVICE_NAME", "tonotes"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("MONGO_URI is required for the mongo store driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Search.EmbeddingsProvider {
	case "", "ollama", "openai":
	default:
		return fmt.Errorf("unknown EMBEDDINGS_PROVIDER %q", c.Search.EmbeddingsProvider)
	}
	if c.Search.KeywordWeight < 0 || c.Search.KeywordWeight > 1 {
		return fmt.Errorf("SEARCH_KEYWORD_WEIGHT must be within [0,1], got %v", c.Search.KeywordWeight)
	}

	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("unknown TRACE_EXPORTER %q", c.Telemetry.Exporter)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
