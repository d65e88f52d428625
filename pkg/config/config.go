package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP    HTTPConfig
	Catalog CatalogConfig
	Logging LoggingConfig
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	MaxConcurrent   int
	CORSOrigin      string
}

// Addr returns the listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Catalog backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
)

// CatalogConfig selects and configures the city catalog store.
type CatalogConfig struct {
	Backend     string
	DatabaseURL string
	Seed        string // .hcl file/dir or snapshot to import at startup
	Graph       GraphConfig
}

// GraphConfig describes connectivity to the Neo4j graph database.
type GraphConfig struct {
	URI            string
	Database       string
	Username       string
	Password       string
	MaxConnections int
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 8080
	defaultReadTimeout      = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultRequestTimeout   = 5 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultLoggingLevel     = "info"
	defaultLoggingFormat    = "text"
	defaultGraphMaxSessions = 10
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Host:       valueOrDefault("SERVER_HOST", defaultHost),
			CORSOrigin: os.Getenv("SERVER_CORS_ORIGIN"),
		},
		Catalog: CatalogConfig{
			Backend:     strings.ToLower(valueOrDefault("CATALOG_BACKEND", BackendMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Seed:        os.Getenv("CATALOG_SEED"),
			Graph: GraphConfig{
				URI:            os.Getenv("GRAPH_URI"),
				Database:       os.Getenv("GRAPH_DATABASE"),
				Username:       os.Getenv("GRAPH_USERNAME"),
				Password:       os.Getenv("GRAPH_PASSWORD"),
				MaxConnections: parseIntWithDefault("GRAPH_MAX_CONNECTIONS", defaultGraphMaxSessions),
			},
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
	}

	port, err := parsePort("SERVER_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTP.Port = port

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", defaultReadTimeout, &cfg.HTTP.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", defaultWriteTimeout, &cfg.HTTP.WriteTimeout},
		{"SERVER_REQUEST_TIMEOUT", defaultRequestTimeout, &cfg.HTTP.RequestTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout, &cfg.HTTP.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.fallback)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	cfg.HTTP.MaxConcurrent = parseIntWithDefault("SERVER_MAX_CONCURRENT", runtime.NumCPU()*2)
	if cfg.HTTP.MaxConcurrent <= 0 {
		return Config{}, fmt.Errorf("SERVER_MAX_CONCURRENT must be positive, got %d", cfg.HTTP.MaxConcurrent)
	}

	if err := cfg.Catalog.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c CatalogConfig) validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for catalog backend %q", c.Backend)
		}
	case BackendNeo4j:
		if c.Graph.URI == "" {
			return fmt.Errorf("GRAPH_URI is required for catalog backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.Backend)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if val, err := strconv.Atoi(v); err == nil {
			return val
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
