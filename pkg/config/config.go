// Package config loads service configuration from the environment.
//
// Values are read from process environment variables, optionally seeded
// from dotenv files. Variables already set in the environment win over
// the files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/logging"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Catalog backends.
const (
	CatalogREST     = "rest"
	CatalogPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty  bool   `env:"LOG_PRETTY" envDefault:"false"`

	Cache   CacheConfig
	Catalog CatalogConfig
}

// CacheConfig selects and sizes the snapshot store.
type CacheConfig struct {
	Backend          string        `env:"CACHE_BACKEND" envDefault:"memory"`
	KeyName          string        `env:"CACHE_KEY" envDefault:"bookCache"`
	KeyVersion       int           `env:"CACHE_KEY_VERSION" envDefault:"1"`
	TTL              time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	MaxBooks         int           `env:"CACHE_MAX_BOOKS" envDefault:"20"`
	MaxViewportBooks int           `env:"CACHE_MAX_VIEWPORT_BOOKS" envDefault:"10"`
	QuotaBytes       int           `env:"CACHE_QUOTA_BYTES" envDefault:"5242880"`
	RedisURL         string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix      string        `env:"REDIS_PREFIX" envDefault:"granth:"`
	SQLitePath       string        `env:"SQLITE_PATH" envDefault:"data/bookcache.db"`
}

// CatalogConfig selects the catalog source.
type CatalogConfig struct {
	Backend      string        `env:"CATALOG_BACKEND" envDefault:"rest"`
	URL          string        `env:"CATALOG_URL"`
	APIKey       string        `env:"CATALOG_API_KEY"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	Timeout      time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	RelatedLimit int           `env:"RELATED_LIMIT" envDefault:"4"`
}

// Load reads dotenv files (missing files are skipped) and then the
// environment, and validates the result.
func Load(files ...string) (Config, error) {
	var cfg Config
	if err := parse(&cfg, files); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadCache is Load restricted to the cache settings, for tools that
// never talk to the catalog.
func LoadCache(files ...string) (CacheConfig, error) {
	var cfg CacheConfig
	if err := parse(&cfg, files); err != nil {
		return CacheConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return CacheConfig{}, err
	}
	return cfg, nil
}

func parse(target any, files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks backend names and the settings each backend needs.
func (c Config) Validate() error {
	return errors.Join(c.Cache.Validate(), c.Catalog.Validate())
}

// Validate checks the cache backend settings.
func (c CacheConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis cache backend")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite cache backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Backend)
	}
	return nil
}

// Validate checks the catalog backend settings.
func (c CatalogConfig) Validate() error {
	switch c.Backend {
	case CatalogREST:
		if c.URL == "" {
			return errors.New("CATALOG_URL is required for the rest catalog backend")
		}
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres catalog backend")
		}
	default:
		return fmt.Errorf("unknown CATALOG_BACKEND %q", c.Backend)
	}
	return nil
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.LogPretty
	return cfg
}

// Manager returns the cache manager configuration.
func (c CacheConfig) Manager() bookcache.Config {
	return bookcache.Config{
		Key:              bookcache.Key{Name: c.KeyName, Version: c.KeyVersion},
		TTL:              c.TTL,
		MaxBooks:         c.MaxBooks,
		MaxViewportBooks: c.MaxViewportBooks,
	}
}
