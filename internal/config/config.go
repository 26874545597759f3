package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nDmitry/feedsky/internal/entity"
	"gopkg.in/yaml.v3"
)

const (
	DefaultService       = "https://bsky.social"
	DefaultRedisAddr     = "redis:6379"
	DefaultSQLitePath    = "data/feedsky.db"
	DefaultStateKey      = "posted"
	DefaultCombineWindow = 1000
	DefaultSyncInterval  = 5 * time.Minute
	DefaultPort          = "8080"
	DefaultLogLevel      = "info"
)

// Load reads an optional YAML file and applies environment overrides on top.
// An empty path skips the file.
func Load(path string) (*entity.Config, error) {
	cfg := defaults()

	if path != "" {
		contents, err := os.ReadFile(path)

		if err != nil {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}

		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("could not parse config file: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *entity.Config {
	return &entity.Config{
		Service:       DefaultService,
		StoreBackend:  entity.StoreRedis,
		RedisAddr:     DefaultRedisAddr,
		SQLitePath:    DefaultSQLitePath,
		StateKey:      DefaultStateKey,
		CombineWindow: DefaultCombineWindow,
		OnPostFailure: entity.PolicyAbort,
		SyncInterval:  DefaultSyncInterval,
		Port:          DefaultPort,
		LogLevel:      DefaultLogLevel,
	}
}

func applyEnv(cfg *entity.Config) error {
	setString(&cfg.Identifier, "BSKY_IDENTIFIER")
	setString(&cfg.Password, "BSKY_PASSWORD")
	setString(&cfg.Service, "BSKY_SERVICE")
	setString(&cfg.FeedURL, "FEED_URL")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.SQLitePath, "SQLITE_PATH")
	setString(&cfg.StateKey, "STATE_KEY")
	setString(&cfg.Port, "HTTP_SERVER_PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("ON_POST_FAILURE"); v != "" {
		cfg.OnPostFailure = entity.PostFailurePolicy(strings.ToLower(v))
	}

	if v := os.Getenv("COMBINE_WINDOW"); v != "" {
		window, err := strconv.ParseFloat(v, 64)

		if err != nil {
			return fmt.Errorf("COMBINE_WINDOW must be a number: %w", err)
		}

		cfg.CombineWindow = window
	}

	if v := os.Getenv("SYNC_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)

		if err != nil {
			return fmt.Errorf("SYNC_INTERVAL must be a duration: %w", err)
		}

		cfg.SyncInterval = interval
	}

	if v := os.Getenv("STRICT_PERSISTENCE"); v != "" {
		cfg.StrictPersistence = v == "1" || strings.EqualFold(v, "true")
	}

	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the options needed for a sync run are present and consistent.
func Validate(cfg *entity.Config) error {
	var errs []error

	if cfg.Identifier == "" {
		errs = append(errs, errors.New("identifier is required"))
	}

	if cfg.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}

	if cfg.FeedURL == "" {
		errs = append(errs, errors.New("feed URL is required"))
	}

	switch cfg.StoreBackend {
	case entity.StoreRedis, entity.StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("store backend must be %s or %s", entity.StoreRedis, entity.StoreSQLite))
	}

	switch cfg.OnPostFailure {
	case entity.PolicyAbort, entity.PolicyContinue:
	default:
		errs = append(errs, fmt.Errorf("post failure policy must be %s or %s", entity.PolicyAbort, entity.PolicyContinue))
	}

	if cfg.CombineWindow < 0 {
		errs = append(errs, errors.New("combine window must be non-negative"))
	}

	if cfg.SyncInterval <= 0 {
		errs = append(errs, errors.New("sync interval must be positive"))
	}

	if cfg.StateKey == "" {
		errs = append(errs, errors.New("state key is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	return nil
}
