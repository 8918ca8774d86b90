package config

import (
	"errors"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server struct {
		ListenAddr string `toml:"listen_addr"`
	} `toml:"server"`

	Storage struct {
		Driver        string `toml:"driver"` // sqlite | postgres
		SQLitePath    string `toml:"sqlite_path"`
		PostgresDSN   string `toml:"postgres_dsn"`
		BusyTimeoutMs int    `toml:"busy_timeout_ms"`
	} `toml:"storage"`

	Cache struct {
		Backend     string `toml:"backend"` // memory | redis
		TTLSeconds  int    `toml:"ttl_seconds"`
		RedisAddr   string `toml:"redis_addr"`
		RedisPrefix string `toml:"redis_prefix"`
	} `toml:"cache"`

	Indexer struct {
		BaseURL             string `toml:"base_url"`
		WsURL               string `toml:"ws_url"`
		FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
		StreamEnabled       bool   `toml:"stream_enabled"`
	} `toml:"indexer"`

	Sync struct {
		AutoResync            bool `toml:"auto_resync"`
		ResyncIntervalSeconds int  `toml:"resync_interval_seconds"`
	} `toml:"sync"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets deployment environments override the file without
// editing it.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DEXSYNC_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("DEXSYNC_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DEXSYNC_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("DEXSYNC_INDEXER_URL"); v != "" {
		cfg.Indexer.BaseURL = v
	}
	if v := os.Getenv("DEXSYNC_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8086"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/dexsync.db"
	}
	if cfg.Storage.BusyTimeoutMs <= 0 {
		cfg.Storage.BusyTimeoutMs = 5000
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 60
	}
	if cfg.Cache.RedisPrefix == "" {
		cfg.Cache.RedisPrefix = "dexsync"
	}
	if cfg.Indexer.FetchTimeoutSeconds <= 0 {
		cfg.Indexer.FetchTimeoutSeconds = 10
	}
	if cfg.Sync.ResyncIntervalSeconds <= 0 {
		cfg.Sync.ResyncIntervalSeconds = 300
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
			return errors.New("storage.postgres_dsn empty but driver is postgres")
		}
	default:
		return errors.New("storage.driver must be sqlite or postgres")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
			return errors.New("cache.redis_addr empty but backend is redis")
		}
	default:
		return errors.New("cache.backend must be memory or redis")
	}

	if strings.TrimSpace(cfg.Indexer.BaseURL) == "" {
		return errors.New("indexer.base_url is empty")
	}
	if cfg.Indexer.StreamEnabled && strings.TrimSpace(cfg.Indexer.WsURL) == "" {
		return errors.New("indexer.ws_url empty but stream enabled")
	}
	return nil
}
