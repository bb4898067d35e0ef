package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendRedis  = "redis"
	BackendHTTP   = "http"
)

// Config holds the fully processed application configuration.
type Config struct {
	Server ServerConfig
	Player PlayerConfig
	Store  StoreConfig
	Cache  CacheConfig
	Log    LogConfig
}

type ServerConfig struct {
	Listen          string
	ShutdownTimeout time.Duration
	// RateLimit is the sustained requests per second allowed per client address. Zero disables it.
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
	// ScreenCols and ScreenRows size the headless terminal used for screen snapshots.
	ScreenCols int
	ScreenRows int
}

type PlayerConfig struct {
	MinRate       float64
	MaxRate       float64
	DefaultRate   float64
	MaxFrameDelay time.Duration
}

type StoreConfig struct {
	Backend string
	File    FileStoreConfig
	SQLite  SQLiteStoreConfig
	S3      S3StoreConfig
	Redis   RedisStoreConfig
	HTTP    HTTPStoreConfig
}

type FileStoreConfig struct {
	Dir string
}

type SQLiteStoreConfig struct {
	Path string
}

type S3StoreConfig struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type HTTPStoreConfig struct {
	BaseURL    string
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
	Timeout    time.Duration
}

type CacheConfig struct {
	EvictionInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// rawConfig maps directly to the YAML file. Durations are kept as strings until processed.
type rawConfig struct {
	Server struct {
		Listen          string  `yaml:"listen"`
		ShutdownTimeout string  `yaml:"shutdownTimeout"`
		RateLimit       float64 `yaml:"rateLimit"`
		RateBurst       int     `yaml:"rateBurst"`
		MaxUploadBytes  int64   `yaml:"maxUploadBytes"`
		ScreenCols      int     `yaml:"screenCols"`
		ScreenRows      int     `yaml:"screenRows"`
	} `yaml:"server"`
	Player struct {
		MinRate       float64 `yaml:"minRate"`
		MaxRate       float64 `yaml:"maxRate"`
		DefaultRate   float64 `yaml:"defaultRate"`
		MaxFrameDelay string  `yaml:"maxFrameDelay"`
	} `yaml:"player"`
	Store struct {
		Backend string `yaml:"backend"`
		File    struct {
			Dir string `yaml:"dir"`
		} `yaml:"file"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		S3 struct {
			Bucket       string `yaml:"bucket"`
			Prefix       string `yaml:"prefix"`
			Region       string `yaml:"region"`
			Endpoint     string `yaml:"endpoint"`
			UsePathStyle bool   `yaml:"usePathStyle"`
		} `yaml:"s3"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		HTTP struct {
			BaseURL    string `yaml:"baseURL"`
			UserAgent  string `yaml:"userAgent"`
			Retries    int    `yaml:"retries"`
			RetryDelay string `yaml:"retryDelay"`
			Timeout    string `yaml:"timeout"`
		} `yaml:"http"`
	} `yaml:"store"`
	Cache struct {
		EvictionInterval string `yaml:"evictionInterval"`
	} `yaml:"cache"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func defaultRaw() rawConfig {
	var raw rawConfig
	raw.Server.Listen = ":8080"
	raw.Server.ShutdownTimeout = "5s"
	raw.Server.RateLimit = 20
	raw.Server.RateBurst = 40
	raw.Server.MaxUploadBytes = 64 << 20
	raw.Server.ScreenCols = 80
	raw.Server.ScreenRows = 24
	raw.Player.MinRate = 0.5
	raw.Player.MaxRate = 64
	raw.Player.DefaultRate = 1
	raw.Player.MaxFrameDelay = "1.6s"
	raw.Store.Backend = BackendFile
	raw.Store.File.Dir = "recordings"
	raw.Store.SQLite.Path = "castplay.db"
	raw.Store.S3.Prefix = "recordings/"
	raw.Store.Redis.Addr = "localhost:6379"
	raw.Store.Redis.Prefix = "castplay:recording:"
	raw.Store.HTTP.UserAgent = "castplayd"
	raw.Store.HTTP.Retries = 3
	raw.Store.HTTP.RetryDelay = "100ms"
	raw.Store.HTTP.Timeout = "30s"
	raw.Cache.EvictionInterval = "1m"
	raw.Log.Level = "info"
	raw.Log.Format = "json"
	return raw
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := process(defaultRaw())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return cfg
}

// Load reads and parses the YAML configuration file at path. Settings missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at %s: %w", path, err)
	}
	return Parse(data)
}

// Parse processes YAML configuration content.
func Parse(data []byte) (*Config, error) {
	raw := defaultRaw()
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return process(raw)
}

func process(raw rawConfig) (*Config, error) {
	var errs []error
	duration := func(field, value string) time.Duration {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid duration for %s: %q", field, value))
		}
		return d
	}

	cfg := &Config{
		Server: ServerConfig{
			Listen:          raw.Server.Listen,
			ShutdownTimeout: duration("server.shutdownTimeout", raw.Server.ShutdownTimeout),
			RateLimit:       raw.Server.RateLimit,
			RateBurst:       raw.Server.RateBurst,
			MaxUploadBytes:  raw.Server.MaxUploadBytes,
			ScreenCols:      raw.Server.ScreenCols,
			ScreenRows:      raw.Server.ScreenRows,
		},
		Player: PlayerConfig{
			MinRate:       raw.Player.MinRate,
			MaxRate:       raw.Player.MaxRate,
			DefaultRate:   raw.Player.DefaultRate,
			MaxFrameDelay: duration("player.maxFrameDelay", raw.Player.MaxFrameDelay),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(strings.TrimSpace(raw.Store.Backend)),
			File:    FileStoreConfig{Dir: raw.Store.File.Dir},
			SQLite:  SQLiteStoreConfig{Path: raw.Store.SQLite.Path},
			S3: S3StoreConfig{
				Bucket:       raw.Store.S3.Bucket,
				Prefix:       raw.Store.S3.Prefix,
				Region:       raw.Store.S3.Region,
				Endpoint:     raw.Store.S3.Endpoint,
				UsePathStyle: raw.Store.S3.UsePathStyle,
			},
			Redis: RedisStoreConfig{
				Addr:     raw.Store.Redis.Addr,
				Password: raw.Store.Redis.Password,
				DB:       raw.Store.Redis.DB,
				Prefix:   raw.Store.Redis.Prefix,
			},
			HTTP: HTTPStoreConfig{
				BaseURL:    raw.Store.HTTP.BaseURL,
				UserAgent:  raw.Store.HTTP.UserAgent,
				Retries:    raw.Store.HTTP.Retries,
				RetryDelay: duration("store.http.retryDelay", raw.Store.HTTP.RetryDelay),
				Timeout:    duration("store.http.timeout", raw.Store.HTTP.Timeout),
			},
		},
		Cache: CacheConfig{
			EvictionInterval: duration("cache.evictionInterval", raw.Cache.EvictionInterval),
		},
		Log: LogConfig{
			Level:  raw.Log.Level,
			Format: raw.Log.Format,
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late, at first use.
func (c *Config) Validate() error {
	var errs []error

	p := c.Player
	if p.MinRate <= 0 {
		errs = append(errs, fmt.Errorf("player.minRate must be positive, got %g", p.MinRate))
	}
	if p.MaxRate < p.MinRate {
		errs = append(errs, fmt.Errorf("player.maxRate (%g) is below player.minRate (%g)", p.MaxRate, p.MinRate))
	}
	if p.DefaultRate < p.MinRate || p.DefaultRate > p.MaxRate {
		errs = append(errs, fmt.Errorf("player.defaultRate %g is outside [%g, %g]", p.DefaultRate, p.MinRate, p.MaxRate))
	}
	if p.MaxFrameDelay <= 0 {
		errs = append(errs, fmt.Errorf("player.maxFrameDelay must be positive, got %s", p.MaxFrameDelay))
	}

	s := c.Store
	switch s.Backend {
	case BackendMemory:
	case BackendFile:
		if s.File.Dir == "" {
			errs = append(errs, errors.New("store.file.dir is required for the file backend"))
		}
	case BackendSQLite:
		if s.SQLite.Path == "" {
			errs = append(errs, errors.New("store.sqlite.path is required for the sqlite backend"))
		}
	case BackendS3:
		if s.S3.Bucket == "" {
			errs = append(errs, errors.New("store.s3.bucket is required for the s3 backend"))
		}
	case BackendRedis:
		if s.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	case BackendHTTP:
		if s.HTTP.BaseURL == "" {
			errs = append(errs, errors.New("store.http.baseURL is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", s.Backend))
	}

	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must not be negative, got %g", c.Server.RateLimit))
	}
	if c.Cache.EvictionInterval <= 0 {
		errs = append(errs, fmt.Errorf("cache.evictionInterval must be positive, got %s", c.Cache.EvictionInterval))
	}
	return errors.Join(errs...)
}
