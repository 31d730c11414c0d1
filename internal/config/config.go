package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xtding233/tarot-house/internal/shop"
)

type LedgerDriver string

const (
	DriverMemory LedgerDriver = "memory"
	DriverRedis  LedgerDriver = "redis"
)

// Config is the tarot-house server configuration.
type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Session SessionConfig `mapstructure:"session"`
	Shop    ShopConfig    `mapstructure:"shop"`
	RNG     RNGConfig     `mapstructure:"rng"`
	Log     LogConfig     `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr      string          `mapstructure:"addr"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig throttles pulls per account; rps <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr"`
}

type CatalogConfig struct {
	Dir            string        `mapstructure:"dir"`
	ReloadInterval time.Duration `mapstructure:"reloadInterval"` // 0 disables hot reload
}

type LedgerConfig struct {
	Driver LedgerDriver `mapstructure:"driver"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	Prefix     string        `mapstructure:"prefix"`
	SessionTTL time.Duration `mapstructure:"sessionTTL"`
}

// SessionConfig is the balance a new session account starts with.
type SessionConfig struct {
	StartingTickets  int64 `mapstructure:"startingTickets"`
	StartingDiamonds int64 `mapstructure:"startingDiamonds"`
}

type ShopConfig struct {
	Packs []shop.Pack `mapstructure:"packs"`
}

// RNGConfig selects the random source; seed 0 means crypto.
type RNGConfig struct {
	Seed uint64 `mapstructure:"seed"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.rateLimit.rps", 5)
	v.SetDefault("http.rateLimit.burst", 2)
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("catalog.dir", "configs/catalog")
	v.SetDefault("catalog.reloadInterval", "5s")
	v.SetDefault("ledger.driver", string(DriverMemory))
	v.SetDefault("ledger.redis.prefix", "tarot_house:")
	v.SetDefault("session.startingTickets", 15)
	v.SetDefault("session.startingDiamonds", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml from configPath. Every key can be overridden by
// an environment variable, e.g. TAROT_LEDGER_DRIVER=redis.
func Load(configPath string) (*Config, error) {
	v := viper.New() // a fresh instance per call keeps commands independent
	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TAROT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot.
func (c *Config) Validate() error {
	var errs []string
	switch c.Ledger.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Ledger.Redis.Addr == "" {
			errs = append(errs, "ledger.redis.addr is required for driver=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("ledger.driver must be one of: memory, redis (got %q)", c.Ledger.Driver))
	}
	if c.Session.StartingTickets < 0 || c.Session.StartingDiamonds < 0 {
		errs = append(errs, "session starting balances must be >= 0")
	}
	if c.Catalog.Dir == "" {
		errs = append(errs, "catalog.dir is required")
	}
	if c.Catalog.ReloadInterval < 0 {
		errs = append(errs, "catalog.reloadInterval must be >= 0")
	}
	if len(c.Shop.Packs) > 0 {
		if err := (shop.Catalog{Packs: c.Shop.Packs}).Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		errs = append(errs, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ShopCatalog returns the configured packs, or the default catalog.
func (c *Config) ShopCatalog() shop.Catalog {
	if len(c.Shop.Packs) == 0 {
		return shop.DefaultCatalog()
	}
	return shop.Catalog{Packs: c.Shop.Packs}
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: levels[strings.ToLower(c.Level)]}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
