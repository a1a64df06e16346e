package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store and ledger backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	LedgerMemory = "memory"
	LedgerERC20  = "erc20"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store          string
	PGDSN          string
	PGInstance     string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisPrefix    string
	Ledger         string
	RPCURL         string
	CustodyKey     string
	Custody        string
	Contract       string
	FeeBps         uint32
	Caller         string
	EventsOut      string
	LogsOut        string
	Listen         string
	MaxRetries     int
	RetryBackoff   time.Duration
	MetricsRefresh time.Duration
	LogLevel       string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"store":           StoreMemory,
		"pg-instance":     "default",
		"redis-addr":      "127.0.0.1:6379",
		"redis-db":        0,
		"redis-prefix":    "amm",
		"ledger":          LedgerMemory,
		"fee-bps":         0,
		"listen":          ":8080",
		"max-retries":     5,
		"retry-backoff":   500 * time.Millisecond,
		"metrics-refresh": 15 * time.Second,
		"log-level":       "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Store:          strings.ToLower(v.GetString("store")),
		PGDSN:          v.GetString("pg-dsn"),
		PGInstance:     v.GetString("pg-instance"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),
		RedisPrefix:    v.GetString("redis-prefix"),
		Ledger:         strings.ToLower(v.GetString("ledger")),
		RPCURL:         v.GetString("rpc"),
		CustodyKey:     v.GetString("custody-key"),
		Custody:        v.GetString("custody"),
		Contract:       v.GetString("contract"),
		FeeBps:         v.GetUint32("fee-bps"),
		Caller:         v.GetString("caller"),
		EventsOut:      v.GetString("events-out"),
		LogsOut:        v.GetString("logs-out"),
		Listen:         v.GetString("listen"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MetricsRefresh: v.GetDuration("metrics-refresh"),
		LogLevel:       v.GetString("log-level"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selection and the settings each backend needs.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("store %s requires pg-dsn", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Ledger {
	case LedgerMemory:
	case LedgerERC20:
		if c.RPCURL == "" || c.CustodyKey == "" {
			return fmt.Errorf("ledger %s requires rpc and custody-key", c.Ledger)
		}
	default:
		return fmt.Errorf("unknown ledger %q", c.Ledger)
	}
	if c.FeeBps >= 10000 {
		return fmt.Errorf("fee-bps must be below 10000, got %d", c.FeeBps)
	}
	return nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}
