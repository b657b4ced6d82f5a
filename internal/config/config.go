package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store             string
	StorePath         string
	PGDSN             string
	SQLitePath        string
	Journal           string
	Clock             string
	FixedTime         int64
	RPCURL            string
	Router            string
	RouterVenue       string
	RouterSlippageBps uint64
	Pairs             []string
	Caller            string
	CrankInterval     time.Duration
	Checkpoint        string
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TWAMM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", "file")
	v.SetDefault("store-path", "./data/state.json")
	v.SetDefault("sqlite-path", "./data/twamm.db")
	v.SetDefault("journal", "./data/transfers.jsonl")
	v.SetDefault("clock", "system")
	v.SetDefault("router", "none")
	v.SetDefault("router-slippage-bps", uint64(0))
	v.SetDefault("crank-interval", 10*time.Second)
	v.SetDefault("checkpoint", "./data/crank.json")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Store:             strings.ToLower(v.GetString("store")),
		StorePath:         v.GetString("store-path"),
		PGDSN:             v.GetString("pg-dsn"),
		SQLitePath:        v.GetString("sqlite-path"),
		Journal:           v.GetString("journal"),
		Clock:             strings.ToLower(v.GetString("clock")),
		FixedTime:         v.GetInt64("fixed-time"),
		RPCURL:            v.GetString("rpc"),
		Router:            strings.ToLower(v.GetString("router")),
		RouterVenue:       v.GetString("router-venue"),
		RouterSlippageBps: v.GetUint64("router-slippage-bps"),
		Pairs:             getStringSlice(v, "pair"),
		Caller:            v.GetString("caller"),
		CrankInterval:     v.GetDuration("crank-interval"),
		Checkpoint:        v.GetString("checkpoint"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "file", "memory", "sqlite":
	case "postgres":
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Clock {
	case "system", "fixed":
	case "chain":
		if c.RPCURL == "" {
			return fmt.Errorf("rpc is required for the chain clock")
		}
	default:
		return fmt.Errorf("unknown clock %q", c.Clock)
	}
	switch c.Router {
	case "none", "oracle":
	default:
		return fmt.Errorf("unknown router %q", c.Router)
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
