package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// Flags command line options.
type Flags struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags parses the command line.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("deskfolio", flag.ContinueOnError)
	fs.StringVar(&f.ConfigPath, "config", "", "path to yaml config")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return f, nil
}

// Load reads the yaml config at path (defaults only when path is empty), applies
// DESKFOLIO_* environment overrides, including those from a .env file, and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		var err error
		cfg, err = getYaml(path)
		if err != nil {
			return Config{}, err
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.Platform, "DESKFOLIO_PLATFORM")
	setStr(&cfg.RESTBaseURL, "DESKFOLIO_REST_BASE_URL")
	setStr(&cfg.StreamURL, "DESKFOLIO_STREAM_URL")
	setStr(&cfg.ListenAddr, "DESKFOLIO_LISTEN_ADDR")
	setStr(&cfg.LogLevel, "DESKFOLIO_LOG_LEVEL")
	if v := os.Getenv("DESKFOLIO_THEME"); v != "" {
		cfg.Theme = domain.Theme(strings.ToLower(v))
	}

	if v := os.Getenv("DESKFOLIO_PAIR"); v != "" {
		pair, err := domain.ParsePair(v)
		if err != nil {
			return err
		}
		cfg.Orderbook.Pair = pair
	}
	if v := os.Getenv("DESKFOLIO_TIMEFRAME"); v != "" {
		cfg.Orderbook.Timeframe = domain.Timeframe(v)
	}
	if v := os.Getenv("DESKFOLIO_STEP"); v != "" {
		step, err := decimal.NewFromString(v)
		if err != nil {
			return err
		}
		cfg.Orderbook.Step = step
	}
	setDuration(&cfg.Orderbook.PollInterval, "DESKFOLIO_POLL_INTERVAL")
	setInt(&cfg.Orderbook.DepthLimit, "DESKFOLIO_DEPTH_LIMIT")
	setInt(&cfg.Orderbook.KlineLimit, "DESKFOLIO_KLINE_LIMIT")

	setStr(&cfg.Portfolio.ExchangeRateSymbol, "DESKFOLIO_EXCHANGE_RATE_SYMBOL")
	setDuration(&cfg.Portfolio.ExchangeRateInterval, "DESKFOLIO_EXCHANGE_RATE_INTERVAL")

	setStr(&cfg.Storage.EventsDir, "DESKFOLIO_EVENTS_DIR")
	setStr(&cfg.Storage.DrawingsDir, "DESKFOLIO_DRAWINGS_DIR")
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
