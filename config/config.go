// Package config loads the dashboard configuration from yaml, .env and DESKFOLIO_* variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// LotDateLayout is the date format of purchase lots in yaml configs.
const LotDateLayout = "2006-01-02"

// Config is the validated runtime configuration.
type Config struct {
	Platform    string
	RESTBaseURL string
	StreamURL   string
	ListenAddr  string
	Theme       domain.Theme
	LogLevel    string
	Orderbook   OrderbookConfig
	Chart       ChartConfig
	Portfolio   PortfolioConfig
	Storage     StorageConfig
}

// OrderbookConfig selects the polled pair and how its book is aggregated.
type OrderbookConfig struct {
	Pair              domain.Pair
	Timeframe         domain.Timeframe
	Step              decimal.Decimal
	PricePrecision    int32
	QuantityPrecision int32
	PollInterval      time.Duration
	DepthLimit        int
	KlineLimit        int
}

// ChartConfig initial chart size in pixels.
type ChartConfig struct {
	Width  float64
	Height float64
}

// PortfolioConfig holdings and valuation parameters.
type PortfolioConfig struct {
	// ExchangeRateSymbol is quoted as display currency in quote currency, e.g. EURUSDT.
	ExchangeRateSymbol   string
	ExchangeRateInterval time.Duration
	// InvertExchangeRate converts the symbol price into quote->display (1/price).
	InvertExchangeRate bool
	// Scales multiplies raw prices of the listed symbols. Nil keeps the built-in table.
	Scales map[string]decimal.Decimal
	// Assets replaces the built-in portfolio when non-empty.
	Assets []domain.Asset
}

// StorageConfig directories of the local WAL stores.
type StorageConfig struct {
	EventsDir   string
	DrawingsDir string
}

// ConfigTmp is the yaml form; decimals are strings so they survive without float rounding.
type ConfigTmp struct {
	Platform    string       `yaml:"platform"`
	RESTBaseURL string       `yaml:"rest_base_url,omitempty"`
	StreamURL   string       `yaml:"stream_url,omitempty"`
	ListenAddr  string       `yaml:"listen_addr,omitempty"`
	Theme       string       `yaml:"theme,omitempty"`
	LogLevel    string       `yaml:"log_level,omitempty"`
	Orderbook   OrderbookTmp `yaml:"orderbook"`
	Chart       ChartTmp     `yaml:"chart,omitempty"`
	Portfolio   PortfolioTmp `yaml:"portfolio,omitempty"`
	Storage     StorageTmp   `yaml:"storage,omitempty"`
}

type OrderbookTmp struct {
	Pair              string        `yaml:"pair"`
	Timeframe         string        `yaml:"timeframe,omitempty"`
	Step              string        `yaml:"step,omitempty"`
	PricePrecision    *int32        `yaml:"price_precision,omitempty"`
	QuantityPrecision *int32        `yaml:"quantity_precision,omitempty"`
	PollInterval      time.Duration `yaml:"poll_interval,omitempty"`
	DepthLimit        int           `yaml:"depth_limit,omitempty"`
	KlineLimit        int           `yaml:"kline_limit,omitempty"`
}

type ChartTmp struct {
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
}

type PortfolioTmp struct {
	ExchangeRateSymbol   string            `yaml:"exchange_rate_symbol,omitempty"`
	ExchangeRateInterval time.Duration     `yaml:"exchange_rate_interval,omitempty"`
	InvertExchangeRate   *bool             `yaml:"invert_exchange_rate,omitempty"`
	Scales               map[string]string `yaml:"scales,omitempty"`
	Assets               []AssetTmp        `yaml:"assets,omitempty"`
}

type AssetTmp struct {
	Symbol     string   `yaml:"symbol"`
	Name       string   `yaml:"name"`
	Amount     string   `yaml:"amount"`
	Investment string   `yaml:"investment"`
	Lots       []LotTmp `yaml:"lots,omitempty"`
}

type LotTmp struct {
	Price    string `yaml:"price"`
	Quantity string `yaml:"quantity"`
	Date     string `yaml:"date"`
}

type StorageTmp struct {
	EventsDir   string `yaml:"events_dir,omitempty"`
	DrawingsDir string `yaml:"drawings_dir,omitempty"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Platform:   "binance",
		StreamURL:  "wss://stream.binance.com:9443/ws",
		ListenAddr: "127.0.0.1:8080",
		Theme:      domain.ThemeDark,
		LogLevel:   "info",
		Orderbook: OrderbookConfig{
			Pair:              domain.Pair{From: "BTC", To: "USDT"},
			Timeframe:         domain.Timeframe1h,
			Step:              decimal.RequireFromString("0.01"),
			PricePrecision:    2,
			QuantityPrecision: 5,
			PollInterval:      3 * time.Second,
			DepthLimit:        1000,
			KlineLimit:        1000,
		},
		Chart: ChartConfig{Width: 1200, Height: 600},
		Portfolio: PortfolioConfig{
			ExchangeRateSymbol:   "EURUSDT",
			ExchangeRateInterval: 10 * time.Second,
			InvertExchangeRate:   true,
		},
		Storage: StorageConfig{
			EventsDir:   "./wal/events",
			DrawingsDir: "./wal/drawings",
		},
	}
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, fmt.Errorf("failed to parse yaml config %s: %w", path, err)
	}

	return tmp.toConfig()
}

// toConfig merges the yaml values over the defaults.
func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Defaults()

	setIfNotEmpty(&cfg.Platform, strings.ToLower(c.Platform))
	setIfNotEmpty(&cfg.RESTBaseURL, c.RESTBaseURL)
	setIfNotEmpty(&cfg.StreamURL, c.StreamURL)
	setIfNotEmpty(&cfg.ListenAddr, c.ListenAddr)
	setIfNotEmpty(&cfg.LogLevel, c.LogLevel)
	if c.Theme != "" {
		cfg.Theme = domain.Theme(strings.ToLower(c.Theme))
	}

	ob := c.Orderbook
	if ob.Pair != "" {
		pair, err := domain.ParsePair(ob.Pair)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'orderbook.pair' param in yaml config: %s, error: %w", ob.Pair, err)
		}
		cfg.Orderbook.Pair = pair
	}
	if ob.Timeframe != "" {
		cfg.Orderbook.Timeframe = domain.Timeframe(ob.Timeframe)
	}
	if ob.Step != "" {
		step, err := decimal.NewFromString(ob.Step)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'orderbook.step' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.Orderbook.Step = step
	}
	if ob.PricePrecision != nil {
		cfg.Orderbook.PricePrecision = *ob.PricePrecision
	}
	if ob.QuantityPrecision != nil {
		cfg.Orderbook.QuantityPrecision = *ob.QuantityPrecision
	}
	if ob.PollInterval != 0 {
		cfg.Orderbook.PollInterval = ob.PollInterval
	}
	if ob.DepthLimit != 0 {
		cfg.Orderbook.DepthLimit = ob.DepthLimit
	}
	if ob.KlineLimit != 0 {
		cfg.Orderbook.KlineLimit = ob.KlineLimit
	}

	if c.Chart.Width != 0 {
		cfg.Chart.Width = c.Chart.Width
	}
	if c.Chart.Height != 0 {
		cfg.Chart.Height = c.Chart.Height
	}

	p := c.Portfolio
	setIfNotEmpty(&cfg.Portfolio.ExchangeRateSymbol, strings.ToUpper(p.ExchangeRateSymbol))
	if p.ExchangeRateInterval != 0 {
		cfg.Portfolio.ExchangeRateInterval = p.ExchangeRateInterval
	}
	if p.InvertExchangeRate != nil {
		cfg.Portfolio.InvertExchangeRate = *p.InvertExchangeRate
	}
	if len(p.Scales) > 0 {
		cfg.Portfolio.Scales = make(map[string]decimal.Decimal, len(p.Scales))
		for symbol, raw := range p.Scales {
			scale, err := decimal.NewFromString(raw)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'portfolio.scales.%s' param in yaml config (must be a decimal), error: %w", symbol, err)
			}
			cfg.Portfolio.Scales[strings.ToUpper(symbol)] = scale
		}
	}
	for _, a := range p.Assets {
		asset, err := a.toAsset()
		if err != nil {
			return Config{}, err
		}
		cfg.Portfolio.Assets = append(cfg.Portfolio.Assets, asset)
	}

	setIfNotEmpty(&cfg.Storage.EventsDir, c.Storage.EventsDir)
	setIfNotEmpty(&cfg.Storage.DrawingsDir, c.Storage.DrawingsDir)

	return cfg, nil
}

func (a AssetTmp) toAsset() (domain.Asset, error) {
	amount, err := decimal.NewFromString(a.Amount)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("incorrect 'amount' of asset %s in yaml config (must be a decimal), error: %w", a.Symbol, err)
	}
	investment, err := decimal.NewFromString(a.Investment)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("incorrect 'investment' of asset %s in yaml config (must be a decimal), error: %w", a.Symbol, err)
	}

	asset := domain.Asset{
		Symbol:     strings.ToUpper(a.Symbol),
		Name:       a.Name,
		Amount:     amount,
		Investment: investment,
	}
	for i, l := range a.Lots {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("incorrect lot %d price of asset %s, error: %w", i, a.Symbol, err)
		}
		qty, err := decimal.NewFromString(l.Quantity)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("incorrect lot %d quantity of asset %s, error: %w", i, a.Symbol, err)
		}
		date, err := time.Parse(LotDateLayout, l.Date)
		if err != nil {
			return domain.Asset{}, fmt.Errorf("incorrect lot %d date of asset %s (format is %s), error: %w", i, a.Symbol, LotDateLayout, err)
		}
		asset.PurchaseHistory = append(asset.PurchaseHistory, domain.Lot{Price: price, Quantity: qty, Date: date})
	}

	return asset, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Platform {
	case "binance", "bybit":
	default:
		return fmt.Errorf("unsupported platform %q", c.Platform)
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if !c.Theme.IsValid() {
		return fmt.Errorf("invalid theme %q", c.Theme)
	}
	if !c.Orderbook.Timeframe.IsValid() {
		return fmt.Errorf("unsupported timeframe %q", c.Orderbook.Timeframe)
	}
	if !c.Orderbook.Step.IsPositive() {
		return fmt.Errorf("orderbook step must be positive, got %s", c.Orderbook.Step)
	}
	if c.Orderbook.PricePrecision < 0 || c.Orderbook.QuantityPrecision < 0 {
		return fmt.Errorf("precisions must be >= 0")
	}
	if c.Orderbook.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Orderbook.DepthLimit <= 0 || c.Orderbook.KlineLimit <= 0 {
		return fmt.Errorf("depth and kline limits must be positive")
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		return fmt.Errorf("chart size must be positive, got %vx%v", c.Chart.Width, c.Chart.Height)
	}
	if c.Portfolio.ExchangeRateInterval <= 0 {
		return fmt.Errorf("exchange rate interval must be positive")
	}
	for symbol, scale := range c.Portfolio.Scales {
		if !scale.IsPositive() {
			return fmt.Errorf("scale of %s must be positive, got %s", symbol, scale)
		}
	}
	seen := make(map[string]struct{}, len(c.Portfolio.Assets))
	for _, a := range c.Portfolio.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("asset symbol is required")
		}
		if _, ok := seen[a.Symbol]; ok {
			return fmt.Errorf("duplicate asset %s", a.Symbol)
		}
		seen[a.Symbol] = struct{}{}
	}
	return nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
