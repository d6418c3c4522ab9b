// Package market provides REST adapters for exchange market data: order book depth,
// candles and ticker prices.
package market

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// Platform names accepted by NewProvider.
const (
	PlatformBinance = "binance"
	PlatformBybit   = "bybit"
)

// DepthProvider fetches order book snapshots.
type DepthProvider interface {
	Depth(ctx context.Context, symbol string, limit int) (domain.DepthSnapshot, error)
}

// KlineProvider fetches candles, oldest first.
type KlineProvider interface {
	Klines(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}

// PriceProvider fetches the last traded price of a symbol.
type PriceProvider interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Provider is the full set of market data operations of one exchange.
type Provider interface {
	DepthProvider
	KlineProvider
	PriceProvider
}

// NewProvider creates the provider for platform. Empty base URLs select production endpoints.
func NewProvider(platform, baseURL string) (Provider, error) {
	switch strings.ToLower(platform) {
	case PlatformBinance, "":
		return NewBinanceProvider(newBinanceClient(baseURL)), nil
	case PlatformBybit:
		return NewBybitProvider(newBybitClient(baseURL)), nil
	default:
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "unsupported platform %q", platform)
	}
}

type rawCandle struct {
	openTimeMs int64
	open       string
	high       string
	low        string
	closeP     string
	volume     string
}

func (r rawCandle) parse(i int) (domain.Candle, error) {
	open, err := decimal.NewFromString(r.open)
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "failed to parse open price at index %d", i)
	}
	high, err := decimal.NewFromString(r.high)
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "failed to parse high price at index %d", i)
	}
	low, err := decimal.NewFromString(r.low)
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "failed to parse low price at index %d", i)
	}
	closeP, err := decimal.NewFromString(r.closeP)
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "failed to parse close price at index %d", i)
	}
	volume, err := decimal.NewFromString(r.volume)
	if err != nil {
		return domain.Candle{}, errors.Wrapf(err, "failed to parse volume at index %d", i)
	}

	return domain.Candle{
		Time:   r.openTimeMs / 1000,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closeP,
		Volume: volume,
	}, nil
}
