package market

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const binanceMaxKlines = 1000

func newBinanceClient(baseURL string) *binance.Client {
	// public market endpoints need no credentials
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return client
}

// BinanceProvider implements Provider for Binance spot.
type BinanceProvider struct {
	client *binance.Client
}

// NewBinanceProvider creates a new Binance provider.
func NewBinanceProvider(client *binance.Client) *BinanceProvider {
	return &BinanceProvider{client: client}
}

// Depth fetches the order book snapshot.
func (p *BinanceProvider) Depth(ctx context.Context, symbol string, limit int) (domain.DepthSnapshot, error) {
	res, err := p.client.NewDepthService().
		Symbol(symbol).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return domain.DepthSnapshot{}, errors.Wrapf(err, "failed to fetch depth from Binance for %s", symbol)
	}

	snapshot := domain.DepthSnapshot{
		Bids: make([]domain.OrderLevel, len(res.Bids)),
		Asks: make([]domain.OrderLevel, len(res.Asks)),
	}
	for i, b := range res.Bids {
		snapshot.Bids[i] = domain.OrderLevel{Price: b.Price, Quantity: b.Quantity}
	}
	for i, a := range res.Asks {
		snapshot.Asks[i] = domain.OrderLevel{Price: a.Price, Quantity: a.Quantity}
	}

	return snapshot, nil
}

// Klines fetches candles, oldest first, with times converted to epoch seconds.
func (p *BinanceProvider) Klines(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "limit must be > 0")
	}
	if limit > binanceMaxKlines {
		limit = binanceMaxKlines
	}

	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(tf.String()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	result := make([]domain.Candle, len(klines))
	for i, k := range klines {
		c, err := rawCandle{
			openTimeMs: k.OpenTime,
			open:       k.Open,
			high:       k.High,
			low:        k.Low,
			closeP:     k.Close,
			volume:     k.Volume,
		}.parse(i)
		if err != nil {
			return nil, err
		}
		result[i] = c
	}

	return result, nil
}

// Price fetches the last price of symbol.
func (p *BinanceProvider) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := p.client.NewListPricesService().
		Symbol(symbol).
		Do(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch price from Binance for %s", symbol)
	}

	for _, sp := range prices {
		if sp.Symbol != symbol {
			continue
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "failed to parse price %q for %s", sp.Price, symbol)
		}
		return price, nil
	}

	return decimal.Zero, errors.Errorf("no price returned from Binance for %s", symbol)
}
