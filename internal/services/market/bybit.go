package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

const (
	bybitMaxKlines = 1000
	bybitMaxDepth  = 200
)

func newBybitClient(baseURL string) *bybit.Client {
	client := bybit.NewClient()
	if baseURL != "" {
		client = client.WithBaseURL(baseURL)
	}
	return client
}

// BybitProvider implements Provider for Bybit spot via the V5 API.
type BybitProvider struct {
	client *bybit.Client
}

// NewBybitProvider creates a new Bybit provider.
func NewBybitProvider(client *bybit.Client) *BybitProvider {
	return &BybitProvider{client: client}
}

// Depth fetches the order book snapshot. Bybit serves at most 200 levels per side for spot.
func (p *BybitProvider) Depth(_ context.Context, symbol string, limit int) (domain.DepthSnapshot, error) {
	if limit <= 0 || limit > bybitMaxDepth {
		limit = bybitMaxDepth
	}

	res, err := p.client.V5().Market().GetOrderbook(bybit.V5GetOrderbookParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Limit:    &limit,
	})
	if err != nil {
		return domain.DepthSnapshot{}, errors.Wrapf(err, "failed to fetch orderbook from Bybit for %s", symbol)
	}
	if res == nil {
		return domain.DepthSnapshot{}, errors.Errorf("empty result from Bybit API for %s", symbol)
	}

	snapshot := domain.DepthSnapshot{
		Bids: make([]domain.OrderLevel, len(res.Result.Bids)),
		Asks: make([]domain.OrderLevel, len(res.Result.Asks)),
	}
	for i, b := range res.Result.Bids {
		snapshot.Bids[i] = domain.OrderLevel{Price: b.Price, Quantity: b.Quantity}
	}
	for i, a := range res.Result.Asks {
		snapshot.Asks[i] = domain.OrderLevel{Price: a.Price, Quantity: a.Quantity}
	}

	return snapshot, nil
}

// Klines fetches candles. Bybit lists them newest first; the result is re-ordered oldest first.
func (p *BybitProvider) Klines(_ context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	if limit <= 0 {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "limit must be > 0")
	}
	if limit > bybitMaxKlines {
		limit = bybitMaxKlines
	}

	interval, err := convertIntervalToBybit(tf.String())
	if err != nil {
		return nil, errors.Wrapf(domain.ErrInvalidArgument, "invalid interval %s: %v", tf, err)
	}

	res, err := p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   bybit.SymbolV5(symbol),
		Interval: bybit.Interval(interval),
		Limit:    &limit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", symbol)
	}
	if res == nil {
		return nil, errors.Errorf("empty result from Bybit API for %s", symbol)
	}

	candles := make([]domain.Candle, len(res.Result.List))
	for i, k := range res.Result.List {
		openTime, err := parseTimestamp(k.StartTime)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse start time at index %d", i)
		}
		c, err := rawCandle{
			openTimeMs: openTime.UnixMilli(),
			open:       k.Open,
			high:       k.High,
			low:        k.Low,
			closeP:     k.Close,
			volume:     k.Volume,
		}.parse(i)
		if err != nil {
			return nil, err
		}
		candles[i] = c
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })

	return candles, nil
}

// Price fetches the last traded price of symbol.
func (p *BybitProvider) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	sym := bybit.SymbolV5(symbol)
	res, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &sym,
	})
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to fetch ticker from Bybit for %s", symbol)
	}
	if res == nil || res.Result.Spot == nil || len(res.Result.Spot.List) == 0 {
		return decimal.Zero, errors.Errorf("no ticker returned from Bybit for %s", symbol)
	}

	price, err := decimal.NewFromString(res.Result.Spot.List[0].LastPrice)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "failed to parse last price for %s", symbol)
	}
	return price, nil
}

// convertIntervalToBybit converts standard interval format to Bybit format.
// Standard format: "1m", "5m", "15m", "1h", "4h", "1d", etc.
// Bybit format: "1", "5", "15", "60", "240", "D", etc.
func convertIntervalToBybit(interval string) (string, error) {
	if len(interval) < 2 {
		return "", fmt.Errorf("invalid interval format: %s", interval)
	}

	unit := interval[len(interval)-1]
	numberPart := interval[:len(interval)-1]

	switch unit {
	case 'm':
		return numberPart, nil
	case 'h':
		// hours to minutes: 1h -> 60, 4h -> 240
		var n int64
		for _, r := range numberPart {
			if r < '0' || r > '9' {
				return "", fmt.Errorf("invalid interval number: %s", interval)
			}
			n = n*10 + int64(r-'0')
		}
		return fmt.Sprintf("%d", n*60), nil
	case 'd':
		return "D", nil
	case 'w':
		return "W", nil
	default:
		return "", fmt.Errorf("unsupported interval unit: %c", unit)
	}
}

// parseTimestamp converts Bybit timestamp string (milliseconds) to time.Time.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	var msec int64
	_, err := fmt.Sscanf(ts, "%d", &msec)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "failed to parse timestamp: %s", ts)
	}

	return time.UnixMilli(msec), nil
}
