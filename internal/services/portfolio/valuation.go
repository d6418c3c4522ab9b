package portfolio

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

// Publisher receives a snapshot after every portfolio mutation.
type Publisher interface {
	Publish(domain.PortfolioSnapshot)
}

var hundred = decimal.NewFromInt(100)

// DefaultScales quote scaling for assets tracked in non-standard units.
func DefaultScales() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"PEPEUSDT": decimal.NewFromInt(1_000_000),
	}
}

// Option configures Engine.
type Option func(*Engine)

// WithScales replaces the price scale table. Symbols missing from it use scale 1.
func WithScales(scales map[string]decimal.Decimal) Option {
	return func(e *Engine) {
		e.scales = make(map[string]decimal.Decimal, len(scales))
		for symbol, scale := range scales {
			e.scales[symbol] = scale
		}
	}
}

// WithPublisher sets the snapshot sink.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine keeps the held assets valued at the latest streamed prices.
type Engine struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	assets     []domain.Asset
	index      map[string]int
	scales     map[string]decimal.Decimal
	dailyClose map[string]decimal.Decimal
	// rate converts quote currency into display currency; zero means not known yet.
	rate      decimal.Decimal
	publisher Publisher
	now       func() time.Time
}

// NewEngine creates an engine seeded with assets.
func NewEngine(logger *zap.Logger, assets []domain.Asset, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:     logger,
		index:      make(map[string]int, len(assets)),
		scales:     DefaultScales(),
		dailyClose: make(map[string]decimal.Decimal),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, a := range assets {
		if err := e.add(a); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// UpdatePrice applies a streamed trade price. Unknown symbols are ignored.
func (e *Engine) UpdatePrice(symbol string, raw decimal.Decimal) {
	e.mu.Lock()
	i, ok := e.index[symbol]
	if !ok {
		e.mu.Unlock()
		return
	}
	scaled := raw.Mul(e.scale(symbol))
	a := &e.assets[i]
	a.PreviousPrice = a.CurrentPrice
	a.CurrentPrice = scaled
	a.Value = a.Amount.Mul(scaled)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
}

// AddAsset starts tracking a new asset.
func (e *Engine) AddAsset(a domain.Asset) error {
	e.mu.Lock()
	if err := e.add(a); err != nil {
		e.mu.Unlock()
		return err
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
	e.logger.Info("asset added", zap.String("symbol", a.Symbol))
	return nil
}

// RemoveAsset stops tracking symbol. It reports whether the asset existed.
func (e *Engine) RemoveAsset(symbol string) bool {
	e.mu.Lock()
	i, ok := e.index[symbol]
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.assets = append(e.assets[:i], e.assets[i+1:]...)
	e.reindex()
	delete(e.dailyClose, symbol)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
	e.logger.Info("asset removed", zap.String("symbol", symbol))
	return true
}

// AddLot records a purchase: amount grows by the lot quantity and investment by its cost.
func (e *Engine) AddLot(symbol string, lot domain.Lot) error {
	if !lot.Price.IsPositive() || !lot.Quantity.IsPositive() {
		return errors.Wrap(domain.ErrInvalidArgument, "lot price and quantity must be positive")
	}

	e.mu.Lock()
	i, ok := e.index[symbol]
	if !ok {
		e.mu.Unlock()
		return errors.Wrapf(domain.ErrInvalidArgument, "unknown asset %s", symbol)
	}
	a := &e.assets[i]
	a.PurchaseHistory = append(a.PurchaseHistory, lot)
	a.Amount = a.Amount.Add(lot.Quantity)
	a.Investment = a.Investment.Add(lot.Cost())
	a.Value = a.Amount.Mul(a.CurrentPrice)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
	return nil
}

// SetDailyClose records the previous daily close for symbol, scaled like live prices.
func (e *Engine) SetDailyClose(symbol string, raw decimal.Decimal) {
	e.mu.Lock()
	if _, ok := e.index[symbol]; !ok {
		e.mu.Unlock()
		return
	}
	e.dailyClose[symbol] = raw.Mul(e.scale(symbol))
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
}

// SetExchangeRate sets the quote to display currency rate.
func (e *Engine) SetExchangeRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidArgument, "exchange rate %s", rate)
	}

	e.mu.Lock()
	e.rate = rate
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(snap)
	return nil
}

// ExchangeRate returns the current rate; zero until one was set.
func (e *Engine) ExchangeRate() decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rate
}

// Assets returns a copy of the tracked assets in insertion order.
func (e *Engine) Assets() []domain.Asset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.copyAssets()
}

// Asset returns a copy of one asset.
func (e *Engine) Asset(symbol string) (domain.Asset, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[symbol]
	if !ok {
		return domain.Asset{}, false
	}
	return e.assets[i].Clone(), true
}

// Symbols returns the tracked symbols, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.assets))
	for _, a := range e.assets {
		out = append(out, a.Symbol)
	}
	sort.Strings(out)
	return out
}

// CostBasis returns the average purchase price over the recorded lots.
func (e *Engine) CostBasis(symbol string) (decimal.Decimal, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[symbol]
	if !ok {
		return decimal.Zero, false
	}
	var cost, qty decimal.Decimal
	for _, lot := range e.assets[i].PurchaseHistory {
		cost = cost.Add(lot.Cost())
		qty = qty.Add(lot.Quantity)
	}
	if qty.IsZero() {
		return decimal.Zero, false
	}
	return cost.Div(qty), true
}

// DailyGainLoss returns today's gain of the position in display currency.
// Zero while the exchange rate or the daily close is unknown.
func (e *Engine) DailyGainLoss(symbol string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[symbol]
	if !ok {
		return decimal.Zero
	}
	return e.dailyLocked(e.assets[i]).GainLoss
}

// DailyGainLossPercent returns the price change since the daily close, in percent.
func (e *Engine) DailyGainLossPercent(symbol string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	i, ok := e.index[symbol]
	if !ok {
		return decimal.Zero
	}
	return e.dailyLocked(e.assets[i]).Percent
}

// Totals returns the portfolio aggregates in display currency.
func (e *Engine) Totals() domain.PortfolioTotals {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalsLocked()
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() domain.PortfolioSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) add(a domain.Asset) error {
	if a.Symbol == "" {
		return errors.Wrap(domain.ErrInvalidArgument, "empty asset symbol")
	}
	if _, ok := e.index[a.Symbol]; ok {
		return errors.Wrapf(domain.ErrInvalidArgument, "asset %s already tracked", a.Symbol)
	}
	a = a.Clone()
	a.Value = a.Amount.Mul(a.CurrentPrice)
	e.index[a.Symbol] = len(e.assets)
	e.assets = append(e.assets, a)
	return nil
}

func (e *Engine) reindex() {
	e.index = make(map[string]int, len(e.assets))
	for i, a := range e.assets {
		e.index[a.Symbol] = i
	}
}

func (e *Engine) scale(symbol string) decimal.Decimal {
	if s, ok := e.scales[symbol]; ok && s.IsPositive() {
		return s
	}
	return decimal.NewFromInt(1)
}

func (e *Engine) copyAssets() []domain.Asset {
	out := make([]domain.Asset, len(e.assets))
	for i, a := range e.assets {
		out[i] = a.Clone()
	}
	return out
}

func (e *Engine) dailyLocked(a domain.Asset) domain.DailyChange {
	var d domain.DailyChange
	closePrice, ok := e.dailyClose[a.Symbol]
	if !ok || closePrice.IsZero() {
		return d
	}
	d.Percent = a.CurrentPrice.Sub(closePrice).Div(closePrice).Mul(hundred)
	if !e.rate.IsZero() {
		d.GainLoss = a.CurrentPrice.Sub(closePrice).Mul(a.Amount).Mul(e.rate)
	}
	return d
}

func (e *Engine) totalsLocked() domain.PortfolioTotals {
	var value, invested decimal.Decimal
	for _, a := range e.assets {
		value = value.Add(a.Value)
		invested = invested.Add(a.Investment)
	}

	t := domain.PortfolioTotals{
		Balance:  value.Mul(e.rate),
		Invested: invested.Mul(e.rate),
	}
	t.ProfitLoss = t.Balance.Sub(t.Invested)
	if !t.Invested.IsZero() {
		t.ProfitLossPercent = t.ProfitLoss.Div(t.Invested).Mul(hundred)
	}
	return t
}

func (e *Engine) snapshotLocked() domain.PortfolioSnapshot {
	daily := make(map[string]domain.DailyChange, len(e.dailyClose))
	for _, a := range e.assets {
		if _, ok := e.dailyClose[a.Symbol]; ok {
			daily[a.Symbol] = e.dailyLocked(a)
		}
	}

	return domain.PortfolioSnapshot{
		Timestamp:    e.now(),
		Assets:       e.copyAssets(),
		Daily:        daily,
		Totals:       e.totalsLocked(),
		ExchangeRate: e.rate,
	}
}

func (e *Engine) publish(s domain.PortfolioSnapshot) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(s)
}
