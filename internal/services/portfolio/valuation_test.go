package portfolio

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []domain.PortfolioSnapshot
}

func (p *recordingPublisher) Publish(s domain.PortfolioSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, s)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.snaps)
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	assets := []domain.Asset{
		{Symbol: "ETHUSDT", Name: "Ethereum", Amount: d("2"), Investment: d("5000")},
		{Symbol: "PEPEUSDT", Name: "Pepe in millions", Amount: d("3"), Investment: d("60")},
	}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	e, err := NewEngine(zap.NewNop(), assets, opts...)
	require.NoError(t, err)
	return e, pub
}

func TestUpdatePrice(t *testing.T) {
	e, pub := newTestEngine(t)

	e.UpdatePrice("ETHUSDT", d("3000"))
	e.UpdatePrice("ETHUSDT", d("3100"))

	eth, ok := e.Asset("ETHUSDT")
	require.True(t, ok)
	assert.True(t, eth.CurrentPrice.Equal(d("3100")))
	assert.True(t, eth.PreviousPrice.Equal(d("3000")))
	assert.True(t, eth.Value.Equal(d("6200")))
	assert.Equal(t, 1, eth.PriceDirection())
	assert.Equal(t, 2, pub.count())
}

func TestUpdatePrice_AppliesScale(t *testing.T) {
	e, _ := newTestEngine(t)

	e.UpdatePrice("PEPEUSDT", d("0.00002"))

	pepe, ok := e.Asset("PEPEUSDT")
	require.True(t, ok)
	assert.True(t, pepe.CurrentPrice.Equal(d("20")), pepe.CurrentPrice.String())
	assert.True(t, pepe.Value.Equal(d("60")))
}

func TestUpdatePrice_UnknownSymbolIgnored(t *testing.T) {
	e, pub := newTestEngine(t)
	before := e.Assets()

	e.UpdatePrice("DOGEUSDT", d("0.1"))

	assert.Equal(t, before, e.Assets())
	assert.Equal(t, 0, pub.count())
}

func TestWithScales(t *testing.T) {
	e, _ := newTestEngine(t, WithScales(map[string]decimal.Decimal{"ETHUSDT": d("0.001")}))

	e.UpdatePrice("ETHUSDT", d("3000"))
	e.UpdatePrice("PEPEUSDT", d("0.00002"))

	eth, _ := e.Asset("ETHUSDT")
	pepe, _ := e.Asset("PEPEUSDT")
	assert.True(t, eth.CurrentPrice.Equal(d("3")))
	assert.True(t, pepe.CurrentPrice.Equal(d("0.00002")))
}

func TestDailyGainLoss(t *testing.T) {
	e, _ := newTestEngine(t)
	e.UpdatePrice("ETHUSDT", d("3300"))
	e.SetDailyClose("ETHUSDT", d("3000"))

	// no exchange rate yet
	assert.True(t, e.DailyGainLoss("ETHUSDT").IsZero())
	assert.True(t, e.DailyGainLossPercent("ETHUSDT").Equal(d("10")))

	require.NoError(t, e.SetExchangeRate(d("0.5")))
	assert.True(t, e.DailyGainLoss("ETHUSDT").Equal(d("300")), e.DailyGainLoss("ETHUSDT").String())

	// no daily close
	assert.True(t, e.DailyGainLoss("PEPEUSDT").IsZero())
	assert.True(t, e.DailyGainLoss("DOGEUSDT").IsZero())

	snap := e.Snapshot()
	require.Contains(t, snap.Daily, "ETHUSDT")
	assert.NotContains(t, snap.Daily, "PEPEUSDT")
	assert.True(t, snap.Daily["ETHUSDT"].GainLoss.Equal(d("300")))
}

func TestDailyGainLoss_ScaledClose(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.SetExchangeRate(d("1")))
	e.UpdatePrice("PEPEUSDT", d("0.000022"))
	e.SetDailyClose("PEPEUSDT", d("0.00002"))

	assert.True(t, e.DailyGainLoss("PEPEUSDT").Equal(d("6")), e.DailyGainLoss("PEPEUSDT").String())
	assert.True(t, e.DailyGainLossPercent("PEPEUSDT").Equal(d("10")))
}

func TestTotals(t *testing.T) {
	e, _ := newTestEngine(t)
	e.UpdatePrice("ETHUSDT", d("3000"))
	e.UpdatePrice("PEPEUSDT", d("0.00002"))

	assert.Equal(t, domain.PortfolioTotals{}, zeroed(e.Totals()))

	require.NoError(t, e.SetExchangeRate(d("0.5")))
	totals := e.Totals()
	assert.True(t, totals.Balance.Equal(d("3030")))
	assert.True(t, totals.Invested.Equal(d("2530")))
	assert.True(t, totals.ProfitLoss.Equal(d("500")))
	assert.Equal(t, "19.76", totals.ProfitLossPercent.StringFixed(2))
}

func zeroed(t domain.PortfolioTotals) domain.PortfolioTotals {
	if t.Balance.IsZero() && t.Invested.IsZero() && t.ProfitLoss.IsZero() && t.ProfitLossPercent.IsZero() {
		return domain.PortfolioTotals{}
	}
	return t
}

func TestSetExchangeRate_RejectsNonPositive(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.ErrorIs(t, e.SetExchangeRate(decimal.Zero), domain.ErrInvalidArgument)
	assert.ErrorIs(t, e.SetExchangeRate(d("-1")), domain.ErrInvalidArgument)
}

func TestAddLot(t *testing.T) {
	e, _ := newTestEngine(t)
	e.UpdatePrice("ETHUSDT", d("3000"))

	lot := domain.Lot{Price: d("2500"), Quantity: d("0.5"), Date: time.Date(2025, 2, 4, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, e.AddLot("ETHUSDT", lot))

	eth, _ := e.Asset("ETHUSDT")
	assert.True(t, eth.Amount.Equal(d("2.5")))
	assert.True(t, eth.Investment.Equal(d("6250")))
	assert.True(t, eth.Value.Equal(d("7500")))
	require.Len(t, eth.PurchaseHistory, 1)

	basis, ok := e.CostBasis("ETHUSDT")
	require.True(t, ok)
	assert.True(t, basis.Equal(d("2500")))

	assert.ErrorIs(t, e.AddLot("DOGEUSDT", lot), domain.ErrInvalidArgument)
	assert.ErrorIs(t, e.AddLot("ETHUSDT", domain.Lot{Price: d("1")}), domain.ErrInvalidArgument)
}

func TestAddRemoveAsset(t *testing.T) {
	e, _ := newTestEngine(t)

	require.NoError(t, e.AddAsset(domain.Asset{Symbol: "BERAUSDT", Name: "BeraChain", Amount: d("1")}))
	assert.ErrorIs(t, e.AddAsset(domain.Asset{Symbol: "BERAUSDT"}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, e.AddAsset(domain.Asset{}), domain.ErrInvalidArgument)
	assert.Equal(t, []string{"BERAUSDT", "ETHUSDT", "PEPEUSDT"}, e.Symbols())

	assert.True(t, e.RemoveAsset("ETHUSDT"))
	assert.False(t, e.RemoveAsset("ETHUSDT"))
	assert.Equal(t, []string{"BERAUSDT", "PEPEUSDT"}, e.Symbols())

	// index stays consistent after removal
	e.UpdatePrice("BERAUSDT", d("7"))
	bera, _ := e.Asset("BERAUSDT")
	assert.True(t, bera.Value.Equal(d("7")))
}

func TestAssetsReturnsCopy(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.AddLot("ETHUSDT", domain.Lot{Price: d("1"), Quantity: d("1")}))

	assets := e.Assets()
	assets[0].PurchaseHistory[0].Price = d("999")
	assets[0].Amount = d("0")

	eth, _ := e.Asset("ETHUSDT")
	assert.True(t, eth.Amount.Equal(d("3")))
	assert.True(t, eth.PurchaseHistory[0].Price.Equal(d("1")))
}

func TestSnapshotUsesClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e, pub := newTestEngine(t, WithClock(func() time.Time { return at }))

	e.UpdatePrice("ETHUSDT", d("1"))
	require.Equal(t, 1, pub.count())
	assert.Equal(t, at, pub.snaps[0].Timestamp)
	assert.Len(t, pub.snaps[0].Assets, 2)
}

func TestDefaultAssets(t *testing.T) {
	assets := DefaultAssets()
	require.Len(t, assets, 9)

	var invested decimal.Decimal
	for _, a := range assets {
		invested = invested.Add(a.Investment)
		assert.NotEmpty(t, a.PurchaseHistory, a.Symbol)
	}
	assert.True(t, invested.Equal(d("2888.38")), invested.String())

	e, err := NewEngine(zap.NewNop(), assets)
	require.NoError(t, err)
	assert.Len(t, e.Symbols(), 9)
}
