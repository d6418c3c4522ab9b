package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Pair
		wantErr bool
	}{
		{name: "upper case", in: "BTC_USDT", want: Pair{From: "BTC", To: "USDT"}},
		{name: "lower case with spaces", in: " eth_usdt ", want: Pair{From: "ETH", To: "USDT"}},
		{name: "no separator", in: "BTCUSDT", wantErr: true},
		{name: "empty quote", in: "BTC_", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePair(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.From+tt.want.To, got.Symbol())
		})
	}
}

func TestValidateCandles(t *testing.T) {
	ok := []Candle{{Time: 1}, {Time: 2}, {Time: 5}}
	assert.NoError(t, ValidateCandles(ok))
	assert.NoError(t, ValidateCandles(nil))

	dup := []Candle{{Time: 1}, {Time: 1}}
	assert.ErrorIs(t, ValidateCandles(dup), ErrInvalidArgument)

	backwards := []Candle{{Time: 3}, {Time: 2}}
	assert.ErrorIs(t, ValidateCandles(backwards), ErrInvalidArgument)
}

func TestTimeframe_Duration(t *testing.T) {
	tests := []struct {
		tf   Timeframe
		want time.Duration
	}{
		{Timeframe1m, time.Minute},
		{Timeframe15m, 15 * time.Minute},
		{Timeframe4h, 4 * time.Hour},
		{Timeframe1d, 24 * time.Hour},
		{Timeframe("1w"), 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.tf.String(), func(t *testing.T) {
			got, err := tt.tf.Duration()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Timeframe("x").Duration()
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = Timeframe("3y").Duration()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.True(t, Timeframe1h.IsValid())
	assert.False(t, Timeframe("2h").IsValid())
}

func TestErrNoSymbolsIsInvalidArgument(t *testing.T) {
	assert.ErrorIs(t, ErrNoSymbols, ErrInvalidArgument)
}

func TestDrawingLine_CloneIsDeep(t *testing.T) {
	line := DrawingLine{ID: "line-1", Points: []DrawingPoint{{Time: 1, Price: 2}, {Time: 3, Price: 4}}}
	clone := line.Clone()
	clone.Points[0].Price = 100

	assert.Equal(t, 2.0, line.Points[0].Price)
}

func TestAsset_PriceDirection(t *testing.T) {
	a := Asset{CurrentPrice: decimal.NewFromInt(10)}
	assert.Equal(t, 0, a.PriceDirection())

	a.PreviousPrice = decimal.NewFromInt(9)
	assert.Equal(t, 1, a.PriceDirection())

	a.PreviousPrice = decimal.NewFromInt(11)
	assert.Equal(t, -1, a.PriceDirection())
}

func TestLot_Cost(t *testing.T) {
	lot := Lot{Price: decimal.RequireFromString("2.5"), Quantity: decimal.NewFromInt(4)}
	assert.True(t, decimal.NewFromInt(10).Equal(lot.Cost()))
}

func TestTheme_Toggle(t *testing.T) {
	assert.Equal(t, ThemeDark, ThemeLight.Toggle())
	assert.Equal(t, ThemeLight, ThemeDark.Toggle())
	assert.Equal(t, ThemeDark, Theme("").Toggle())
	assert.False(t, Theme("").IsValid())
}
