package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/deskfolio/internal/domain"
)

type seedLot struct {
	price, quantity string
	date            string // dd-mm-yyyy
}

type seedAsset struct {
	symbol, name       string
	amount, investment string
	lots               []seedLot
}

var seed = []seedAsset{
	{symbol: "ETHUSDT", name: "Ethereum", amount: "0.3283", investment: "1078.64", lots: []seedLot{
		{"3586.8042", "0.058894", "03-12-2024"},
		{"3140.7970", "0.031839", "19-11-2024"},
		{"3807.4870", "0.012428", "03-06-2024"},
		{"3109.4870", "0.034147", "06-05-2024"},
		{"3433.2930", "0.059706", "24-12-2024"},
		{"3433.6970", "0.059842", "28-12-2024"},
		{"2846.6547", "0.071472", "04-02-2025"},
	}},
	{symbol: "HBARUSDT", name: "Hedera Hashgraph", amount: "3240.98321", investment: "592.62", lots: []seedLot{
		{"0.12887", "797.237526", "14-03-2024"},
		{"0.07128", "398.989899", "31-01-2024"},
		{"0.09040", "603.207965", "27-12-2023"},
		{"0.29292", "695.889662", "18-01-2025"},
		{"0.27235", "745.658160", "18-01-2025"},
	}},
	{symbol: "RENDERUSDT", name: "Render Token", amount: "85.157", investment: "573.22", lots: []seedLot{
		{"8.196", "6.100536", "19-11-2024"},
		{"7.749", "8.527552", "01-07-2024"},
		{"10.179", "4.912074", "02-04-2024"},
		{"9.438", "21.949152", "13-12-2024"},
		{"4.580", "43.668122", "17-02-2024"},
	}},
	{symbol: "LINKUSDT", name: "Chainlink", amount: "3.3574", investment: "60.00", lots: []seedLot{
		{"17.8710", "3.357395", "03-06-2024"},
	}},
	{symbol: "POLUSDT", name: "Polygon", amount: "68.86120", investment: "57.59", lots: []seedLot{
		{"0.83632", "68.861201", "18-11-2023"},
	}},
	{symbol: "PEPEUSDT", name: "Pepe in millions", amount: "2.856793", investment: "58.42", lots: []seedLot{
		{"20.453", "2.856793", "19-11-2024"},
	}},
	{symbol: "FETUSDT", name: "Fetch AI", amount: "215.12776", investment: "259.55", lots: []seedLot{
		{"1.42954", "74.375135", "08-11-2024"},
		{"2.92758", "19.101101", "02-04-2024"},
		{"0.79995", "121.65152", "17-02-2025"},
	}},
	{symbol: "UNIUSDT", name: "Uniswap", amount: "11.5494", investment: "155.23", lots: []seedLot{
		{"13.5494", "11.457333", "17-02-2024"},
	}},
	{symbol: "BERAUSDT", name: "BeraChain", amount: "7.882789", investment: "53.11", lots: []seedLot{
		{"6.739", "7.882789", "05-03-2024"},
	}},
}

// DefaultAssets returns the built-in portfolio used when the config supplies none.
func DefaultAssets() []domain.Asset {
	out := make([]domain.Asset, 0, len(seed))
	for _, s := range seed {
		a := domain.Asset{
			Symbol:     s.symbol,
			Name:       s.name,
			Amount:     decimal.RequireFromString(s.amount),
			Investment: decimal.RequireFromString(s.investment),
		}
		for _, l := range s.lots {
			date, err := time.Parse("02-01-2006", l.date)
			if err != nil {
				panic(err)
			}
			a.PurchaseHistory = append(a.PurchaseHistory, domain.Lot{
				Price:    decimal.RequireFromString(l.price),
				Quantity: decimal.RequireFromString(l.quantity),
				Date:     date,
			})
		}
		out = append(out, a)
	}
	return out
}
