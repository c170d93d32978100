package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gum798/CoinCompass/utilities"
)

func newTestLedger(t *testing.T, startingCash float64, prices map[string]float64) *Ledger {
	t.Helper()
	quote := func(coinID string) (float64, bool) {
		p, ok := prices[coinID]
		return p, ok
	}
	l, err := NewLedger(utilities.SimulationConfig{StartingCash: startingCash}, quote, nil, utilities.NewLogger(utilities.Error))
	require.NoError(t, err)
	return l
}

func TestLedgerBuyThenSellHalf(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 10000, prices)

	order, err := l.Buy("bitcoin", 1000)
	require.NoError(t, err)
	assert.Equal(t, SideBuy, order.Side)
	assert.InDelta(t, 0.02, order.Quantity, 1e-12)
	assert.InDelta(t, 9000, l.CashBalance(), 1e-9)

	positions := l.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "bitcoin", positions[0].CoinID)
	assert.InDelta(t, 0.02, positions[0].Quantity, 1e-12)
	assert.InDelta(t, 50000, positions[0].AveragePrice, 1e-9)

	prices["bitcoin"] = 60000
	order, err = l.Sell("bitcoin", 50)
	require.NoError(t, err)
	assert.Equal(t, SideSell, order.Side)
	assert.InDelta(t, 600, order.Total, 1e-9)
	assert.InDelta(t, 9600, l.CashBalance(), 1e-9)

	positions = l.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.01, positions[0].Quantity, 1e-12)
}

func TestLedgerWeightedAverageCost(t *testing.T) {
	prices := map[string]float64{"ethereum": 2000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Buy("ethereum", 2000) // 1.0 @ 2000
	require.NoError(t, err)

	prices["ethereum"] = 4000
	_, err = l.Buy("ethereum", 2000) // 0.5 @ 4000
	require.NoError(t, err)

	positions := l.Positions()
	require.Len(t, positions, 1)
	// 4000 invested over 1.5 units.
	assert.InDelta(t, 1.5, positions[0].Quantity, 1e-12)
	assert.InDelta(t, 4000.0/1.5, positions[0].AveragePrice, 1e-9)
	assert.InDelta(t, 4000, positions[0].TotalInvested, 1e-9)
}

func TestLedgerSellFullPositionRemovesIt(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Buy("bitcoin", 1000)
	require.NoError(t, err)

	_, err = l.Sell("bitcoin", 100)
	require.NoError(t, err)
	assert.Empty(t, l.Positions())
	assert.InDelta(t, 10000, l.CashBalance(), 1e-9)

	_, err = l.Sell("bitcoin", 50)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestLedgerBuyRejections(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 500, prices)

	_, err := l.Buy("bitcoin", 1000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = l.Buy("bitcoin", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.Buy("bitcoin", -100)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = l.Buy("dogecoin", 100)
	assert.ErrorIs(t, err, ErrPriceUnavailable)

	// Nothing changed.
	assert.InDelta(t, 500, l.CashBalance(), 1e-9)
	assert.Empty(t, l.Positions())
	assert.Empty(t, l.Orders(0))
}

func TestLedgerSellRejections(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Sell("bitcoin", 50)
	assert.ErrorIs(t, err, ErrNoPosition)

	_, err = l.Buy("bitcoin", 1000)
	require.NoError(t, err)

	_, err = l.Sell("bitcoin", 0)
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = l.Sell("bitcoin", 101)
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	delete(prices, "bitcoin")
	_, err = l.Sell("bitcoin", 50)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestLedgerFeesReduceProceeds(t *testing.T) {
	prices := map[string]float64{"bitcoin": 10000}
	quote := func(coinID string) (float64, bool) {
		p, ok := prices[coinID]
		return p, ok
	}
	l, err := NewLedger(utilities.SimulationConfig{StartingCash: 10000, FeeRate: 0.01}, quote, nil, utilities.NewLogger(utilities.Error))
	require.NoError(t, err)

	_, err = l.Buy("bitcoin", 1000)
	require.NoError(t, err)
	// 1000 spent on coins plus a $10 fee.
	assert.InDelta(t, 8990, l.CashBalance(), 1e-9)

	_, err = l.Sell("bitcoin", 100)
	require.NoError(t, err)
	// 1000 gross back minus $10 fee.
	assert.InDelta(t, 9980, l.CashBalance(), 1e-9)
}

func TestLedgerResetIsIdempotent(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Buy("bitcoin", 1000)
	require.NoError(t, err)

	require.NoError(t, l.Reset())
	assert.InDelta(t, 10000, l.CashBalance(), 1e-9)
	assert.Empty(t, l.Positions())
	assert.Empty(t, l.Orders(0))

	require.NoError(t, l.Reset())
	assert.InDelta(t, 10000, l.CashBalance(), 1e-9)
}

func TestLedgerOrdersNewestFirst(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000, "ethereum": 2000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Buy("bitcoin", 1000)
	require.NoError(t, err)
	_, err = l.Buy("ethereum", 500)
	require.NoError(t, err)
	_, err = l.Sell("bitcoin", 50)
	require.NoError(t, err)

	orders := l.Orders(0)
	require.Len(t, orders, 3)
	assert.Equal(t, SideSell, orders[0].Side)
	assert.Equal(t, "ethereum", orders[1].CoinID)
	assert.Equal(t, "bitcoin", orders[2].CoinID)

	limited := l.Orders(2)
	require.Len(t, limited, 2)
	assert.Equal(t, orders[0].ID, limited[0].ID)
}

func TestLedgerValuation(t *testing.T) {
	prices := map[string]float64{"bitcoin": 50000}
	l := newTestLedger(t, 10000, prices)

	_, err := l.Buy("bitcoin", 1000)
	require.NoError(t, err)

	prices["bitcoin"] = 60000
	v := l.Valuate()
	assert.InDelta(t, 9000, v.CashBalance, 1e-9)
	assert.InDelta(t, 1200, v.PositionsValue, 1e-9) // 0.02 * 60000
	assert.InDelta(t, 10200, v.TotalValue, 1e-9)
	assert.InDelta(t, 200, v.ProfitLoss, 1e-9)
	assert.InDelta(t, 2.0, v.ProfitLossPercent, 1e-9)
}
