package dataprovider

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gum798/CoinCompass/utilities"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	cache, err := NewSQLiteCache(utilities.DatabaseConfig{DBPath: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestPriceHistoryRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	points := []PricePoint{
		{Timestamp: 100, Price: 1.0},
		{Timestamp: 300, Price: 3.0},
		{Timestamp: 200, Price: 2.0},
	}
	require.NoError(t, cache.SavePricePoints("bitcoin", points))

	got, err := cache.GetPriceHistory("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Ascending by timestamp regardless of insert order.
	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.Equal(t, int64(300), got[2].Timestamp)

	// Duplicate timestamps replace, not append.
	require.NoError(t, cache.SavePricePoint("bitcoin", PricePoint{Timestamp: 200, Price: 2.5}))
	got, err = cache.GetPriceHistory("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2.5, got[1].Price)

	// Limit keeps the most recent points.
	got, err = cache.GetPriceHistory("bitcoin", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(200), got[0].Timestamp)
	assert.Equal(t, int64(300), got[1].Timestamp)
}

func TestCleanupOldPrices(t *testing.T) {
	cache := newTestCache(t)

	now := time.Now()
	old := PricePoint{Timestamp: now.AddDate(0, 0, -10).Unix(), Price: 1}
	recent := PricePoint{Timestamp: now.Unix(), Price: 2}
	require.NoError(t, cache.SavePricePoint("bitcoin", old))
	require.NoError(t, cache.SavePricePoint("bitcoin", recent))

	require.NoError(t, cache.CleanupOldPrices(now.AddDate(0, 0, -1)))

	got, err := cache.GetPriceHistory("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Price)
}

func TestLedgerPersistenceRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	_, found, err := cache.LoadCashBalance()
	require.NoError(t, err)
	assert.False(t, found, "fresh database has no stored balance")

	require.NoError(t, cache.SaveCashBalance(9000))
	balance, found, err := cache.LoadCashBalance()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 9000.0, balance)

	pos := LedgerPosition{CoinID: "bitcoin", Quantity: 0.02, AveragePrice: 50000, TotalInvested: 1000}
	require.NoError(t, cache.SavePosition(pos))
	positions, err := cache.LoadPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, pos, positions[0])

	// Upsert by coin id.
	pos.Quantity = 0.01
	require.NoError(t, cache.SavePosition(pos))
	positions, err = cache.LoadPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 0.01, positions[0].Quantity)

	order := LedgerOrder{
		ID: "order-1", CoinID: "bitcoin", Side: "BUY",
		Quantity: 0.02, Price: 50000, Total: 1000, Status: "EXECUTED",
		CreatedAt: time.Unix(1_700_000_000, 0),
	}
	require.NoError(t, cache.SaveOrder(order))
	orders, err := cache.LoadOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.True(t, order.CreatedAt.Equal(orders[0].CreatedAt))

	require.NoError(t, cache.DeletePosition("bitcoin"))
	positions, err = cache.LoadPositions()
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestResetLedgerClearsEverything(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.SavePosition(LedgerPosition{CoinID: "bitcoin", Quantity: 1}))
	require.NoError(t, cache.SaveOrder(LedgerOrder{ID: "o1", CoinID: "bitcoin", Side: "BUY", Status: "EXECUTED", CreatedAt: time.Now()}))
	require.NoError(t, cache.SaveCashBalance(123))

	require.NoError(t, cache.ResetLedger(100000))

	positions, err := cache.LoadPositions()
	require.NoError(t, err)
	assert.Empty(t, positions)

	orders, err := cache.LoadOrders()
	require.NoError(t, err)
	assert.Empty(t, orders)

	balance, found, err := cache.LoadCashBalance()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 100000.0, balance)
}
