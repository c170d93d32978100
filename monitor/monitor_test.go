package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gum798/CoinCompass/dataprovider"
	"github.com/gum798/CoinCompass/indicator"
	"github.com/gum798/CoinCompass/utilities"
)

// fakeProvider serves scripted quotes and counts fetches.
type fakeProvider struct {
	quotes  map[string]dataprovider.Quote
	history []dataprovider.PricePoint
	err     error
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetQuotes(ctx context.Context, ids []string) (map[string]dataprovider.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func (f *fakeProvider) GetPriceHistory(ctx context.Context, id string, days int) ([]dataprovider.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

// fakeClock advances a fixed step per tick.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordingSink captures every published snapshot and alert.
type recordingSink struct {
	snapshots []Snapshot
	alerts    []Alert
}

func (s *recordingSink) PublishSnapshot(snap Snapshot) { s.snapshots = append(s.snapshots, snap) }
func (s *recordingSink) PublishAlert(a Alert)          { s.alerts = append(s.alerts, a) }

func quotesAt(price float64) map[string]dataprovider.Quote {
	return map[string]dataprovider.Quote{
		"bitcoin": {CoinID: "bitcoin", Price: price, Volume24h: 1e9, Source: "fake", LastUpdated: time.Now()},
	}
}

func testConfig() utilities.MonitoringConfig {
	return utilities.MonitoringConfig{
		TickIntervalSec:  30,
		FetchIntervalSec: 1800,
		InitialDelaySec:  0,
		APICallsEnabled:  true,
		Coins:            []string{"bitcoin"},
		PrimeHistoryDays: 30,
		FetchTimeoutSec:  10,
	}
}

func newTestMonitor(cfg utilities.MonitoringConfig, provider dataprovider.DataProvider, clock *fakeClock, opts Options) *Monitor {
	opts.Now = clock.Now
	return New(cfg, indicator.DefaultConfig(), provider, utilities.NewLogger(utilities.Error), opts)
}

// With a 30s tick and 1800s fetch interval, ticks 2..60 after the first
// fetch cover 1770s of elapsed time and must not fetch; the tick at 1800s
// elapsed fetches exactly once.
func TestFetchIntervalGatesUpstreamCalls(t *testing.T) {
	provider := &fakeProvider{quotes: quotesAt(50000)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(testConfig(), provider, clock, Options{})

	ctx := context.Background()
	m.Tick(ctx)
	require.Equal(t, 1, provider.calls)

	for i := 0; i < 59; i++ {
		clock.Advance(30 * time.Second)
		m.Tick(ctx)
	}
	assert.Equal(t, 1, provider.calls, "no fetch before the interval elapses")

	clock.Advance(30 * time.Second) // 1800s since the first fetch
	m.Tick(ctx)
	assert.Equal(t, 2, provider.calls, "exactly one fetch once the interval elapses")
}

func TestTicksWithoutFetchRepublishSnapshot(t *testing.T) {
	provider := &fakeProvider{quotes: quotesAt(50000)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(testConfig(), provider, clock, Options{})
	sink := &recordingSink{}
	m.AddSink(sink)

	ctx := context.Background()
	m.Tick(ctx)
	clock.Advance(30 * time.Second)
	m.Tick(ctx)

	require.Len(t, sink.snapshots, 2)
	assert.True(t, sink.snapshots[0].Live)
	assert.False(t, sink.snapshots[1].Live)
	// The snapshot itself is unchanged; only the publish metadata moves.
	assert.Equal(t, sink.snapshots[0].FetchedAt, sink.snapshots[1].FetchedAt)
	assert.Equal(t, sink.snapshots[0].Prices, sink.snapshots[1].Prices)
	assert.True(t, sink.snapshots[1].PublishedAt.After(sink.snapshots[0].PublishedAt))
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	provider := &fakeProvider{quotes: quotesAt(50000)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(testConfig(), provider, clock, Options{})

	ctx := context.Background()
	m.Tick(ctx)
	firstFetch := m.Snapshot().FetchedAt

	provider.err = errors.New("quota exceeded")
	clock.Advance(1800 * time.Second)
	m.Tick(ctx)

	snap := m.Snapshot()
	assert.True(t, snap.FetchFailed)
	assert.False(t, snap.Live)
	assert.Equal(t, firstFetch, snap.FetchedAt, "failed fetch must not advance the fetch timestamp")
	require.Contains(t, snap.Prices, "bitcoin")
	assert.Equal(t, 50000.0, snap.Prices["bitcoin"].Price, "stale prices keep serving")

	// Recovery clears the flag.
	provider.err = nil
	provider.quotes = quotesAt(51000)
	clock.Advance(1800 * time.Second)
	m.Tick(ctx)

	snap = m.Snapshot()
	assert.False(t, snap.FetchFailed)
	assert.Equal(t, 51000.0, snap.Prices["bitcoin"].Price)
}

func TestInitialDelayDefersFirstFetch(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDelaySec = 60
	provider := &fakeProvider{quotes: quotesAt(50000)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(cfg, provider, clock, Options{})

	ctx := context.Background()
	m.mu.Lock()
	m.startedAt = clock.Now()
	m.mu.Unlock()

	clock.Advance(30 * time.Second)
	m.Tick(ctx)
	assert.Equal(t, 0, provider.calls, "no fetch inside the initial delay window")

	clock.Advance(30 * time.Second)
	m.Tick(ctx)
	assert.Equal(t, 1, provider.calls)
}

func TestAPICallsDisabledNeverFetches(t *testing.T) {
	cfg := testConfig()
	cfg.APICallsEnabled = false
	provider := &fakeProvider{quotes: quotesAt(50000)}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(cfg, provider, clock, Options{})
	sink := &recordingSink{}
	m.AddSink(sink)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.Tick(ctx)
		clock.Advance(1800 * time.Second)
	}
	assert.Equal(t, 0, provider.calls)
	assert.Len(t, sink.snapshots, 5, "snapshots keep publishing even with fetching disabled")
}

func TestIndicatorsRecomputedOnFetch(t *testing.T) {
	provider := &fakeProvider{quotes: quotesAt(50000)}
	for i := 0; i < 40; i++ {
		provider.history = append(provider.history, dataprovider.PricePoint{
			Timestamp: int64(1_699_000_000 + i*86400),
			Price:     40000 + float64(i)*100,
		})
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := newTestMonitor(testConfig(), provider, clock, Options{})

	ctx := context.Background()
	m.Prime(ctx)
	require.Len(t, m.PriceSeries("bitcoin"), 40)

	m.Tick(ctx)

	snap := m.Snapshot()
	require.Contains(t, snap.Indicators, "bitcoin")
	set := snap.Indicators["bitcoin"]
	assert.True(t, set.RSI.Valid)
	assert.True(t, set.MACD.Valid)
	assert.True(t, set.BollMiddle.Valid)
	require.Contains(t, snap.Signals, "bitcoin")
	assert.NotEmpty(t, snap.Signals["bitcoin"].Action)

	// The fetched quote extends the series.
	assert.Len(t, m.PriceSeries("bitcoin"), 41)
}

func TestAlertDetection(t *testing.T) {
	cfg := utilities.AlertsConfig{
		Enabled:                      true,
		PriceChangeThresholdPercent:  5,
		VolumeChangeThresholdPercent: 50,
	}
	d := NewAlertDetector(cfg, nil, utilities.NewLogger(utilities.Error))

	prev := map[string]dataprovider.Quote{
		"bitcoin":  {CoinID: "bitcoin", Price: 50000, Volume24h: 1e9},
		"ethereum": {CoinID: "ethereum", Price: 2000, Volume24h: 5e8},
	}

	// First fetch has no baseline.
	assert.Empty(t, d.Detect(nil, prev))

	curr := map[string]dataprovider.Quote{
		"bitcoin":  {CoinID: "bitcoin", Price: 53000, Volume24h: 1e9},   // +6% price
		"ethereum": {CoinID: "ethereum", Price: 2010, Volume24h: 8e8},   // +60% volume
	}
	alerts := d.Detect(prev, curr)
	require.Len(t, alerts, 2)

	byType := map[string]Alert{}
	for _, a := range alerts {
		byType[a.Type] = a
	}
	require.Contains(t, byType, AlertPriceChange)
	assert.Equal(t, "bitcoin", byType[AlertPriceChange].CoinID)
	assert.InDelta(t, 6.0, byType[AlertPriceChange].ChangePercent, 1e-9)
	require.Contains(t, byType, AlertVolumeChange)
	assert.Equal(t, "ethereum", byType[AlertVolumeChange].CoinID)

	// Below threshold: quiet.
	assert.Empty(t, d.Detect(curr, curr))
}
