// Package monitor runs the background refresh scheduler: a short tick loop
// that periodically performs a real upstream fetch, keeps the shared price
// snapshot and indicator sets current, and rebroadcasts the latest state to
// subscribers on every tick.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gum798/CoinCompass/dataprovider"
	"github.com/gum798/CoinCompass/indicator"
	"github.com/gum798/CoinCompass/utilities"
)

// Snapshot is the immutable state published to subscribers each tick. It is
// replaced wholesale on a successful fetch and re-published unchanged on
// ticks in between.
type Snapshot struct {
	Prices      map[string]dataprovider.Quote  `json:"prices"`
	Indicators  map[string]indicator.Set       `json:"indicators"`
	Signals     map[string]indicator.Signal    `json:"signals"`
	Macro       *dataprovider.MacroData        `json:"macro,omitempty"`
	FetchedAt   time.Time                      `json:"fetched_at"`
	PublishedAt time.Time                      `json:"published_at"`
	Live        bool                           `json:"live"`         // this tick performed a real upstream fetch
	FetchFailed bool                           `json:"fetch_failed"` // the most recent fetch attempt failed
}

// Sink receives published snapshots and alerts. The web hub implements it.
type Sink interface {
	PublishSnapshot(snap Snapshot)
	PublishAlert(alert Alert)
}

// Notifier delivers alert text to an external channel (Discord webhook).
type Notifier interface {
	SendMessage(message string) error
}

// HistoryStore persists the per-coin price series across restarts.
// *dataprovider.SQLiteCache satisfies it.
type HistoryStore interface {
	SavePricePoint(coinID string, p dataprovider.PricePoint) error
	SavePricePoints(coinID string, points []dataprovider.PricePoint) error
	GetPriceHistory(coinID string, limit int) ([]dataprovider.PricePoint, error)
	CleanupOldPrices(olderThan time.Time) error
}

// maxHistoryPoints caps the in-memory series per coin; enough for the longest
// indicator window with generous headroom.
const maxHistoryPoints = 500

// Monitor owns the shared snapshot. All mutation happens under a single lock;
// readers get copies.
type Monitor struct {
	cfg      utilities.MonitoringConfig
	indCfg   indicator.Config
	provider dataprovider.DataProvider
	macro    dataprovider.MacroProvider
	store    HistoryStore // nil disables persistence
	logger   *utilities.Logger
	alerts   *AlertDetector
	now      func() time.Time

	macroRefresh time.Duration

	mu        sync.RWMutex
	snapshot  Snapshot
	history   map[string][]float64
	lastFetch time.Time
	startedAt time.Time

	fetching int32 // atomic; guards single fetch in flight

	sinkMu sync.Mutex
	sinks  []Sink
}

// Options carries the optional collaborators for New.
type Options struct {
	Macro    dataprovider.MacroProvider
	Store    HistoryStore
	Notifier Notifier
	Alerts   utilities.AlertsConfig
	// Now overrides the clock, for tests.
	Now func() time.Time
	// MacroRefresh is how often macro data is re-fetched. Zero means hourly.
	MacroRefresh time.Duration
}

// New creates a Monitor. The provider is required; everything in opts is optional.
func New(cfg utilities.MonitoringConfig, indCfg indicator.Config, provider dataprovider.DataProvider, logger *utilities.Logger, opts Options) *Monitor {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	macroRefresh := opts.MacroRefresh
	if macroRefresh <= 0 {
		macroRefresh = time.Hour
	}
	return &Monitor{
		cfg:          cfg,
		indCfg:       indCfg,
		provider:     provider,
		macro:        opts.Macro,
		store:        opts.Store,
		logger:       logger,
		alerts:       NewAlertDetector(opts.Alerts, opts.Notifier, logger),
		now:          now,
		macroRefresh: macroRefresh,
		history:      make(map[string][]float64),
	}
}

// AddSink registers a subscriber for snapshot and alert broadcasts.
func (m *Monitor) AddSink(s Sink) {
	m.sinkMu.Lock()
	m.sinks = append(m.sinks, s)
	m.sinkMu.Unlock()
}

// Snapshot returns a copy of the latest published snapshot.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// CurrentPrice returns the snapshot price for a coin, for the ledger's
// quote lookups.
func (m *Monitor) CurrentPrice(coinID string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.snapshot.Prices[coinID]
	if !ok {
		return 0, false
	}
	return q.Price, true
}

// PriceSeries returns a copy of the in-memory price series for a coin,
// oldest first.
func (m *Monitor) PriceSeries(coinID string) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series := m.history[coinID]
	out := make([]float64, len(series))
	copy(out, series)
	return out
}

// Coins returns the monitored coin ids.
func (m *Monitor) Coins() []string {
	out := make([]string, len(m.cfg.Coins))
	copy(out, m.cfg.Coins)
	return out
}

// Prime loads each coin's price series, preferring the local store and
// falling back to one historical fetch per missing coin. Call once before Run.
func (m *Monitor) Prime(ctx context.Context) {
	days := m.cfg.PrimeHistoryDays
	for _, coin := range m.cfg.Coins {
		if m.store != nil {
			points, err := m.store.GetPriceHistory(coin, maxHistoryPoints)
			if err != nil {
				m.logger.LogWarn("Monitor: could not load stored history for %s: %v", coin, err)
			} else if len(points) >= days {
				m.setHistory(coin, points)
				m.logger.LogInfo("Monitor: primed %s with %d stored points", coin, len(points))
				continue
			}
		}
		if !m.cfg.APICallsEnabled {
			continue
		}
		points, err := m.provider.GetPriceHistory(ctx, coin, days)
		if err != nil {
			m.logger.LogWarn("Monitor: could not prime history for %s: %v", coin, err)
			continue
		}
		m.setHistory(coin, points)
		if m.store != nil {
			if err := m.store.SavePricePoints(coin, points); err != nil {
				m.logger.LogWarn("Monitor: could not persist primed history for %s: %v", coin, err)
			}
		}
		m.logger.LogInfo("Monitor: primed %s with %d fetched points", coin, len(points))
	}
}

func (m *Monitor) setHistory(coin string, points []dataprovider.PricePoint) {
	series := make([]float64, 0, len(points))
	for _, p := range points {
		series = append(series, p.Price)
	}
	m.mu.Lock()
	m.history[coin] = series
	m.mu.Unlock()
}

// Run drives the tick loop until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.mu.Lock()
	m.startedAt = m.now()
	m.mu.Unlock()

	tick := time.Duration(m.cfg.TickIntervalSec) * time.Second
	m.logger.LogInfo("Monitor: starting scheduler (tick %s, fetch interval %ds, initial delay %ds)",
		tick, m.cfg.FetchIntervalSec, m.cfg.InitialDelaySec)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.LogInfo("Monitor: scheduler stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one scheduler cycle: fetch if due, then publish the latest
// snapshot to all sinks. Exposed so tests can drive the scheduler with an
// injected clock instead of a real ticker.
func (m *Monitor) Tick(ctx context.Context) {
	now := m.now()

	live := false
	if m.fetchDue(now) {
		// At most one fetch in flight; a tick arriving while a fetch is
		// outstanding is dropped, not queued.
		if atomic.CompareAndSwapInt32(&m.fetching, 0, 1) {
			live = m.fetch(ctx, now)
			atomic.StoreInt32(&m.fetching, 0)
		}
	}

	m.mu.Lock()
	m.snapshot.PublishedAt = now
	m.snapshot.Live = live
	snap := m.snapshot
	m.mu.Unlock()

	m.publish(snap)
}

// fetchDue reports whether a real upstream fetch should happen at `now`.
func (m *Monitor) fetchDue(now time.Time) bool {
	if !m.cfg.APICallsEnabled {
		return false
	}

	m.mu.RLock()
	startedAt := m.startedAt
	lastFetch := m.lastFetch
	m.mu.RUnlock()

	if !startedAt.IsZero() && now.Sub(startedAt) < time.Duration(m.cfg.InitialDelaySec)*time.Second {
		return false
	}
	if lastFetch.IsZero() {
		return true
	}
	return now.Sub(lastFetch) >= time.Duration(m.cfg.FetchIntervalSec)*time.Second
}

// fetch performs one upstream refresh. On success the snapshot is replaced
// wholesale and the fetch timestamp advances; on failure the previous
// snapshot and timestamp stay untouched and only the failure flag is raised.
func (m *Monitor) fetch(ctx context.Context, now time.Time) bool {
	timeout := time.Duration(m.cfg.FetchTimeoutSec) * time.Second
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	quotes, err := m.provider.GetQuotes(fetchCtx, m.cfg.Coins)
	if err != nil {
		m.logger.LogWarn("Monitor: fetch failed, serving previous snapshot: %v", err)
		m.mu.Lock()
		alreadyFailed := m.snapshot.FetchFailed
		m.snapshot.FetchFailed = true
		m.mu.Unlock()
		// Notify once per outage, not once per failed attempt.
		if !alreadyFailed && m.alerts.notifier != nil {
			if nerr := m.alerts.notifier.SendMessage("⚠️ CoinCompass: all price providers failed, serving stale data"); nerr != nil {
				m.logger.LogError("Monitor: failure notification could not be sent: %v", nerr)
			}
		}
		return false
	}

	m.mu.Lock()
	prev := m.snapshot.Prices

	indicators := make(map[string]indicator.Set, len(quotes))
	signals := make(map[string]indicator.Signal, len(quotes))
	for coin, q := range quotes {
		series := append(m.history[coin], q.Price)
		if len(series) > maxHistoryPoints {
			series = series[len(series)-maxHistoryPoints:]
		}
		m.history[coin] = series
		indicators[coin] = indicator.Compute(series, m.indCfg)
		signals[coin] = indicator.Evaluate(series, indicators[coin], m.indCfg)
	}

	macro := m.snapshot.Macro
	m.snapshot = Snapshot{
		Prices:     quotes,
		Indicators: indicators,
		Signals:    signals,
		Macro:      macro,
		FetchedAt:  now,
	}
	m.lastFetch = now
	m.mu.Unlock()

	if m.store != nil {
		for coin, q := range quotes {
			point := dataprovider.PricePoint{Timestamp: now.Unix(), Price: q.Price}
			if err := m.store.SavePricePoint(coin, point); err != nil {
				m.logger.LogWarn("Monitor: could not persist price point for %s: %v", coin, err)
			}
		}
	}

	m.refreshMacro(ctx, now)

	for _, alert := range m.alerts.Detect(prev, quotes) {
		m.publishAlert(alert)
	}

	m.logger.LogInfo("Monitor: refreshed %d quotes", len(quotes))
	return true
}

// refreshMacro re-fetches macro data on its own, slower cadence. A missing
// API key or upstream failure leaves the previous value in place.
func (m *Monitor) refreshMacro(ctx context.Context, now time.Time) {
	if m.macro == nil {
		return
	}
	m.mu.RLock()
	current := m.snapshot.Macro
	m.mu.RUnlock()
	if current != nil && now.Sub(current.LastUpdated) < m.macroRefresh {
		return
	}

	data, err := m.macro.GetMacroData(ctx)
	if err != nil {
		if err != dataprovider.ErrMacroDisabled {
			m.logger.LogWarn("Monitor: macro refresh failed: %v", err)
		}
		return
	}
	m.mu.Lock()
	m.snapshot.Macro = &data
	m.mu.Unlock()
}

func (m *Monitor) publish(snap Snapshot) {
	m.sinkMu.Lock()
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.sinkMu.Unlock()
	for _, s := range sinks {
		s.PublishSnapshot(snap)
	}
}

func (m *Monitor) publishAlert(alert Alert) {
	m.sinkMu.Lock()
	sinks := make([]Sink, len(m.sinks))
	copy(sinks, m.sinks)
	m.sinkMu.Unlock()
	for _, s := range sinks {
		s.PublishAlert(alert)
	}
}
