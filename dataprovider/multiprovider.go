package dataprovider

import (
	"context"
	"sync"

	"github.com/gum798/CoinCompass/utilities"
)

// MultiProvider wraps an ordered list of DataProviders and rotates between
// them on failure or quota exhaustion, so a single upstream outage never
// takes the dashboard down. The rotation index persists across calls: the
// provider that served the last successful request is tried first.
type MultiProvider struct {
	providers []DataProvider
	logger    *utilities.Logger

	mu      sync.Mutex
	current int
	stats   ProviderStats
}

// NewMultiProvider creates a MultiProvider from the given ordered providers.
func NewMultiProvider(providers []DataProvider, logger *utilities.Logger) *MultiProvider {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	mp := &MultiProvider{
		providers: providers,
		logger:    logger,
		stats:     ProviderStats{ProviderUsage: make(map[string]int)},
	}
	logger.LogInfo("MultiProvider initialized with %d providers", len(providers))
	return mp
}

// Name implements DataProvider.
func (m *MultiProvider) Name() string { return "multi" }

// GetQuotes tries each provider in rotation order until one returns a valid
// result. It returns ErrAllProvidersFailed only when every provider failed.
func (m *MultiProvider) GetQuotes(ctx context.Context, ids []string) (map[string]Quote, error) {
	m.mu.Lock()
	m.stats.TotalRequests++
	start := m.current
	n := len(m.providers)
	m.mu.Unlock()

	if n == 0 {
		return nil, ErrAllProvidersFailed
	}

	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		p := m.providers[(start+attempt)%n]

		quotes, err := p.GetQuotes(ctx, ids)
		if err != nil {
			m.logger.LogWarn("MultiProvider: %s failed (%v), trying next provider", p.Name(), err)
			lastErr = err
			continue
		}
		if len(quotes) == 0 {
			m.logger.LogWarn("MultiProvider: %s returned no quotes, trying next provider", p.Name())
			continue
		}

		m.mu.Lock()
		m.current = (start + attempt) % n
		m.stats.SuccessfulRequests++
		m.stats.ProviderUsage[p.Name()]++
		m.mu.Unlock()

		m.logger.LogDebug("MultiProvider: %d quotes served by %s", len(quotes), p.Name())
		return quotes, nil
	}

	m.mu.Lock()
	m.stats.FailedRequests++
	m.mu.Unlock()

	if lastErr != nil {
		m.logger.LogError("MultiProvider: all %d providers failed, last error: %v", n, lastErr)
	}
	return nil, ErrAllProvidersFailed
}

// GetPriceHistory tries each provider in rotation order for historical prices.
func (m *MultiProvider) GetPriceHistory(ctx context.Context, id string, days int) ([]PricePoint, error) {
	m.mu.Lock()
	start := m.current
	n := len(m.providers)
	m.mu.Unlock()

	if n == 0 {
		return nil, ErrAllProvidersFailed
	}

	for attempt := 0; attempt < n; attempt++ {
		p := m.providers[(start+attempt)%n]
		points, err := p.GetPriceHistory(ctx, id, days)
		if err != nil {
			m.logger.LogWarn("MultiProvider: history from %s failed for %s: %v", p.Name(), id, err)
			continue
		}
		if len(points) > 0 {
			return points, nil
		}
	}
	return nil, ErrAllProvidersFailed
}

// Stats returns a copy of the accumulated request statistics.
func (m *MultiProvider) Stats() ProviderStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := ProviderStats{
		TotalRequests:      m.stats.TotalRequests,
		SuccessfulRequests: m.stats.SuccessfulRequests,
		FailedRequests:     m.stats.FailedRequests,
		ProviderUsage:      make(map[string]int, len(m.stats.ProviderUsage)),
	}
	for k, v := range m.stats.ProviderUsage {
		cp.ProviderUsage[k] = v
	}
	return cp
}
