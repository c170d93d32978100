// File: dataprovider/coinpaprika/cpclient.go
package coinpaprika

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gum798/CoinCompass/dataprovider"
	utils "github.com/gum798/CoinCompass/utilities"
)

// defaultIDMap translates the CoinGecko-style ids used across the app into
// CoinPaprika's "<symbol>-<slug>" ids. Entries can be overridden via config.
var defaultIDMap = map[string]string{
	"bitcoin":      "btc-bitcoin",
	"ethereum":     "eth-ethereum",
	"ripple":       "xrp-xrp",
	"binancecoin":  "bnb-binance-coin",
	"solana":       "sol-solana",
	"dogecoin":     "doge-dogecoin",
	"tron":         "trx-tron",
	"usd-coin":     "usdc-usd-coin",
	"tether":       "usdt-tether",
	"staked-ether": "steth-lido-staked-ether",
}

// Client is a CoinPaprika data-provider client. CoinPaprika needs no API key,
// which makes it the fallback of choice when CoinGecko's free quota runs out.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	limiter    *rate.Limiter
	logger     *utils.Logger
	idMap      map[string]string
	cfg        *utils.CoinpaprikaConfig
}

// --- Internal structs for CoinPaprika API responses ---

type cpQuoteUSD struct {
	Price            float64 `json:"price"`
	Volume24h        float64 `json:"volume_24h"`
	MarketCap        float64 `json:"market_cap"`
	PercentChange24h float64 `json:"percent_change_24h"`
}

type cpTicker struct {
	ID          string                `json:"id"`
	Symbol      string                `json:"symbol"`
	Name        string                `json:"name"`
	LastUpdated string                `json:"last_updated"`
	Quotes      map[string]cpQuoteUSD `json:"quotes"`
}

type cpHistoricalTick struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
}

func NewClient(cfg *utils.AppConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("coinpaprika client: AppConfig cannot be nil")
	}
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
		logger.LogWarn("CoinPaprika Client: Logger not provided, using default logger.")
	}

	var cpCfg *utils.CoinpaprikaConfig
	if cfg.Coinpaprika != nil {
		cpCfg = cfg.Coinpaprika
	} else {
		return nil, errors.New("coinpaprika client: CoinpaprikaConfig missing in AppConfig")
	}

	if cpCfg.BaseURL == "" {
		cpCfg.BaseURL = "https://api.coinpaprika.com/v1"
	}
	if cpCfg.RateLimitPerSec <= 0 {
		cpCfg.RateLimitPerSec = 0.8 // free tier allows ~50 req/min
	}
	if cpCfg.RateLimitBurst <= 0 {
		cpCfg.RateLimitBurst = 1
	}
	if cpCfg.RequestTimeoutSec <= 0 {
		cpCfg.RequestTimeoutSec = 10
	}

	idMap := make(map[string]string, len(defaultIDMap)+len(cpCfg.SymbolOverrides))
	for k, v := range defaultIDMap {
		idMap[k] = v
	}
	for k, v := range cpCfg.SymbolOverrides {
		idMap[strings.ToLower(k)] = v
	}

	client := &Client{
		BaseURL:    cpCfg.BaseURL,
		HTTPClient: &http.Client{Timeout: time.Duration(cpCfg.RequestTimeoutSec) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cpCfg.RateLimitPerSec), cpCfg.RateLimitBurst),
		logger:     logger,
		idMap:      idMap,
		cfg:        cpCfg,
	}

	logger.LogInfo("CoinPaprika client initialized with URL: %s, RateLimit: %.2f req/sec", client.BaseURL, cpCfg.RateLimitPerSec)

	return client, nil
}

// Name implements dataprovider.DataProvider.
func (c *Client) Name() string { return "coinpaprika" }

// paprikaID translates a common coin id into CoinPaprika's id format.
// Unknown ids are passed through unchanged.
func (c *Client) paprikaID(id string) string {
	if mapped, ok := c.idMap[strings.ToLower(id)]; ok {
		return mapped
	}
	return id
}

func (c *Client) request(ctx context.Context, endpoint string, queryParams url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error for endpoint %s: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", endpoint, err)
	}
	if len(queryParams) > 0 {
		req.URL.RawQuery = queryParams.Encode()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CoinCompass/1.0")
	c.logger.LogDebug("CoinPaprika Request: %s %s", req.Method, req.URL.String())

	maxRetries := 0
	if c.cfg.MaxRetries > 0 {
		maxRetries = c.cfg.MaxRetries
	}
	retryDelay := 2 * time.Second
	if c.cfg.RetryDelaySec > 0 {
		retryDelay = time.Duration(c.cfg.RetryDelaySec) * time.Second
	}

	return utils.DoJSONRequest(c.HTTPClient, req, maxRetries, retryDelay, result)
}

// GetQuotes implements dataprovider.DataProvider. CoinPaprika has no batch
// ticker-by-id endpoint on the free tier, so coins are fetched one at a time;
// individual failures are tolerated as long as at least one coin succeeds.
func (c *Client) GetQuotes(ctx context.Context, ids []string) (map[string]dataprovider.Quote, error) {
	quotes := make(map[string]dataprovider.Quote, len(ids))
	var lastErr error

	for _, id := range ids {
		var ticker cpTicker
		endpoint := fmt.Sprintf("/tickers/%s", url.PathEscape(c.paprikaID(id)))
		if err := c.request(ctx, endpoint, nil, &ticker); err != nil {
			c.logger.LogWarn("CoinPaprika: ticker fetch failed for %s: %v", id, err)
			lastErr = err
			continue
		}
		usd, ok := ticker.Quotes["USD"]
		if !ok {
			c.logger.LogWarn("CoinPaprika: no USD quote for %s", id)
			continue
		}
		updated, err := time.Parse(time.RFC3339, ticker.LastUpdated)
		if err != nil {
			updated = time.Now()
		}
		quotes[id] = dataprovider.Quote{
			CoinID:      id,
			Price:       usd.Price,
			Change24h:   usd.PercentChange24h,
			Volume24h:   usd.Volume24h,
			MarketCap:   usd.MarketCap,
			Source:      c.Name(),
			LastUpdated: updated,
		}
	}

	if len(quotes) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("coinpaprika: all ticker fetches failed: %w", lastErr)
		}
		return nil, errors.New("coinpaprika: no quotes returned")
	}
	return quotes, nil
}

// GetPriceHistory implements dataprovider.DataProvider using the historical
// ticks endpoint with daily interval.
func (c *Client) GetPriceHistory(ctx context.Context, id string, days int) ([]dataprovider.PricePoint, error) {
	if days <= 0 {
		days = 30
	}
	start := time.Now().AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("start", start.Format("2006-01-02"))
	params.Set("interval", "1d")

	var raw []cpHistoricalTick
	endpoint := fmt.Sprintf("/tickers/%s/historical", url.PathEscape(c.paprikaID(id)))
	if err := c.request(ctx, endpoint, params, &raw); err != nil {
		return nil, fmt.Errorf("coinpaprika: historical request failed for %s: %w", id, err)
	}

	points := make([]dataprovider.PricePoint, 0, len(raw))
	for _, tick := range raw {
		ts, err := time.Parse(time.RFC3339, tick.Timestamp)
		if err != nil {
			continue
		}
		points = append(points, dataprovider.PricePoint{
			Timestamp: ts.Unix(),
			Price:     tick.Price,
		})
	}
	return points, nil
}
