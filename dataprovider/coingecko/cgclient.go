// File: dataprovider/coingecko/cgclient.go
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate" // For rate limiting

	"github.com/gum798/CoinCompass/dataprovider"
	utils "github.com/gum798/CoinCompass/utilities"
)

// Client is a CoinGecko data-provider client. The free tier is aggressively
// rate limited, so every request goes through a shared limiter.
type Client struct {
	BaseURL       string
	APIKey        string
	QuoteCurrency string
	HTTPClient    *http.Client
	limiter       *rate.Limiter
	logger        *utils.Logger
	cfg           *utils.CoingeckoConfig
}

// --- Internal structs for CoinGecko API responses ---

type cgMarketData struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
	LastUpdated              string  `json:"last_updated"`
}

// cgMarketChartResponse is for the /market_chart endpoint. Each inner array
// is [timestamp_ms, value].
type cgMarketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

func NewClient(cfg *utils.AppConfig, logger *utils.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("coingecko client: AppConfig cannot be nil")
	}
	if logger == nil {
		logger = utils.NewLogger(utils.Info)
		logger.LogWarn("CoinGecko Client: Logger not provided, using default logger.")
	}

	var cgCfg *utils.CoingeckoConfig
	if cfg.Coingecko != nil {
		cgCfg = cfg.Coingecko
	} else {
		return nil, errors.New("coingecko client: CoingeckoConfig missing in AppConfig")
	}

	if cgCfg.BaseURL == "" {
		cgCfg.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cgCfg.RateLimitPerSec <= 0 {
		cgCfg.RateLimitPerSec = 0.5
		logger.LogWarn("CoinGecko Client: Invalid RateLimitPerSec, defaulting to 0.5")
	}
	if cgCfg.RateLimitBurst <= 0 {
		cgCfg.RateLimitBurst = 1
		logger.LogWarn("CoinGecko Client: Invalid RateLimitBurst, defaulting to 1")
	}
	if cgCfg.RequestTimeoutSec <= 0 {
		cgCfg.RequestTimeoutSec = 10
		logger.LogWarn("CoinGecko Client: Invalid RequestTimeoutSec, defaulting to 10 seconds")
	}
	quote := cgCfg.QuoteCurrency
	if quote == "" {
		quote = "usd"
	}

	client := &Client{
		BaseURL:       cgCfg.BaseURL,
		APIKey:        cgCfg.APIKey,
		QuoteCurrency: strings.ToLower(quote),
		HTTPClient:    &http.Client{Timeout: time.Duration(cgCfg.RequestTimeoutSec) * time.Second},
		limiter:       rate.NewLimiter(rate.Limit(cgCfg.RateLimitPerSec), cgCfg.RateLimitBurst),
		logger:        logger,
		cfg:           cgCfg,
	}

	logger.LogInfo("CoinGecko client initialized with URL: %s, RateLimit: %.2f req/sec", client.BaseURL, cgCfg.RateLimitPerSec)

	return client, nil
}

// Name implements dataprovider.DataProvider.
func (c *Client) Name() string { return "coingecko" }

// request handles making the HTTP request, rate limiting, API key, and decoding JSON.
func (c *Client) request(ctx context.Context, endpoint string, queryParams url.Values, result interface{}) error {
	if ctx == nil {
		c.logger.LogWarn("CoinGecko Client: request called with nil context for endpoint %s. Using background context.", endpoint)
		ctx = context.Background()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error for endpoint %s: %w", endpoint, err)
	}

	fullURL := c.BaseURL + endpoint
	if !strings.HasPrefix(endpoint, "/") && !strings.HasSuffix(c.BaseURL, "/") {
		fullURL = c.BaseURL + "/" + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", fullURL, err)
	}

	if queryParams == nil {
		queryParams = url.Values{}
	}
	if c.APIKey != "" {
		// Demo keys go in the x_cg_demo_api_key query parameter.
		queryParams.Set("x_cg_demo_api_key", c.APIKey)
	}
	if len(queryParams) > 0 {
		req.URL.RawQuery = queryParams.Encode()
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CoinCompass/1.0")
	c.logger.LogDebug("CoinGecko Request: %s %s", req.Method, req.URL.String())

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

// GetQuotes implements dataprovider.DataProvider using the /coins/markets endpoint,
// which returns price, 24h change, volume, and market cap in one call.
func (c *Client) GetQuotes(ctx context.Context, ids []string) (map[string]dataprovider.Quote, error) {
	if len(ids) == 0 {
		return map[string]dataprovider.Quote{}, nil
	}

	params := url.Values{}
	params.Set("vs_currency", c.QuoteCurrency)
	params.Set("ids", strings.Join(ids, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", fmt.Sprintf("%d", len(ids)))
	params.Set("page", "1")
	params.Set("sparkline", "false")

	var raw []cgMarketData
	if err := c.request(ctx, "/coins/markets", params, &raw); err != nil {
		return nil, fmt.Errorf("coingecko: markets request failed: %w", err)
	}

	quotes := make(map[string]dataprovider.Quote, len(raw))
	for _, md := range raw {
		updated, err := time.Parse(time.RFC3339, md.LastUpdated)
		if err != nil {
			updated = time.Now()
		}
		quotes[md.ID] = dataprovider.Quote{
			CoinID:      md.ID,
			Price:       md.CurrentPrice,
			Change24h:   md.PriceChangePercentage24h,
			Volume24h:   md.TotalVolume,
			MarketCap:   md.MarketCap,
			Source:      c.Name(),
			LastUpdated: updated,
		}
	}
	return quotes, nil
}

// GetPriceHistory implements dataprovider.DataProvider using /coins/{id}/market_chart
// with daily granularity.
func (c *Client) GetPriceHistory(ctx context.Context, id string, days int) ([]dataprovider.PricePoint, error) {
	if days <= 0 {
		days = 30
	}

	params := url.Values{}
	params.Set("vs_currency", c.QuoteCurrency)
	params.Set("days", fmt.Sprintf("%d", days))
	params.Set("interval", "daily")

	var raw cgMarketChartResponse
	endpoint := fmt.Sprintf("/coins/%s/market_chart", url.PathEscape(id))
	if err := c.request(ctx, endpoint, params, &raw); err != nil {
		return nil, fmt.Errorf("coingecko: market_chart request failed for %s: %w", id, err)
	}

	points := make([]dataprovider.PricePoint, 0, len(raw.Prices))
	for _, p := range raw.Prices {
		points = append(points, dataprovider.PricePoint{
			Timestamp: int64(p[0]) / 1000, // ms -> s
			Price:     p[1],
		})
	}
	return points, nil
}
