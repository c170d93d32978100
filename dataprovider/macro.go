// File: dataprovider/macro.go
package dataprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gum798/CoinCompass/utilities"
)

// ErrMacroDisabled is returned when no FRED API key is configured. The rest
// of the system runs normally; macro data is simply absent.
var ErrMacroDisabled = errors.New("macro: FRED API key not configured")

// MacroProvider exposes the latest macroeconomic indicator values.
type MacroProvider interface {
	GetMacroData(ctx context.Context) (MacroData, error)
}

// fredSeries maps indicator names to FRED series IDs.
var fredSeries = map[string]string{
	"fed_rate":       "FEDFUNDS",
	"unemployment":   "UNRATE",
	"cpi":            "CPIAUCSL",
	"ten_year_yield": "GS10",
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

// FREDClient is a macroeconomic data-provider client backed by the
// St. Louis Fed FRED observations API.
type FREDClient struct {
	HTTPClient *http.Client
	logger     *utilities.Logger
	baseURL    string
	apiKey     string
	daysBack   int
}

// NewFREDClient creates a MacroProvider-compatible client. A missing API key
// is not fatal: the client is created but every fetch returns ErrMacroDisabled.
func NewFREDClient(cfg *utilities.MacroConfig, logger *utilities.Logger, client *http.Client) (*FREDClient, error) {
	if cfg == nil {
		return nil, errors.New("FREDClient: MacroConfig cannot be nil")
	}
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
		logger.LogWarn("FREDClient: Logger not provided, using default.")
	}
	if client == nil {
		return nil, errors.New("FREDClient: HTTPClient cannot be nil")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.stlouisfed.org/fred/series/observations"
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 90
	}
	if cfg.APIKey == "" {
		logger.LogWarn("FREDClient: no API key configured, macro data will be unavailable")
	}
	return &FREDClient{
		HTTPClient: client,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		daysBack:   daysBack,
	}, nil
}

// GetMacroData fetches the latest observation for each tracked FRED series.
// Individual series failures are tolerated; the corresponding field stays nil.
func (c *FREDClient) GetMacroData(ctx context.Context) (MacroData, error) {
	if c.apiKey == "" {
		return MacroData{}, ErrMacroDisabled
	}

	data := MacroData{LastUpdated: time.Now()}
	fields := map[string]**float64{
		"fed_rate":       &data.FedRate,
		"unemployment":   &data.Unemployment,
		"cpi":            &data.CPI,
		"ten_year_yield": &data.TenYearYield,
	}

	fetched := 0
	for name, seriesID := range fredSeries {
		value, err := c.fetchLatest(ctx, seriesID)
		if err != nil {
			c.logger.LogWarn("FRED: could not fetch %s (%s): %v", name, seriesID, err)
			continue
		}
		*fields[name] = &value
		fetched++
	}

	if fetched == 0 {
		return MacroData{}, errors.New("macro: no FRED series could be fetched")
	}
	return data, nil
}

// fetchLatest returns the most recent non-missing observation of a series.
func (c *FREDClient) fetchLatest(ctx context.Context, seriesID string) (float64, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -c.daysBack)

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	params.Set("observation_start", start.Format("2006-01-02"))
	params.Set("observation_end", end.Format("2006-01-02"))
	params.Set("sort_order", "desc")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("FRED: create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var raw fredResponse
	if err := utilities.DoJSONRequest(c.HTTPClient, req, 1, 2*time.Second, &raw); err != nil {
		return 0, fmt.Errorf("FRED: request/decoding failed: %w", err)
	}
	if len(raw.Observations) == 0 {
		return 0, errors.New("FRED: no observations returned")
	}

	latest := raw.Observations[0]
	// FRED marks missing values with "."
	if latest.Value == "." {
		return 0, fmt.Errorf("FRED: latest observation for %s is missing", seriesID)
	}
	value, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("FRED: invalid value %q: %w", latest.Value, err)
	}
	return value, nil
}
