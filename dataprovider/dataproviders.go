package dataprovider

import (
	"context"
	"errors"
	"time"
)

// ErrAllProvidersFailed is returned by MultiProvider when every configured
// upstream failed for the current call. The caller treats this uniformly as
// "fetch failed" and keeps serving the previous snapshot.
var ErrAllProvidersFailed = errors.New("dataprovider: all providers failed")

// DataProvider defines the interface for accessing market data from various sources.
type DataProvider interface {
	// Name identifies the provider in logs and diagnostics.
	Name() string
	// GetQuotes returns the latest market quote for each requested coin id.
	// Coins the upstream does not know are simply absent from the result.
	GetQuotes(ctx context.Context, ids []string) (map[string]Quote, error)
	// GetPriceHistory returns up to `days` of daily closing prices for a coin,
	// oldest first. Used to prime the indicator series.
	GetPriceHistory(ctx context.Context, id string, days int) ([]PricePoint, error)
}

// Quote represents aggregated market data for a single coin.
type Quote struct {
	CoinID      string    `json:"coin_id"`
	Price       float64   `json:"price"`
	Change24h   float64   `json:"change_24h"` // percent
	Volume24h   float64   `json:"volume_24h"`
	MarketCap   float64   `json:"market_cap"`
	Source      string    `json:"source"`
	LastUpdated time.Time `json:"last_updated"`
}

// PricePoint is a single historical closing price.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"` // unix seconds
	Price     float64 `json:"price"`
}

// MacroData holds the latest macroeconomic indicator values. A nil field
// means the series could not be fetched (missing API key or upstream error).
type MacroData struct {
	FedRate      *float64  `json:"fed_rate,omitempty"`
	Unemployment *float64  `json:"unemployment,omitempty"`
	CPI          *float64  `json:"cpi,omitempty"`
	TenYearYield *float64  `json:"ten_year_yield,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
}

// ProviderStats records per-provider usage for diagnostics.
type ProviderStats struct {
	TotalRequests      int            `json:"total_requests"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	ProviderUsage      map[string]int `json:"provider_usage"`
}
