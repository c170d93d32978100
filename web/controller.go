package web

import (
	"github.com/gum798/CoinCompass/dataprovider"
	"github.com/gum798/CoinCompass/monitor"
	"github.com/gum798/CoinCompass/simulation"
	"github.com/gum798/CoinCompass/utilities"
)

// DashboardData feeds the main dashboard page.
type DashboardData struct {
	Coins     []string
	Snapshot  monitor.Snapshot
	Valuation simulation.Valuation
	Version   string
}

// SimulationData feeds the paper-trading page.
type SimulationData struct {
	Valuation simulation.Valuation
	Positions []simulation.Position
	Orders    []simulation.Order
	Coins     []string
}

// AppController defines the interface the web package needs to interact with
// the main application's state.
type AppController interface {
	GetConfig() utilities.AppConfig
	UpdateAndSaveConfig(newConfig utilities.AppConfig) error
	Snapshot() monitor.Snapshot
	Coins() []string
	ProviderStats() dataprovider.ProviderStats
	Ledger() *simulation.Ledger
	Logger() *utilities.Logger
}
