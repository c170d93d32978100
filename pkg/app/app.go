// Package app wires the data providers, scheduler, ledger, and web layer
// together and owns the application lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gum798/CoinCompass/dataprovider"
	cg "github.com/gum798/CoinCompass/dataprovider/coingecko"
	cp "github.com/gum798/CoinCompass/dataprovider/coinpaprika"
	"github.com/gum798/CoinCompass/indicator"
	"github.com/gum798/CoinCompass/monitor"
	"github.com/gum798/CoinCompass/notification/discord"
	"github.com/gum798/CoinCompass/simulation"
	"github.com/gum798/CoinCompass/utilities"
	"github.com/gum798/CoinCompass/web"
)

// priceHistoryRetention is how long stored price points are kept before the
// daily cleanup removes them.
const priceHistoryRetention = 180 * 24 * time.Hour

// AppState holds the running application's shared components. It implements
// web.AppController for the dashboard and API handlers.
type AppState struct {
	configPath string
	logger     *utilities.Logger
	monitor    *monitor.Monitor
	ledger     *simulation.Ledger
	multi      *dataprovider.MultiProvider

	stateMutex sync.RWMutex
	config     *utilities.AppConfig
}

// GetConfig implements web.AppController.
func (a *AppState) GetConfig() utilities.AppConfig {
	a.stateMutex.RLock()
	defer a.stateMutex.RUnlock()
	return *a.config
}

// UpdateAndSaveConfig implements web.AppController. The new config is written
// back to disk and applied in place where possible; interval changes take
// effect on the next restart.
func (a *AppState) UpdateAndSaveConfig(newConfig utilities.AppConfig) error {
	data, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	if err := os.WriteFile(a.configPath, data, 0o644); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	a.stateMutex.Lock()
	*a.config = newConfig
	a.stateMutex.Unlock()

	if level, err := utilities.ParseLogLevel(newConfig.Logging.Level); err == nil {
		a.logger.SetLogLevel(level)
	}

	a.logger.LogInfo("AppState: configuration saved to %s (interval changes apply on restart)", a.configPath)
	return nil
}

// Snapshot implements web.AppController.
func (a *AppState) Snapshot() monitor.Snapshot { return a.monitor.Snapshot() }

// Coins implements web.AppController.
func (a *AppState) Coins() []string { return a.monitor.Coins() }

// ProviderStats implements web.AppController.
func (a *AppState) ProviderStats() dataprovider.ProviderStats { return a.multi.Stats() }

// Ledger implements web.AppController.
func (a *AppState) Ledger() *simulation.Ledger { return a.ledger }

// Logger implements web.AppController.
func (a *AppState) Logger() *utilities.Logger { return a.logger }

func indicatorConfig(cfg utilities.IndicatorsConfig) indicator.Config {
	return indicator.Config{
		RSIPeriod:        cfg.RSIPeriod,
		RSIOverbought:    cfg.RSIOverbought,
		RSIOversold:      cfg.RSIOversold,
		MACDFastPeriod:   cfg.MACDFastPeriod,
		MACDSlowPeriod:   cfg.MACDSlowPeriod,
		MACDSignalPeriod: cfg.MACDSignalPeriod,
		BollingerPeriod:  cfg.BollingerPeriod,
		BollingerStdDev:  cfg.BollingerStdDev,
		SMAShortPeriod:   cfg.SMAShortPeriod,
		SMALongPeriod:    cfg.SMALongPeriod,
	}
}

// Run performs pre-flight checks, wires all components, starts the scheduler
// and web server, and blocks until the context is canceled.
func Run(ctx context.Context, cfg *utilities.AppConfig, logger *utilities.Logger) error {
	return RunWithConfigPath(ctx, cfg, logger, "config/config.json")
}

// RunWithConfigPath is Run with an explicit config file location, used so
// settings changes can be persisted back to the file they came from.
func RunWithConfigPath(ctx context.Context, cfg *utilities.AppConfig, logger *utilities.Logger, configPath string) error {
	cfg.ApplyDefaults()

	if len(cfg.Monitoring.Coins) == 0 {
		return errors.New("pre-flight check failed: no monitoring coins configured")
	}

	discordClient := discord.NewClient(cfg.Discord.WebhookURL)
	discordClient.SendMessage(fmt.Sprintf("✅ **CoinCompass v%s Starting Up**", cfg.Version))
	defer discordClient.SendMessage("🛑 **CoinCompass Shutting Down**")

	logger.LogInfo("AppRun: Starting pre-flight checks...")

	if dir := filepath.Dir(cfg.DB.DBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pre-flight check failed: could not create data directory: %w", err)
		}
	}
	sqliteCache, err := dataprovider.NewSQLiteCache(cfg.DB)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: sqlite cache init failed: %w", err)
	}
	defer sqliteCache.Close()

	go startScheduledCleanup(ctx, sqliteCache, logger)

	logger.LogInfo("Pre-Flight: Initializing price providers...")
	cgClient, err := cg.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize CoinGecko client: %w", err)
	}
	cpClient, err := cp.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not initialize CoinPaprika client: %w", err)
	}
	multi := dataprovider.NewMultiProvider([]dataprovider.DataProvider{cgClient, cpClient}, logger)

	var macroProvider dataprovider.MacroProvider
	if cfg.Macro != nil {
		fredClient, err := dataprovider.NewFREDClient(cfg.Macro, logger, &http.Client{Timeout: 15 * time.Second})
		if err != nil {
			return fmt.Errorf("pre-flight check failed: could not initialize FRED client: %w", err)
		}
		macroProvider = fredClient
	} else {
		logger.LogWarn("AppRun: no macro config present, macro data disabled")
	}

	macroRefresh := time.Hour
	if cfg.Macro != nil && cfg.Macro.RefreshSec > 0 {
		macroRefresh = time.Duration(cfg.Macro.RefreshSec) * time.Second
	}

	mon := monitor.New(cfg.Monitoring, indicatorConfig(cfg.Indicators), multi, logger, monitor.Options{
		Macro:        macroProvider,
		Store:        sqliteCache,
		Notifier:     discordClient,
		Alerts:       cfg.Alerts,
		MacroRefresh: macroRefresh,
	})

	ledger, err := simulation.NewLedger(cfg.Simulation, mon.CurrentPrice, sqliteCache, logger)
	if err != nil {
		return fmt.Errorf("pre-flight check failed: could not restore ledger: %w", err)
	}
	ledger.SetNotifier(discordClient)

	hub := web.NewHub(logger)
	mon.AddSink(hub)

	state := &AppState{
		configPath: configPath,
		config:     cfg,
		logger:     logger,
		monitor:    mon,
		ledger:     ledger,
		multi:      multi,
	}

	web.StartWebServer(ctx, state, hub)

	logger.LogInfo("AppRun: priming price history for %d coins...", len(cfg.Monitoring.Coins))
	mon.Prime(ctx)

	go mon.Run(ctx)

	logger.LogInfo("AppRun: CoinCompass is up")
	<-ctx.Done()
	return nil
}

// startScheduledCleanup prunes old price points once a day.
func startScheduledCleanup(ctx context.Context, cache *dataprovider.SQLiteCache, logger *utilities.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-priceHistoryRetention)
			if err := cache.CleanupOldPrices(cutoff); err != nil {
				logger.LogWarn("Cleanup: could not prune old price points: %v", err)
			} else {
				logger.LogDebug("Cleanup: pruned price points older than %s", cutoff.Format(time.RFC3339))
			}
		}
	}
}
