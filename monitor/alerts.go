package monitor

import (
	"fmt"
	"math"
	"time"

	"github.com/gum798/CoinCompass/dataprovider"
	"github.com/gum798/CoinCompass/utilities"
)

// Alert types.
const (
	AlertPriceChange  = "price_change"
	AlertVolumeChange = "volume_change"
)

// Alert describes a threshold crossing between two consecutive fetches.
type Alert struct {
	CoinID        string    `json:"coin_id"`
	Type          string    `json:"type"`
	ChangePercent float64   `json:"change_percent"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// AlertDetector compares consecutive quote sets against the configured
// thresholds and forwards triggered alerts to the notifier.
type AlertDetector struct {
	cfg      utilities.AlertsConfig
	notifier Notifier
	logger   *utilities.Logger
}

func NewAlertDetector(cfg utilities.AlertsConfig, notifier Notifier, logger *utilities.Logger) *AlertDetector {
	if logger == nil {
		logger = utilities.NewLogger(utilities.Info)
	}
	return &AlertDetector{cfg: cfg, notifier: notifier, logger: logger}
}

// Detect returns the alerts triggered by the move from prev to curr. The
// first fetch (empty prev) never alerts: there is no baseline to compare.
func (d *AlertDetector) Detect(prev, curr map[string]dataprovider.Quote) []Alert {
	if !d.cfg.Enabled || len(prev) == 0 {
		return nil
	}

	now := time.Now()
	var alerts []Alert
	for coin, q := range curr {
		base, ok := prev[coin]
		if !ok {
			continue
		}

		if base.Price > 0 {
			change := (q.Price - base.Price) / base.Price * 100
			if math.Abs(change) >= d.cfg.PriceChangeThresholdPercent {
				alerts = append(alerts, Alert{
					CoinID:        coin,
					Type:          AlertPriceChange,
					ChangePercent: change,
					Message:       fmt.Sprintf("%s price moved %+.2f%% to $%.2f", coin, change, q.Price),
					CreatedAt:     now,
				})
			}
		}

		if base.Volume24h > 0 {
			change := (q.Volume24h - base.Volume24h) / base.Volume24h * 100
			if math.Abs(change) >= d.cfg.VolumeChangeThresholdPercent {
				alerts = append(alerts, Alert{
					CoinID:        coin,
					Type:          AlertVolumeChange,
					ChangePercent: change,
					Message:       fmt.Sprintf("%s 24h volume moved %+.2f%%", coin, change),
					CreatedAt:     now,
				})
			}
		}
	}

	for _, a := range alerts {
		d.logger.LogWarn("Alert: %s", a.Message)
		if d.notifier != nil {
			if err := d.notifier.SendMessage("🚨 " + a.Message); err != nil {
				d.logger.LogError("Alert: notification delivery failed: %v", err)
			}
		}
	}
	return alerts
}
