package web

import (
	"fmt"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gum798/CoinCompass/utilities"
)

// renderTemplate parses the layout plus one page template and executes them.
func renderTemplate(w http.ResponseWriter, r *http.Request, controller AppController, tmplName string, pageData interface{}) {
	lp := filepath.Join("web", "templates", "layout.html")
	fp := filepath.Join("web", "templates", tmplName)

	funcMap := template.FuncMap{
		"join": strings.Join,
		"timeSince": func(t time.Time) string {
			if t.IsZero() {
				return "N/A"
			}
			return time.Since(t).Round(time.Second).String()
		},
		"usd": func(v float64) string {
			return fmt.Sprintf("$%.2f", v)
		},
		"pct": func(v float64) string {
			return fmt.Sprintf("%+.2f%%", v)
		},
	}

	layoutData := struct {
		Template string
		Version  string
		PageData interface{}
	}{
		Template: tmplName,
		Version:  controller.GetConfig().Version,
		PageData: pageData,
	}

	tmpl, err := template.New(filepath.Base(lp)).Funcs(funcMap).ParseFiles(lp, fp)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error parsing template: %v", err), http.StatusInternalServerError)
		return
	}

	if err := tmpl.Execute(w, layoutData); err != nil {
		http.Error(w, fmt.Sprintf("Error executing template: %v", err), http.StatusInternalServerError)
	}
}

// dashboardHandler renders the live market overview.
func dashboardHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := DashboardData{
			Coins:     controller.Coins(),
			Snapshot:  controller.Snapshot(),
			Valuation: controller.Ledger().Valuate(),
			Version:   controller.GetConfig().Version,
		}
		renderTemplate(w, r, controller, "dashboard.html", data)
	}
}

// simulationHandler renders the paper-trading page.
func simulationHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ledger := controller.Ledger()
		data := SimulationData{
			Valuation: ledger.Valuate(),
			Positions: ledger.Positions(),
			Orders:    ledger.Orders(50),
			Coins:     controller.Coins(),
		}
		renderTemplate(w, r, controller, "simulation.html", data)
	}
}

// settingsHandler routes GET and POST requests for the settings page.
func settingsHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			settingsPostHandler(w, r, controller)
		} else {
			settingsGetHandler(w, r, controller)
		}
	}
}

func settingsGetHandler(w http.ResponseWriter, r *http.Request, controller AppController) {
	currentConfig := controller.GetConfig()
	pageData := struct {
		Config  utilities.AppConfig
		Message string
	}{
		Config:  currentConfig,
		Message: r.URL.Query().Get("message"),
	}
	renderTemplate(w, r, controller, "settings.html", pageData)
}

func settingsPostHandler(w http.ResponseWriter, r *http.Request, controller AppController) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	newConfig := controller.GetConfig()

	rawCoins := r.FormValue("monitoring.coins")
	newConfig.Monitoring.Coins = []string{}
	for _, c := range strings.Split(rawCoins, ",") {
		if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
			newConfig.Monitoring.Coins = append(newConfig.Monitoring.Coins, trimmed)
		}
	}
	newConfig.Monitoring.TickIntervalSec, _ = strconv.Atoi(r.FormValue("monitoring.tick_interval_sec"))
	newConfig.Monitoring.FetchIntervalSec, _ = strconv.Atoi(r.FormValue("monitoring.fetch_interval_sec"))
	newConfig.Monitoring.APICallsEnabled = r.FormValue("monitoring.api_calls_enabled") == "on"
	newConfig.Alerts.Enabled = r.FormValue("alerts.enabled") == "on"
	newConfig.Alerts.PriceChangeThresholdPercent, _ = strconv.ParseFloat(r.FormValue("alerts.price_change_threshold_percent"), 64)
	newConfig.Alerts.VolumeChangeThresholdPercent, _ = strconv.ParseFloat(r.FormValue("alerts.volume_change_threshold_percent"), 64)
	newConfig.Indicators.RSIPeriod, _ = strconv.Atoi(r.FormValue("indicators.rsi_period"))
	newConfig.Indicators.MACDFastPeriod, _ = strconv.Atoi(r.FormValue("indicators.macd_fast_period"))
	newConfig.Indicators.MACDSlowPeriod, _ = strconv.Atoi(r.FormValue("indicators.macd_slow_period"))
	newConfig.Indicators.MACDSignalPeriod, _ = strconv.Atoi(r.FormValue("indicators.macd_signal_period"))
	newConfig.Indicators.BollingerPeriod, _ = strconv.Atoi(r.FormValue("indicators.bollinger_period"))
	newConfig.Logging.Level = r.FormValue("logging.level")

	newConfig.ApplyDefaults()

	if err := controller.UpdateAndSaveConfig(newConfig); err != nil {
		http.Error(w, "Failed to update configuration: "+err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/settings?message=Success! Settings have been saved and applied.", http.StatusFound)
}
