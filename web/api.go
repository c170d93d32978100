package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gum798/CoinCompass/simulation"
)

// apiResponse is the uniform JSON envelope for API replies.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, apiResponse{Success: false, Error: err.Error()})
}

// ledgerErrorStatus maps ledger rejections to HTTP status codes. All of them
// are client-side problems; nothing mutates on rejection.
func ledgerErrorStatus(err error) int {
	switch {
	case errors.Is(err, simulation.ErrInsufficientFunds),
		errors.Is(err, simulation.ErrNoPosition),
		errors.Is(err, simulation.ErrInvalidAmount),
		errors.Is(err, simulation.ErrInvalidPercentage):
		return http.StatusBadRequest
	case errors.Is(err, simulation.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func registerAPIRoutes(mux *http.ServeMux, controller AppController) {
	mux.HandleFunc("/api/prices", pricesAPIHandler(controller))
	mux.HandleFunc("/api/analysis/", analysisAPIHandler(controller))
	mux.HandleFunc("/api/macro", macroAPIHandler(controller))
	mux.HandleFunc("/api/monitor/stats", monitorStatsAPIHandler(controller))
	mux.HandleFunc("/api/settings", settingsAPIHandler(controller))
	mux.HandleFunc("/api/simulation/portfolio", portfolioAPIHandler(controller))
	mux.HandleFunc("/api/simulation/orders", ordersAPIHandler(controller))
	mux.HandleFunc("/api/simulation/buy", buyAPIHandler(controller))
	mux.HandleFunc("/api/simulation/sell", sellAPIHandler(controller))
	mux.HandleFunc("/api/simulation/reset", resetAPIHandler(controller))
}

func pricesAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := controller.Snapshot()
		writeOK(w, map[string]interface{}{
			"prices":       snap.Prices,
			"fetched_at":   snap.FetchedAt,
			"published_at": snap.PublishedAt,
			"fetch_failed": snap.FetchFailed,
		})
	}
}

func analysisAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coin := strings.TrimPrefix(r.URL.Path, "/api/analysis/")
		if coin == "" {
			writeError(w, http.StatusBadRequest, errors.New("coin id required"))
			return
		}
		snap := controller.Snapshot()
		set, ok := snap.Indicators[coin]
		if !ok {
			writeError(w, http.StatusNotFound, errors.New("no analysis available for "+coin))
			return
		}
		writeOK(w, map[string]interface{}{
			"coin_id":    coin,
			"indicators": set,
			"signal":     snap.Signals[coin],
			"quote":      snap.Prices[coin],
			"fetched_at": snap.FetchedAt,
		})
	}
}

func macroAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := controller.Snapshot()
		if snap.Macro == nil {
			writeError(w, http.StatusNotFound, errors.New("macro data not available"))
			return
		}
		writeOK(w, snap.Macro)
	}
}

func monitorStatsAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := controller.Snapshot()
		writeOK(w, map[string]interface{}{
			"providers":    controller.ProviderStats(),
			"coins":        controller.Coins(),
			"fetched_at":   snap.FetchedAt,
			"published_at": snap.PublishedAt,
			"fetch_failed": snap.FetchFailed,
		})
	}
}

type settingsRequest struct {
	Monitoring *struct {
		TickIntervalSec  *int     `json:"tick_interval_sec"`
		FetchIntervalSec *int     `json:"fetch_interval_sec"`
		APICallsEnabled  *bool    `json:"api_calls_enabled"`
		Coins            []string `json:"coins"`
	} `json:"monitoring"`
	Alerts *struct {
		Enabled                      *bool    `json:"enabled"`
		PriceChangeThresholdPercent  *float64 `json:"price_change_threshold_percent"`
		VolumeChangeThresholdPercent *float64 `json:"volume_change_threshold_percent"`
	} `json:"alerts"`
}

func settingsAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var req settingsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
				return
			}
			cfg := controller.GetConfig()
			if m := req.Monitoring; m != nil {
				if m.TickIntervalSec != nil {
					cfg.Monitoring.TickIntervalSec = *m.TickIntervalSec
				}
				if m.FetchIntervalSec != nil {
					cfg.Monitoring.FetchIntervalSec = *m.FetchIntervalSec
				}
				if m.APICallsEnabled != nil {
					cfg.Monitoring.APICallsEnabled = *m.APICallsEnabled
				}
				if len(m.Coins) > 0 {
					cfg.Monitoring.Coins = m.Coins
				}
			}
			if a := req.Alerts; a != nil {
				if a.Enabled != nil {
					cfg.Alerts.Enabled = *a.Enabled
				}
				if a.PriceChangeThresholdPercent != nil {
					cfg.Alerts.PriceChangeThresholdPercent = *a.PriceChangeThresholdPercent
				}
				if a.VolumeChangeThresholdPercent != nil {
					cfg.Alerts.VolumeChangeThresholdPercent = *a.VolumeChangeThresholdPercent
				}
			}
			cfg.ApplyDefaults()
			if err := controller.UpdateAndSaveConfig(cfg); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
		}

		cfg := controller.GetConfig()
		writeOK(w, map[string]interface{}{
			"monitoring": cfg.Monitoring,
			"alerts":     cfg.Alerts,
			"indicators": cfg.Indicators,
			"simulation": cfg.Simulation,
		})
	}
}

func portfolioAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ledger := controller.Ledger()
		writeOK(w, map[string]interface{}{
			"valuation": ledger.Valuate(),
			"positions": ledger.Positions(),
		})
	}
}

func ordersAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, controller.Ledger().Orders(100))
	}
}

type buyRequest struct {
	CoinID string  `json:"coin_id"`
	Amount float64 `json:"amount"`
}

func buyAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		var req buyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		order, err := controller.Ledger().Buy(strings.ToLower(strings.TrimSpace(req.CoinID)), req.Amount)
		if err != nil {
			writeError(w, ledgerErrorStatus(err), err)
			return
		}
		writeOK(w, map[string]interface{}{
			"order":        order,
			"cash_balance": controller.Ledger().CashBalance(),
		})
	}
}

type sellRequest struct {
	CoinID     string  `json:"coin_id"`
	Percentage float64 `json:"percentage"`
}

func sellAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		var req sellRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
		order, err := controller.Ledger().Sell(strings.ToLower(strings.TrimSpace(req.CoinID)), req.Percentage)
		if err != nil {
			writeError(w, ledgerErrorStatus(err), err)
			return
		}
		writeOK(w, map[string]interface{}{
			"order":        order,
			"cash_balance": controller.Ledger().CashBalance(),
		})
	}
}

func resetAPIHandler(controller AppController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, errors.New("POST required"))
			return
		}
		if err := controller.Ledger().Reset(); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeOK(w, map[string]interface{}{
			"cash_balance": controller.Ledger().CashBalance(),
		})
	}
}
