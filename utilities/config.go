package utilities

// --- Types (Alphabetized) ---

// AlertsConfig defines thresholds for price/volume movement notifications.
type AlertsConfig struct {
	Enabled                      bool    `mapstructure:"enabled" json:"enabled"`
	PriceChangeThresholdPercent  float64 `mapstructure:"price_change_threshold_percent" json:"price_change_threshold_percent"`
	VolumeChangeThresholdPercent float64 `mapstructure:"volume_change_threshold_percent" json:"volume_change_threshold_percent"`
}

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName     string             `mapstructure:"app_name" json:"app_name"`
	Version     string             `mapstructure:"version" json:"version"`
	Environment string             `mapstructure:"environment" json:"environment"`
	Alerts      AlertsConfig       `mapstructure:"alerts" json:"alerts"`
	Coingecko   *CoingeckoConfig   `mapstructure:"coingecko" json:"coingecko"`
	Coinpaprika *CoinpaprikaConfig `mapstructure:"coinpaprika" json:"coinpaprika"`
	DB          DatabaseConfig     `mapstructure:"database" json:"database"`
	Discord     DiscordConfig      `mapstructure:"discord" json:"discord"`
	Indicators  IndicatorsConfig   `mapstructure:"indicators" json:"indicators"`
	Logging     LoggingConfig      `mapstructure:"logging" json:"logging"`
	Macro       *MacroConfig       `mapstructure:"macro" json:"macro"`
	Monitoring  MonitoringConfig   `mapstructure:"monitoring" json:"monitoring"`
	Simulation  SimulationConfig   `mapstructure:"simulation" json:"simulation"`
	Web         WebConfig          `mapstructure:"web" json:"web"`
}

// CoingeckoConfig holds settings for the CoinGecko data provider.
type CoingeckoConfig struct {
	BaseURL           string  `mapstructure:"base_url" json:"base_url"`
	APIKey            string  `mapstructure:"api_key" json:"api_key"`
	QuoteCurrency     string  `mapstructure:"quote_currency" json:"quote_currency"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	MaxRetries        int     `mapstructure:"max_retries" json:"max_retries"`
	RetryDelaySec     int     `mapstructure:"retry_delay_sec" json:"retry_delay_sec"`
	RateLimitPerSec   float64 `mapstructure:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	RateLimitBurst    int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// CoinpaprikaConfig holds settings for the CoinPaprika data provider.
type CoinpaprikaConfig struct {
	BaseURL           string            `mapstructure:"base_url" json:"base_url"`
	SymbolOverrides   map[string]string `mapstructure:"symbol_overrides" json:"symbol_overrides,omitempty"`
	RequestTimeoutSec int               `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	MaxRetries        int               `mapstructure:"max_retries" json:"max_retries"`
	RetryDelaySec     int               `mapstructure:"retry_delay_sec" json:"retry_delay_sec"`
	RateLimitPerSec   float64           `mapstructure:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	RateLimitBurst    int               `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`
}

// DatabaseConfig holds settings for database connections.
type DatabaseConfig struct {
	DBPath string `mapstructure:"database_path" json:"database_path"`
}

// DiscordConfig holds settings for sending notifications via Discord.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

// IndicatorsConfig holds parameters for various technical indicators.
type IndicatorsConfig struct {
	RSIPeriod        int     `mapstructure:"rsi_period" json:"rsi_period"`
	RSIOverbought    float64 `mapstructure:"rsi_overbought" json:"rsi_overbought"`
	RSIOversold      float64 `mapstructure:"rsi_oversold" json:"rsi_oversold"`
	MACDFastPeriod   int     `mapstructure:"macd_fast_period" json:"macd_fast_period"`
	MACDSlowPeriod   int     `mapstructure:"macd_slow_period" json:"macd_slow_period"`
	MACDSignalPeriod int     `mapstructure:"macd_signal_period" json:"macd_signal_period"`
	BollingerPeriod  int     `mapstructure:"bollinger_period" json:"bollinger_period"`
	BollingerStdDev  float64 `mapstructure:"bollinger_std_dev" json:"bollinger_std_dev"`
	SMAShortPeriod   int     `mapstructure:"sma_short_period" json:"sma_short_period"`
	SMALongPeriod    int     `mapstructure:"sma_long_period" json:"sma_long_period"`
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level           string `mapstructure:"level" json:"level"`
	LogToFile       bool   `mapstructure:"log_to_file" json:"log_to_file"`
	LogFilePath     string `mapstructure:"log_file_path" json:"log_file_path"`
	MaxSizeMB       int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups      int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays      int    `mapstructure:"max_age_days" json:"max_age_days"`
	CompressBackups bool   `mapstructure:"compress_backups" json:"compress_backups"`
}

// MacroConfig holds settings for the FRED macroeconomic data source.
type MacroConfig struct {
	BaseURL           string `mapstructure:"base_url" json:"base_url"`
	APIKey            string `mapstructure:"api_key" json:"api_key"`
	DaysBack          int    `mapstructure:"days_back" json:"days_back"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" json:"request_timeout_sec"`
	RefreshSec        int    `mapstructure:"refresh_sec" json:"refresh_sec"`
}

// MonitoringConfig holds settings for the background refresh scheduler.
type MonitoringConfig struct {
	TickIntervalSec  int      `mapstructure:"tick_interval_sec" json:"tick_interval_sec"`
	FetchIntervalSec int      `mapstructure:"fetch_interval_sec" json:"fetch_interval_sec"`
	InitialDelaySec  int      `mapstructure:"initial_delay_sec" json:"initial_delay_sec"`
	APICallsEnabled  bool     `mapstructure:"api_calls_enabled" json:"api_calls_enabled"`
	Coins            []string `mapstructure:"coins" json:"coins"`
	PrimeHistoryDays int      `mapstructure:"prime_history_days" json:"prime_history_days"`
	FetchTimeoutSec  int      `mapstructure:"fetch_timeout_sec" json:"fetch_timeout_sec"`
}

// SimulationConfig holds settings for the paper-trading ledger.
type SimulationConfig struct {
	StartingCash float64 `mapstructure:"starting_cash" json:"starting_cash"`
	FeeRate      float64 `mapstructure:"fee_rate" json:"fee_rate"`
}

// WebConfig holds settings for the dashboard web server.
type WebConfig struct {
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	StaticDir  string `mapstructure:"static_dir" json:"static_dir"`
}

// ApplyDefaults fills zero-valued config fields with sane defaults so a
// minimal config file still yields a runnable system.
func (c *AppConfig) ApplyDefaults() {
	if c.Monitoring.TickIntervalSec <= 0 {
		c.Monitoring.TickIntervalSec = 30
	}
	if c.Monitoring.FetchIntervalSec <= 0 {
		c.Monitoring.FetchIntervalSec = 1800
	}
	if c.Monitoring.InitialDelaySec < 0 {
		c.Monitoring.InitialDelaySec = 60
	}
	if c.Monitoring.FetchTimeoutSec <= 0 {
		c.Monitoring.FetchTimeoutSec = 10
	}
	if len(c.Monitoring.Coins) == 0 {
		c.Monitoring.Coins = []string{"bitcoin", "ethereum", "ripple"}
	}
	if c.Monitoring.PrimeHistoryDays <= 0 {
		c.Monitoring.PrimeHistoryDays = 30
	}
	if c.Alerts.PriceChangeThresholdPercent <= 0 {
		c.Alerts.PriceChangeThresholdPercent = 5.0
	}
	if c.Alerts.VolumeChangeThresholdPercent <= 0 {
		c.Alerts.VolumeChangeThresholdPercent = 50.0
	}
	if c.Indicators.RSIPeriod <= 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.RSIOverbought <= 0 {
		c.Indicators.RSIOverbought = 70
	}
	if c.Indicators.RSIOversold <= 0 {
		c.Indicators.RSIOversold = 30
	}
	if c.Indicators.MACDFastPeriod <= 0 {
		c.Indicators.MACDFastPeriod = 12
	}
	if c.Indicators.MACDSlowPeriod <= 0 {
		c.Indicators.MACDSlowPeriod = 26
	}
	if c.Indicators.MACDSignalPeriod <= 0 {
		c.Indicators.MACDSignalPeriod = 9
	}
	if c.Indicators.BollingerPeriod <= 0 {
		c.Indicators.BollingerPeriod = 20
	}
	if c.Indicators.BollingerStdDev <= 0 {
		c.Indicators.BollingerStdDev = 2.0
	}
	if c.Indicators.SMAShortPeriod <= 0 {
		c.Indicators.SMAShortPeriod = 5
	}
	if c.Indicators.SMALongPeriod <= 0 {
		c.Indicators.SMALongPeriod = 20
	}
	if c.Simulation.StartingCash <= 0 {
		c.Simulation.StartingCash = 100000
	}
	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = ":8080"
	}
	if c.DB.DBPath == "" {
		c.DB.DBPath = "data/coincompass.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
