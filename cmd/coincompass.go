package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gum798/CoinCompass/pkg/app"
	"github.com/gum798/CoinCompass/utilities"
)

const banner = `
	_________        .__       _________
	\_   ___ \  ____ |__| ____ \_   ___ \  ____   _____ ___________    ______ ______
	/    \  \/ /  _ \|  |/    \/    \  \/ /  _ \ /     \\____ \__  \  /  ___//  ___/
	\     \___(  <_> )  |   |  \     \___(  <_> )  Y Y  \  |_> > __ \_\___ \ \___ \
	 \______  /\____/|__|___|  /\______  /\____/|__|_|  /   __(____  /____  >____  >
	        \/               \/        \/             \/|__|       \/     \/     \/

	CoinCompass -- Crypto Market Monitoring & Paper Trading Dashboard
[]=========================================================================[]
`

var (
	cfgFile string
	cfg     utilities.AppConfig
	logger  *utilities.Logger
)

// rootCmd represents the base command for the CoinCompass CLI.
var rootCmd = &cobra.Command{
	Use:   "coincompass",
	Short: "CoinCompass market monitoring dashboard",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, logger, err = LoadConfig(cfgFile)
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Print(banner, "\n")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.LogWarn("Received signal: %v, initiating graceful shutdown.", sig)
			cancel()
		}()

		if err := app.RunWithConfigPath(ctx, &cfg, logger, cfgFile); err != nil {
			return err
		}
		logger.LogInfo("CoinCompass shutdown complete at %s", time.Now().Format(time.RFC1123))
		return nil
	},
}

// LoadConfig loads the AppConfig from the JSON file via viper, layering in
// environment variables (including a .env file when present), and creates
// the Logger instance.
func LoadConfig(path string) (utilities.AppConfig, *utilities.Logger, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	viper.AutomaticEnv()

	// Recognized environment overrides for the scheduler.
	_ = viper.BindEnv("monitoring.tick_interval_sec", "MONITORING_INTERVAL")
	_ = viper.BindEnv("monitoring.fetch_interval_sec", "API_CALL_INTERVAL")
	_ = viper.BindEnv("monitoring.initial_delay_sec", "MONITORING_INITIAL_DELAY")
	_ = viper.BindEnv("monitoring.api_calls_enabled", "API_CALLS_ENABLED")
	_ = viper.BindEnv("coingecko.api_key", "COINGECKO_API_KEY")
	_ = viper.BindEnv("macro.api_key", "FRED_API_KEY")
	_ = viper.BindEnv("discord.webhook_url", "DISCORD_WEBHOOK_URL")

	// Fetching defaults to enabled; the zero value of a bool cannot express that.
	viper.SetDefault("monitoring.api_calls_enabled", true)
	viper.SetDefault("monitoring.initial_delay_sec", 60)

	if err := viper.ReadInConfig(); err != nil {
		return utilities.AppConfig{}, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config utilities.AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return utilities.AppConfig{}, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// MONITORING_COINS is a comma-separated list and needs manual splitting.
	if coins := os.Getenv("MONITORING_COINS"); coins != "" {
		config.Monitoring.Coins = nil
		for _, c := range strings.Split(coins, ",") {
			if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
				config.Monitoring.Coins = append(config.Monitoring.Coins, trimmed)
			}
		}
	}

	config.ApplyDefaults()

	logLevel, err := utilities.ParseLogLevel(config.Logging.Level)
	if err != nil {
		return utilities.AppConfig{}, nil, fmt.Errorf("invalid log level in config: %w", err)
	}

	return config, utilities.NewLogger(logLevel), nil
}

// Execute runs the root command.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.json", "config file (default is config/config.json)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
