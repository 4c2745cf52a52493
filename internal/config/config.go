package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"tradecore/internal/portfolio"
	"tradecore/internal/risk"
	"tradecore/internal/safety"
)

// Config is the full engine configuration: trading parameters, risk
// limits, breaker settings and exchange credentials. Credentials are
// never stored in the JSON file; they come from the environment.
type Config struct {
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`

	Trading struct {
		Symbol         string   `json:"symbol"`
		Interval       string   `json:"interval"`
		DataFile       string   `json:"data_file"`
		InitialBalance float64  `json:"initial_balance"`
		Commission     float64  `json:"commission"`
		Strategies     []string `json:"strategies"`
	} `json:"trading"`

	Sizing struct {
		EquityFraction float64 `json:"equity_fraction"`
		RiskPerTrade   float64 `json:"risk_per_trade"`
	} `json:"sizing"`

	Risk            risk.Limits                  `json:"risk"`
	Session         *SessionSettings             `json:"session,omitempty"`
	StrategyBreaker safety.StrategyBreakerConfig `json:"strategy_breaker"`
	GlobalBreaker   safety.GlobalBreakerConfig   `json:"global_breaker"`

	Exchange struct {
		Name      string `json:"name"`
		APIKey    string `json:"-"`
		APISecret string `json:"-"`
		Demo      bool   `json:"demo"`
		Category  string `json:"category"`
	} `json:"exchange"`

	Monitoring struct {
		PrometheusPort int `json:"prometheus_port"`
		HealthPort     int `json:"health_port"`
	} `json:"monitoring"`

	Notifications struct {
		TelegramToken  string `json:"-"`
		TelegramChatID string `json:"-"`
	} `json:"-"`
}

// SessionSettings is the JSON-friendly form of the venue session rule.
type SessionSettings struct {
	Timezone           string                      `json:"timezone"`
	OpenMinute         int                         `json:"open_minute"`
	CloseMinute        int                         `json:"close_minute"`
	CutoffMinute       int                         `json:"cutoff_minute"`
	StrictCircuitCheck bool                        `json:"strict_circuit_check"`
	CircuitBands       map[string]risk.CircuitBand `json:"circuit_bands,omitempty"`
	MarginBySymbol     map[string]float64          `json:"margin_by_symbol,omitempty"`
}

// ToSessionConfig resolves the timezone and builds the risk engine's
// session configuration.
func (s *SessionSettings) ToSessionConfig() (*risk.SessionConfig, error) {
	if s == nil {
		return nil, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid session timezone %q: %w", s.Timezone, err)
	}
	return &risk.SessionConfig{
		Location:           loc,
		OpenMinute:         s.OpenMinute,
		CloseMinute:        s.CloseMinute,
		CutoffMinute:       s.CutoffMinute,
		StrictCircuitCheck: s.StrictCircuitCheck,
		CircuitBands:       s.CircuitBands,
		MarginBySymbol:     s.MarginBySymbol,
	}, nil
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{
		Environment:     getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Risk:            risk.DefaultLimits(),
		StrategyBreaker: safety.DefaultStrategyBreakerConfig(),
		GlobalBreaker:   safety.DefaultGlobalBreakerConfig(),
	}

	cfg.Trading.Symbol = "BTCUSDT"
	cfg.Trading.Interval = "1h"
	cfg.Trading.InitialBalance = portfolio.DefaultConfig().InitialCash
	cfg.Trading.Commission = 0.0005
	cfg.Trading.Strategies = []string{"ema_cross"}

	cfg.Exchange.Name = "bybit"
	cfg.Exchange.Demo = true
	cfg.Exchange.Category = "spot"

	cfg.Monitoring.PrometheusPort = 8080
	cfg.Monitoring.HealthPort = 8081

	return cfg
}

// Load reads the JSON config at path over the defaults, then applies
// environment overrides. An empty path loads defaults and environment
// only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file values.
// Credentials only live here.
func (c *Config) applyEnvOverrides() {
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Trading.Symbol = getEnv("TRADING_SYMBOL", c.Trading.Symbol)
	c.Trading.Interval = getEnv("TRADING_INTERVAL", c.Trading.Interval)
	c.Trading.InitialBalance = getEnvFloat("INITIAL_BALANCE", c.Trading.InitialBalance)
	c.Exchange.Demo = getEnvBool("BYBIT_DEMO", c.Exchange.Demo)
	c.Notifications.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notifications.TelegramToken)
	c.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notifications.TelegramChatID)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Trading.Symbol == "" {
		return fmt.Errorf("config: trading symbol is required")
	}
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("config: initial balance must be positive, got %.2f", c.Trading.InitialBalance)
	}
	if c.Trading.Commission < 0 || c.Trading.Commission >= 1 {
		return fmt.Errorf("config: commission must be in [0, 1), got %.4f", c.Trading.Commission)
	}
	if len(c.Trading.Strategies) == 0 {
		return fmt.Errorf("config: at least one strategy is required")
	}
	if c.Session != nil {
		if _, err := c.Session.ToSessionConfig(); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
