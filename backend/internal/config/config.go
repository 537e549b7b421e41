package config

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/account"
)

const insecureJWTSecret = "!!REPLACE_THIS_WITH_A_STRONG_SECRET_KEY!!"

type Config struct {
	Server struct {
		Port string `envconfig:"PORT" default:"8080"`
	}

	// Registered accounts are disabled when DATABASE_URL is empty.
	Database struct {
		URL string `envconfig:"DATABASE_URL"`
	}

	Auth struct {
		JWTSecret string        `envconfig:"JWT_SECRET"`
		TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	}

	Demo struct {
		Preset          string        `envconfig:"DEMO_PRESET" default:"standard"`
		PresetsFile     string        `envconfig:"DEMO_PRESETS_FILE"`
		StartingBalance string        `envconfig:"DEMO_STARTING_BALANCE"`
		Currency        string        `envconfig:"DEMO_CURRENCY"`
		TTL             time.Duration `envconfig:"DEMO_TTL"`
		IDPrefix        string        `envconfig:"DEMO_ID_PREFIX" default:"demo_"`
		JanitorInterval time.Duration `envconfig:"DEMO_JANITOR_INTERVAL" default:"1m"`
	}

	Trading struct {
		AllowedSymbols            []string `envconfig:"TRADING_ALLOWED_SYMBOLS" default:"BTC,ETH,BNB,ADA,SOL,XRP,DOT,LTC,DOGE"`
		RegisteredStartingBalance string   `envconfig:"REGISTERED_STARTING_BALANCE" default:"10000"`
	}

	Kafka struct {
		Brokers        []string      `envconfig:"KAFKA_BROKERS"`
		Topic          string        `envconfig:"KAFKA_TOPIC" default:"trade_executed"`
		PublishTimeout time.Duration `envconfig:"KAFKA_PUBLISH_TIMEOUT" default:"2s"`
	}

	Ticker struct {
		Interval time.Duration `envconfig:"TICKER_INTERVAL" default:"2s"`
	}

	Log struct {
		Level       string `envconfig:"LOG_LEVEL" default:"info"`
		Development bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	}

	// Resolved from the fields above by Load.
	DemoPreset                account.Preset  `ignored:"true"`
	RegisteredStartingBalance decimal.Decimal `ignored:"true"`
	InsecureJWTSecret         bool            `ignored:"true"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}

	if err := cfg.resolve(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	return &cfg, nil
}

func (cfg *Config) resolve() error {
	presets, err := account.LoadPresets(cfg.Demo.PresetsFile)
	if err != nil {
		return err
	}
	preset, ok := presets[cfg.Demo.Preset]
	if !ok {
		return fmt.Errorf("unknown demo preset %q", cfg.Demo.Preset)
	}

	if cfg.Demo.StartingBalance != "" {
		balance, err := decimal.NewFromString(cfg.Demo.StartingBalance)
		if err != nil {
			return errors.Wrap(err, "DEMO_STARTING_BALANCE")
		}
		preset.StartingBalance = balance
	}
	if cfg.Demo.Currency != "" {
		preset.Currency = cfg.Demo.Currency
	}
	if cfg.Demo.TTL != 0 {
		preset.TTL = cfg.Demo.TTL
	}
	if err := preset.Validate(); err != nil {
		return err
	}
	cfg.DemoPreset = preset

	if cfg.Demo.JanitorInterval <= 0 {
		return fmt.Errorf("DEMO_JANITOR_INTERVAL must be positive, got %s", cfg.Demo.JanitorInterval)
	}
	if cfg.Ticker.Interval <= 0 {
		return fmt.Errorf("TICKER_INTERVAL must be positive, got %s", cfg.Ticker.Interval)
	}
	if cfg.Kafka.PublishTimeout <= 0 {
		return fmt.Errorf("KAFKA_PUBLISH_TIMEOUT must be positive, got %s", cfg.Kafka.PublishTimeout)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.Auth.TokenTTL)
	}

	registered, err := decimal.NewFromString(cfg.Trading.RegisteredStartingBalance)
	if err != nil {
		return errors.Wrap(err, "REGISTERED_STARTING_BALANCE")
	}
	if registered.IsNegative() {
		return fmt.Errorf("REGISTERED_STARTING_BALANCE must not be negative, got %s", registered)
	}
	cfg.RegisteredStartingBalance = registered

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = insecureJWTSecret
		cfg.InsecureJWTSecret = true
	}
	return nil
}
