package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"DiveHouse/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	House struct {
		Account             string `yaml:"account"`
		OpeningBalance      uint64 `yaml:"opening_balance"`
		OpenLiquidityPPM    uint32 `yaml:"open_liquidity_ppm"`
		MaxExposure         uint64 `yaml:"max_exposure"`
		MinOperatingReserve uint64 `yaml:"min_operating_reserve"`
		TimeoutTicks        uint64 `yaml:"timeout_ticks"`
	} `yaml:"house"`
	Game  model.GameParams `yaml:"game"`
	Sweep struct {
		Cron string `yaml:"cron"`
	} `yaml:"sweep"`
	Webhook struct {
		URL        string `yaml:"url"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"webhook"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("DIVEHOUSE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DIVEHOUSE_HOUSE_ACCOUNT"); v != "" {
		cfg.House.Account = v
	}
	if v := os.Getenv("DIVEHOUSE_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("DIVEHOUSE_TIMEOUT_TICKS"); v != "" {
		if ticks, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.House.TimeoutTicks = ticks
		}
	}
	if v := os.Getenv("DIVEHOUSE_OPENING_BALANCE"); v != "" {
		if amount, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.House.OpeningBalance = amount
		}
	}
	if v := os.Getenv("CRON_SWEEP"); v != "" {
		cfg.Sweep.Cron = v
	}

	// Defaults
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.House.Account == "" {
		cfg.House.Account = "house"
	}
	if cfg.House.OpenLiquidityPPM == 0 {
		cfg.House.OpenLiquidityPPM = 1_000_000
	}
	if cfg.House.OpeningBalance == 0 {
		cfg.House.OpeningBalance = 1_000_000_000
	}
	if cfg.House.TimeoutTicks == 0 {
		cfg.House.TimeoutTicks = 9000
	}
	if cfg.Sweep.Cron == "" {
		cfg.Sweep.Cron = "0 * * * * *"
	}
	if cfg.Webhook.MaxRetries == 0 {
		cfg.Webhook.MaxRetries = 3
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/divehouse.db"
	}
	if cfg.Game == (model.GameParams{}) {
		cfg.Game = model.DefaultParams()
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.House.Account == "" {
		return fmt.Errorf("house.account is required")
	}
	if c.House.OpenLiquidityPPM > 1_000_000 {
		return fmt.Errorf("house.open_liquidity_ppm must not exceed 1000000")
	}
	if c.House.TimeoutTicks == 0 {
		return fmt.Errorf("house.timeout_ticks must be positive")
	}
	if err := c.Game.Validate(); err != nil {
		return fmt.Errorf("game: %w", err)
	}
	return nil
}
