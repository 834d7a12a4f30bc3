// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Store backends read their own
// connection settings (REPLAY_STORE, REPLAY_SQLITE_PATH, DATABASE_URL)
// inside the store package factory.
type Config struct {
	Addr string `env:"LISTEN_ADDR" envDefault:":8080"`

	DefaultMode  string `env:"DEFAULT_MODE" envDefault:"standard"`
	DefaultSeats int    `env:"DEFAULT_SEATS" envDefault:"5"`
	MinConnected int    `env:"MIN_CONNECTED" envDefault:"2"`

	RejoinWindow time.Duration `env:"REJOIN_WINDOW" envDefault:"60s"`
	TurnTimeout  time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`

	// DistributionPath points at a JSON role-distribution override for the
	// standard mode. Empty keeps the built-in table.
	DistributionPath string `env:"ROLE_DISTRIBUTION_PATH"`

	// LuaModesDir holds *.lua rule scripts registered as extra modes.
	LuaModesDir string `env:"LUA_MODES_DIR"`
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DefaultSeats < 2 {
		return Config{}, fmt.Errorf("DEFAULT_SEATS must be at least 2, got %d", cfg.DefaultSeats)
	}
	return cfg, nil
}
