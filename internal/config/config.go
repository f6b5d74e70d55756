// Package config loads campaign configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the campaign runtime. Defaults match the
// canonical balance.
type Config struct {
	// Storage
	DBPath string `env:"FLEET_DB_PATH" envDefault:"fleet.db"`

	// Commit pipeline
	BatchSize    int           `env:"FLEET_BATCH_SIZE" envDefault:"10"`
	FlushTimeout time.Duration `env:"FLEET_FLUSH_TIMEOUT" envDefault:"5s"`

	// Selection
	PrestigeWeight float64 `env:"FLEET_PRESTIGE_WEIGHT" envDefault:"0.3"`
	EliteFraction  float64 `env:"FLEET_ELITE_FRACTION" envDefault:"0.2"`
	TournamentSize int     `env:"FLEET_TOURNAMENT_SIZE" envDefault:"3"`

	// Resource drain rates, units per second
	FuelBurnRate     float64 `env:"FLEET_FUEL_BURN_RATE" envDefault:"0.5"`
	ThermalCombat    float64 `env:"FLEET_THERMAL_COMBAT" envDefault:"0.3"`
	ThermalDissipate float64 `env:"FLEET_THERMAL_DISSIPATE" envDefault:"0.1"`

	// Refit costs, credits per unit
	RefuelCost  float64 `env:"FLEET_REFUEL_COST" envDefault:"10"`
	RepairCost  float64 `env:"FLEET_REPAIR_COST" envDefault:"15"`
	CoolingCost float64 `env:"FLEET_COOLING_COST" envDefault:"5"`

	// Death save thresholds, roll-under on a d20
	SaveCombat    int `env:"FLEET_SAVE_COMBAT" envDefault:"12"`
	SaveResource  int `env:"FLEET_SAVE_RESOURCE" envDefault:"10"`
	SaveAbandoned int `env:"FLEET_SAVE_ABANDONED" envDefault:"8"`
	SaveSystem    int `env:"FLEET_SAVE_SYSTEM" envDefault:"14"`

	// Campaign loop
	Seed         int64         `env:"FLEET_SEED" envDefault:"0"`
	RosterSize   int           `env:"FLEET_ROSTER_SIZE" envDefault:"12"`
	SquadSize    int           `env:"FLEET_SQUAD_SIZE" envDefault:"4"`
	TickInterval time.Duration `env:"FLEET_TICK_INTERVAL" envDefault:"1s"`
	Speed        float64       `env:"FLEET_SPEED" envDefault:"1.0"`
	StartCredits float64       `env:"FLEET_START_CREDITS" envDefault:"1000"`
	RandomOrgKey string        `env:"FLEET_RANDOM_ORG_KEY"`
	LogLevel     string        `env:"FLEET_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BatchSize <= 0 {
		return Config{}, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.FlushTimeout <= 0 {
		return Config{}, fmt.Errorf("flush timeout must be positive, got %s", cfg.FlushTimeout)
	}
	if cfg.SquadSize > cfg.RosterSize {
		return Config{}, fmt.Errorf("squad size %d exceeds roster size %d", cfg.SquadSize, cfg.RosterSize)
	}
	return cfg, nil
}
