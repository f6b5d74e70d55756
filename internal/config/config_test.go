package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.BatchSize != 10 {
		t.Errorf("batch size = %d, want 10", cfg.BatchSize)
	}
	if cfg.FlushTimeout != 5*time.Second {
		t.Errorf("flush timeout = %s, want 5s", cfg.FlushTimeout)
	}
	if cfg.PrestigeWeight != 0.3 {
		t.Errorf("prestige weight = %v, want 0.3", cfg.PrestigeWeight)
	}
	if cfg.EliteFraction != 0.2 {
		t.Errorf("elite fraction = %v, want 0.2", cfg.EliteFraction)
	}
	if cfg.TournamentSize != 3 {
		t.Errorf("tournament size = %d, want 3", cfg.TournamentSize)
	}
	if cfg.FuelBurnRate != 0.5 {
		t.Errorf("fuel burn rate = %v, want 0.5", cfg.FuelBurnRate)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FLEET_BATCH_SIZE", "25")
	t.Setenv("FLEET_FLUSH_TIMEOUT", "2s")
	t.Setenv("FLEET_DB_PATH", "/tmp/test-fleet.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("batch size = %d, want 25", cfg.BatchSize)
	}
	if cfg.FlushTimeout != 2*time.Second {
		t.Errorf("flush timeout = %s, want 2s", cfg.FlushTimeout)
	}
	if cfg.DBPath != "/tmp/test-fleet.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("FLEET_BATCH_SIZE", "0")
	if _, err := Load(); err == nil {
		t.Fatal("batch size 0 should be rejected")
	}
}

func TestLoadRejectsOversizedSquad(t *testing.T) {
	t.Setenv("FLEET_SQUAD_SIZE", "20")
	t.Setenv("FLEET_ROSTER_SIZE", "10")
	if _, err := Load(); err == nil {
		t.Fatal("squad larger than roster should be rejected")
	}
}
