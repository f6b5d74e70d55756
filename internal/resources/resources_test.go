package resources

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
)

func newTestManager() *Manager {
	return NewManager(DefaultRates(), DefaultCosts())
}

func TestSeverityLadder(t *testing.T) {
	cases := []struct {
		name string
		m    Metrics
		want Severity
	}{
		{"full", Metrics{Fuel: 100, Thermal: 0, Hull: 100}, SeverityOperational},
		{"low fuel", Metrics{Fuel: 49, Thermal: 0, Hull: 100}, SeverityDegraded},
		{"hot", Metrics{Fuel: 100, Thermal: 61, Hull: 100}, SeverityDegraded},
		{"critical fuel", Metrics{Fuel: 19, Thermal: 0, Hull: 100}, SeverityCritical},
		{"critical hull", Metrics{Fuel: 100, Thermal: 0, Hull: 19}, SeverityCritical},
		{"no fuel", Metrics{Fuel: 0, Thermal: 0, Hull: 100}, SeverityDepleted},
		{"overheated", Metrics{Fuel: 100, Thermal: 100, Hull: 100}, SeverityDepleted},
		{"hull gone", Metrics{Fuel: 100, Thermal: 0, Hull: 0}, SeverityDepleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.m.Severity(); got != tc.want {
				t.Errorf("severity = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTickFuelBurn(t *testing.T) {
	m := newTestManager()
	start := time.Now()
	m.TrackWithLevels("pilot-1", 0.5, 100, start)

	// 1s of thrust at 0.5/s empties the tank and raises the trigger.
	trigger, err := m.Tick("pilot-1", start.Add(time.Second), true, false)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if trigger == nil {
		t.Fatal("expected depletion trigger")
	}
	if trigger.Cause != fleet.CauseResourceDepletion {
		t.Errorf("cause = %v, want resource depletion", trigger.Cause)
	}

	metrics, err := m.Get("pilot-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if metrics.Fuel != 0 {
		t.Errorf("fuel = %v, want 0", metrics.Fuel)
	}
}

func TestTickThermal(t *testing.T) {
	m := newTestManager()
	start := time.Now()
	m.Track("pilot-1", start)

	// 10s in combat: thermal climbs at 0.3/s.
	if _, err := m.Tick("pilot-1", start.Add(10*time.Second), false, true); err != nil {
		t.Fatalf("combat tick: %v", err)
	}
	metrics, _ := m.Get("pilot-1")
	if math.Abs(metrics.Thermal-3.0) > 1e-9 {
		t.Errorf("thermal = %v, want 3.0", metrics.Thermal)
	}

	// 10s idle: dissipates at 0.1/s.
	if _, err := m.Tick("pilot-1", start.Add(20*time.Second), false, false); err != nil {
		t.Fatalf("idle tick: %v", err)
	}
	metrics, _ = m.Get("pilot-1")
	if math.Abs(metrics.Thermal-2.0) > 1e-9 {
		t.Errorf("thermal = %v, want 2.0 after dissipation", metrics.Thermal)
	}
}

func TestTickRejectsStaleTimestamp(t *testing.T) {
	m := newTestManager()
	start := time.Now()
	m.Track("pilot-1", start)

	_, err := m.Tick("pilot-1", start.Add(-time.Second), true, false)
	if !errors.Is(err, fleet.ErrValidation) {
		t.Fatalf("stale tick: err = %v, want ErrValidation", err)
	}
}

func TestTickUnknownEntity(t *testing.T) {
	m := newTestManager()
	_, err := m.Tick("ghost", time.Now(), true, false)
	if !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestApplyDamage(t *testing.T) {
	m := newTestManager()
	m.Track("pilot-1", time.Now())

	trigger, err := m.ApplyDamage("pilot-1", 30)
	if err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	if trigger != nil {
		t.Error("hull at 70 should not trigger")
	}

	// Overkill clamps at zero and triggers combat destruction.
	trigger, err = m.ApplyDamage("pilot-1", 500)
	if err != nil {
		t.Fatalf("apply damage: %v", err)
	}
	if trigger == nil {
		t.Fatal("expected destruction trigger")
	}
	if trigger.Cause != fleet.CauseCombatDestruction {
		t.Errorf("cause = %v, want combat destruction", trigger.Cause)
	}

	metrics, _ := m.Get("pilot-1")
	if metrics.Hull != 0 {
		t.Errorf("hull = %v, want clamped 0", metrics.Hull)
	}
}

func TestApplyDamageNegative(t *testing.T) {
	m := newTestManager()
	m.Track("pilot-1", time.Now())

	if _, err := m.ApplyDamage("pilot-1", -10); !errors.Is(err, fleet.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestRefitRestoresAndCharges(t *testing.T) {
	m := newTestManager()
	start := time.Now()
	m.TrackWithLevels("pilot-1", 40, 70, start)

	cost, err := m.Refuel("pilot-1", 60, 1000)
	if err != nil {
		t.Fatalf("refuel: %v", err)
	}
	if cost != 600 { // 60 units × 10/unit
		t.Errorf("refuel cost = %v, want 600", cost)
	}

	cost, err = m.Repair("pilot-1", 30, 1000)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if cost != 450 { // 30 units × 15/unit
		t.Errorf("repair cost = %v, want 450", cost)
	}

	metrics, _ := m.Get("pilot-1")
	if metrics.Fuel != 100 || metrics.Hull != 100 {
		t.Errorf("after refit fuel=%v hull=%v, want 100/100", metrics.Fuel, metrics.Hull)
	}
}

func TestRefitInsufficientCredits(t *testing.T) {
	m := newTestManager()
	m.TrackWithLevels("pilot-1", 10, 100, time.Now())

	_, err := m.Refuel("pilot-1", 90, 50)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// Failed refit must not touch the levels.
	metrics, _ := m.Get("pilot-1")
	if metrics.Fuel != 10 {
		t.Errorf("fuel = %v, want untouched 10", metrics.Fuel)
	}
}

func TestRefitCostsQuote(t *testing.T) {
	m := newTestManager()
	start := time.Now()
	m.TrackWithLevels("pilot-1", 60, 80, start)
	if _, err := m.Tick("pilot-1", start.Add(10*time.Second), false, true); err != nil {
		t.Fatalf("tick: %v", err)
	}

	quote, err := m.RefitCosts("pilot-1")
	if err != nil {
		t.Fatalf("refit costs: %v", err)
	}
	if math.Abs(quote.RefuelToFull-400) > 1e-9 { // 40 × 10
		t.Errorf("refuel quote = %v, want 400", quote.RefuelToFull)
	}
	if math.Abs(quote.RepairToFull-300) > 1e-9 { // 20 × 15
		t.Errorf("repair quote = %v, want 300", quote.RepairToFull)
	}
	if math.Abs(quote.CoolToIdle-15) > 1e-9 { // 3 thermal × 5
		t.Errorf("cooling quote = %v, want 15", quote.CoolToIdle)
	}
}

func TestUntrack(t *testing.T) {
	m := newTestManager()
	m.Track("pilot-1", time.Now())
	m.Untrack("pilot-1")

	if m.Tracked("pilot-1") {
		t.Error("pilot-1 still tracked after untrack")
	}
	if _, err := m.Get("pilot-1"); !errors.Is(err, fleet.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
