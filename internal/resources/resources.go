// Package resources tracks per-entity consumables (fuel, thermal load,
// hull integrity) and raises death triggers when any of them is exhausted.
package resources

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// ErrInsufficientCredits marks a refit request the operator cannot afford.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Severity is the resource state ladder. It only worsens on its own;
// operators must spend credits to move an entity back down.
type Severity uint8

const (
	SeverityOperational Severity = iota
	SeverityDegraded
	SeverityCritical
	SeverityDepleted
)

// String returns a log-friendly name for the severity.
func (s Severity) String() string {
	switch s {
	case SeverityOperational:
		return "operational"
	case SeverityDegraded:
		return "degraded"
	case SeverityCritical:
		return "critical"
	default:
		return "depleted"
	}
}

// Metrics holds one entity's consumable levels. All three clamp to [0,100].
type Metrics struct {
	Fuel       float64   `json:"fuel"`
	Thermal    float64   `json:"thermal"`
	Hull       float64   `json:"hull"`
	LastUpdate time.Time `json:"last_update"`
}

// Severity classifies the current levels on the state ladder.
func (m *Metrics) Severity() Severity {
	switch {
	case m.Fuel <= 0 || m.Thermal >= 100 || m.Hull <= 0:
		return SeverityDepleted
	case m.Fuel < 20 || m.Thermal > 80 || m.Hull < 20:
		return SeverityCritical
	case m.Fuel < 50 || m.Thermal > 60 || m.Hull < 50:
		return SeverityDegraded
	default:
		return SeverityOperational
	}
}

// Operational reports whether the entity can still fly.
func (m *Metrics) Operational() bool {
	return m.Fuel > 0 && m.Thermal < 100 && m.Hull > 0
}

// Rates are the per-second consumption and dissipation constants.
type Rates struct {
	FuelConsumption    float64 // % per second while thrust is active
	ThermalGeneration  float64 // % per second while in combat
	ThermalDissipation float64 // % per second while idle
}

// DefaultRates mirrors the canonical burn model.
func DefaultRates() Rates {
	return Rates{
		FuelConsumption:    0.5,
		ThermalGeneration:  0.3,
		ThermalDissipation: 0.1,
	}
}

// Costs are the per-unit credit prices for refit operations.
type Costs struct {
	RefuelPerUnit  float64
	RepairPerUnit  float64
	CoolingPerUnit float64
}

// DefaultCosts mirrors the canonical refit economy.
func DefaultCosts() Costs {
	return Costs{
		RefuelPerUnit:  10,
		RepairPerUnit:  15,
		CoolingPerUnit: 5,
	}
}

// DeathTrigger is raised when an entity crosses into the depleted state.
// The arbiter, not this package, decides whether the entity actually dies.
type DeathTrigger struct {
	EntityID fleet.EntityID
	Cause    fleet.DeathCause
}

// Manager owns the resource metrics of every active entity. One mutex
// guards the tracking map; ticks for different entities may arrive from
// concurrent skirmish workers.
type Manager struct {
	rates Rates
	costs Costs

	mu      sync.Mutex
	tracked map[fleet.EntityID]*Metrics
}

// NewManager creates a manager with the given rate and cost tables.
func NewManager(rates Rates, costs Costs) *Manager {
	return &Manager{
		rates:   rates,
		costs:   costs,
		tracked: make(map[fleet.EntityID]*Metrics),
	}
}

// Track starts resource accounting for an entity at full levels.
func (m *Manager) Track(id fleet.EntityID, now time.Time) {
	m.TrackWithLevels(id, 100, 100, now)
}

// TrackWithLevels starts accounting at explicit fuel and hull levels.
func (m *Manager) TrackWithLevels(id fleet.EntityID, fuel, hull float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracked[id]; ok {
		return
	}
	m.tracked[id] = &Metrics{
		Fuel:       clamp(fuel),
		Thermal:    0,
		Hull:       clamp(hull),
		LastUpdate: now,
	}
}

// Untrack stops accounting for an entity, typically after a graveyard move.
func (m *Manager) Untrack(id fleet.EntityID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tracked, id)
}

// Tracked reports whether the entity is under resource accounting.
func (m *Manager) Tracked(id fleet.EntityID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tracked[id]
	return ok
}

// Get returns a copy of the entity's current metrics.
func (m *Manager) Get(id fleet.EntityID) (Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	metrics, ok := m.tracked[id]
	if !ok {
		return Metrics{}, fmt.Errorf("resources %s: %w", id, fleet.ErrNotFound)
	}
	return *metrics, nil
}

// Tick advances one entity's consumption to the given wall-clock instant.
// Fuel burns only while thrust is active; thermal load rises in combat and
// dissipates otherwise; hull never changes here. A tick carrying a
// timestamp older than the stored one is rejected, so reordered updates
// cannot roll resources back. Returns a death trigger when the entity
// crosses into the depleted state.
func (m *Manager) Tick(id fleet.EntityID, now time.Time, thrustActive, inCombat bool) (*DeathTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.tracked[id]
	if !ok {
		return nil, fmt.Errorf("tick %s: %w", id, fleet.ErrNotFound)
	}
	if !now.After(metrics.LastUpdate) {
		return nil, fmt.Errorf("tick %s: stale timestamp %s: %w", id, now.Format(time.RFC3339Nano), fleet.ErrValidation)
	}

	dt := now.Sub(metrics.LastUpdate).Seconds()

	if thrustActive {
		metrics.Fuel = clamp(metrics.Fuel - m.rates.FuelConsumption*dt)
	}
	if inCombat {
		metrics.Thermal = clamp(metrics.Thermal + m.rates.ThermalGeneration*dt)
	} else {
		metrics.Thermal = clamp(metrics.Thermal - m.rates.ThermalDissipation*dt)
	}
	metrics.LastUpdate = now

	if !metrics.Operational() {
		slog.Warn("resource depletion",
			"entity", id,
			"fuel", fmt.Sprintf("%.1f", metrics.Fuel),
			"thermal", fmt.Sprintf("%.1f", metrics.Thermal),
			"hull", fmt.Sprintf("%.1f", metrics.Hull),
		)
		return &DeathTrigger{EntityID: id, Cause: fleet.CauseResourceDepletion}, nil
	}
	return nil, nil
}

// ApplyDamage reduces hull integrity, clamped at zero. Reaching zero raises
// a combat-destruction trigger immediately, independent of the tick path.
func (m *Manager) ApplyDamage(id fleet.EntityID, amount float64) (*DeathTrigger, error) {
	if amount < 0 {
		return nil, fmt.Errorf("apply damage %s: negative amount: %w", id, fleet.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.tracked[id]
	if !ok {
		return nil, fmt.Errorf("apply damage %s: %w", id, fleet.ErrNotFound)
	}

	metrics.Hull = clamp(metrics.Hull - amount)
	if metrics.Hull <= 0 {
		return &DeathTrigger{EntityID: id, Cause: fleet.CauseCombatDestruction}, nil
	}
	return nil, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
