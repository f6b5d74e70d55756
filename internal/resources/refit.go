package resources

import (
	"fmt"
	"log/slog"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// RefitQuote prices a full restoration of one entity.
type RefitQuote struct {
	RefuelToFull float64 `json:"refuel_to_full"`
	RepairToFull float64 `json:"repair_to_full"`
	CoolToIdle   float64 `json:"cool_to_idle"`
}

// Total sums the quote.
func (q RefitQuote) Total() float64 {
	return q.RefuelToFull + q.RepairToFull + q.CoolToIdle
}

// Refuel restores fuel, charging amount × the per-unit rate against the
// given credit balance. Returns the cost charged. The state machine never
// self-heals: this is the only way fuel goes back up.
func (m *Manager) Refuel(id fleet.EntityID, amount, credits float64) (float64, error) {
	return m.refit(id, amount, credits, m.costs.RefuelPerUnit, "refuel", func(metrics *Metrics) {
		metrics.Fuel = clamp(metrics.Fuel + amount)
	})
}

// Repair restores hull integrity at the repair rate.
func (m *Manager) Repair(id fleet.EntityID, amount, credits float64) (float64, error) {
	return m.refit(id, amount, credits, m.costs.RepairPerUnit, "repair", func(metrics *Metrics) {
		metrics.Hull = clamp(metrics.Hull + amount)
	})
}

// Cool sheds thermal load at the cooling rate.
func (m *Manager) Cool(id fleet.EntityID, amount, credits float64) (float64, error) {
	return m.refit(id, amount, credits, m.costs.CoolingPerUnit, "cool", func(metrics *Metrics) {
		metrics.Thermal = clamp(metrics.Thermal - amount)
	})
}

func (m *Manager) refit(id fleet.EntityID, amount, credits, unitCost float64, op string, mutate func(*Metrics)) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%s %s: non-positive amount: %w", op, id, fleet.ErrValidation)
	}

	cost := amount * unitCost
	if credits < cost {
		return 0, fmt.Errorf("%s %s: need %.0f credits, have %.0f: %w", op, id, cost, credits, ErrInsufficientCredits)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.tracked[id]
	if !ok {
		return 0, fmt.Errorf("%s %s: %w", op, id, fleet.ErrNotFound)
	}

	before := metrics.Severity()
	mutate(metrics)
	after := metrics.Severity()

	slog.Info("refit applied",
		"entity", id,
		"op", op,
		"amount", fmt.Sprintf("%.1f", amount),
		"cost", fmt.Sprintf("%.0f", cost),
		"severity", after.String(),
	)
	if after < before {
		slog.Info("severity recovered", "entity", id, "from", before.String(), "to", after.String())
	}
	return cost, nil
}

// RefitCosts quotes restoring the entity to full fuel and hull and idle
// thermal load.
func (m *Manager) RefitCosts(id fleet.EntityID) (RefitQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.tracked[id]
	if !ok {
		return RefitQuote{}, fmt.Errorf("refit costs %s: %w", id, fleet.ErrNotFound)
	}

	return RefitQuote{
		RefuelToFull: (100 - metrics.Fuel) * m.costs.RefuelPerUnit,
		RepairToFull: (100 - metrics.Hull) * m.costs.RepairPerUnit,
		CoolToIdle:   metrics.Thermal * m.costs.CoolingPerUnit,
	}, nil
}

// EntityStatus is one row of the fleet-wide resource snapshot.
type EntityStatus struct {
	EntityID fleet.EntityID `json:"entity_id"`
	Metrics  Metrics        `json:"metrics"`
	Severity Severity       `json:"severity"`
}

// Snapshot returns the current status of every tracked entity.
func (m *Manager) Snapshot() []EntityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]EntityStatus, 0, len(m.tracked))
	for id, metrics := range m.tracked {
		statuses = append(statuses, EntityStatus{
			EntityID: id,
			Metrics:  *metrics,
			Severity: metrics.Severity(),
		})
	}
	return statuses
}
