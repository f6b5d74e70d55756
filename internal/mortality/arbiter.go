// Package mortality resolves death triggers: the probabilistic death save,
// the epitaph, and the single irreversible transition into the graveyard.
package mortality

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/fleet-roster/internal/fleet"
	"github.com/talgya/fleet-roster/internal/ledger"
	"github.com/talgya/fleet-roster/internal/resources"
)

// Thresholds maps each death cause to the roll an entity must meet to
// survive: roll below the threshold means death.
type Thresholds map[fleet.DeathCause]int

// DefaultThresholds is the canonical save table. Combat destruction is the
// hardest save; abandonment the easiest.
func DefaultThresholds() Thresholds {
	return Thresholds{
		fleet.CauseCombatDestruction: 12,
		fleet.CauseResourceDepletion: 10,
		fleet.CauseAbandoned:         8,
		fleet.CauseSystemFailure:     14,
	}
}

// DeathResult reports the outcome of one resolved trigger.
type DeathResult struct {
	EntityID fleet.EntityID   `json:"entity_id"`
	Survived bool             `json:"survived"`
	Roll     int              `json:"roll"`
	Cause    fleet.DeathCause `json:"cause"`
	Epitaph  string           `json:"epitaph,omitempty"`
}

// Arbiter owns the permadeath decision. It is the only component allowed to
// call the ledger's graveyard move.
type Arbiter struct {
	led        *ledger.Ledger
	res        *resources.Manager
	rolls      RollSource
	thresholds Thresholds
}

// NewArbiter wires the arbiter to its ledger, resource tracking, and roll
// source. Nil thresholds select the defaults.
func NewArbiter(led *ledger.Ledger, res *resources.Manager, rolls RollSource, thresholds Thresholds) *Arbiter {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Arbiter{led: led, res: res, rolls: rolls, thresholds: thresholds}
}

// ResolveMortality runs the death save for a triggered entity. On a failed
// save the entity is atomically moved to the graveyard and dropped from
// resource tracking; on a successful save nothing is reset — the entity
// remains critical and may be triggered again. A duplicate trigger for an
// already-buried id returns fleet.ErrAlreadyDead, which callers treat as a
// no-op.
func (a *Arbiter) ResolveMortality(id fleet.EntityID, cause fleet.DeathCause) (DeathResult, error) {
	entity, err := a.led.Get(id)
	if errors.Is(err, fleet.ErrNotFound) {
		buried, gerr := a.led.InGraveyard(id)
		if gerr != nil {
			return DeathResult{}, gerr
		}
		if buried {
			return DeathResult{}, fmt.Errorf("resolve mortality %s: %w", id, fleet.ErrAlreadyDead)
		}
		return DeathResult{}, err
	}
	if err != nil {
		return DeathResult{}, err
	}

	roll := a.rolls.Die(DeathSaveSides)
	result := DeathResult{
		EntityID: id,
		Roll:     roll,
		Cause:    cause,
		Survived: roll >= a.thresholds[cause],
	}

	if result.Survived {
		slog.Info("death save passed",
			"entity", id,
			"cause", cause.String(),
			"roll", roll,
			"threshold", a.thresholds[cause],
		)
		return result, nil
	}

	result.Epitaph = Epitaph(entity, cause)
	if _, err := a.led.MoveToGraveyard(id, cause, result.Epitaph); err != nil {
		if errors.Is(err, fleet.ErrAlreadyDead) {
			// A concurrent trigger already buried the entity between the
			// roster read and the move.
			return DeathResult{}, fmt.Errorf("resolve mortality %s: %w", id, fleet.ErrAlreadyDead)
		}
		return DeathResult{}, err
	}
	a.res.Untrack(id)

	slog.Warn("permadeath",
		"entity", id,
		"cause", cause.String(),
		"roll", roll,
		"generation", entity.Generation,
		"victories", entity.TotalVictories(),
		"epitaph", result.Epitaph,
	)
	return result, nil
}

// Epitaph renders the deterministic template for a fallen entity's final
// stats and cause.
func Epitaph(entity *fleet.Entity, cause fleet.DeathCause) string {
	generation := entity.Generation
	victories := entity.TotalVictories()

	switch cause {
	case fleet.CauseCombatDestruction:
		return fmt.Sprintf("Gen-%d warrior, %d victories, fell in glorious combat", generation, victories)
	case fleet.CauseResourceDepletion:
		return fmt.Sprintf("Gen-%d pioneer, %d victories, lost to the void", generation, victories)
	case fleet.CauseAbandoned:
		return fmt.Sprintf("Gen-%d explorer, %d victories, abandoned in the dark", generation, victories)
	default:
		return fmt.Sprintf("Gen-%d veteran, %d victories, systems failed", generation, victories)
	}
}
