package selection

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// Offspring is a bred-but-unregistered entity. The orchestrator registers
// it with the ledger before its first skirmish.
type Offspring struct {
	ID            fleet.EntityID    `json:"id"`
	Role          string            `json:"role"`
	Generation    int               `json:"generation"`
	TraitSnapshot json.RawMessage   `json:"trait_snapshot,omitempty"`
	ParentIDs     [2]fleet.EntityID `json:"parent_ids"`
}

// Breed pairs parents round-robin and produces count offspring. Each child
// gets a fresh id, the generation after its older parent, and the trait
// snapshot of whichever parent scored higher. The parents themselves
// survive into the next generation unchanged.
func (e *Engine) Breed(parents []*fleet.Entity, count int) ([]Offspring, error) {
	if count <= 0 {
		return nil, fmt.Errorf("breed: non-positive count %d: %w", count, fleet.ErrValidation)
	}
	if len(parents) == 0 {
		return nil, fmt.Errorf("breed: no parents: %w", fleet.ErrValidation)
	}

	offspring := make([]Offspring, 0, count)
	for i := 0; i < count; i++ {
		sire := parents[i%len(parents)]
		dam := parents[(i+1)%len(parents)]

		fitter := sire
		if dam.CumulativeScore > sire.CumulativeScore {
			fitter = dam
		}

		generation := sire.Generation
		if dam.Generation > generation {
			generation = dam.Generation
		}

		offspring = append(offspring, Offspring{
			ID:            fleet.EntityID("pilot-" + uuid.NewString()),
			Role:          fitter.Role,
			Generation:    generation + 1,
			TraitSnapshot: fitter.TraitSnapshot,
			ParentIDs:     [2]fleet.EntityID{sire.ID, dam.ID},
		})
	}
	return offspring, nil
}
