// Package fleet provides the roster data model shared by the ledger,
// the commit pipeline, and the lifecycle systems.
package fleet

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityID is the globally unique, immutable identifier of a pilot/ship.
type EntityID string

// Engine identifies which simulation backend an entity last flew in.
type Engine uint8

const (
	EngineSpace Engine = iota // Newtonian free-flight engine
	EngineShell               // turn-based shell engine
)

// String returns the storage tag for the engine.
func (e Engine) String() string {
	switch e {
	case EngineSpace:
		return "SPACE"
	case EngineShell:
		return "SHELL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets map[Engine]int serialize with the storage tags as keys.
func (e Engine) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText parses a storage tag.
func (e *Engine) UnmarshalText(text []byte) error {
	parsed, err := ParseEngine(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEngine converts a storage tag back to an Engine.
func ParseEngine(s string) (Engine, error) {
	switch s {
	case "SPACE":
		return EngineSpace, nil
	case "SHELL":
		return EngineShell, nil
	default:
		return 0, fmt.Errorf("parse engine %q: %w", s, ErrValidation)
	}
}

// DeathCause is the closed set of reasons an entity can be permanently lost.
type DeathCause uint8

const (
	CauseCombatDestruction DeathCause = iota
	CauseResourceDepletion
	CauseAbandoned
	CauseSystemFailure
)

// String returns the storage tag for the cause.
func (c DeathCause) String() string {
	switch c {
	case CauseCombatDestruction:
		return "combat_destruction"
	case CauseResourceDepletion:
		return "resource_depletion"
	case CauseAbandoned:
		return "abandoned"
	case CauseSystemFailure:
		return "system_failure"
	default:
		return "unknown"
	}
}

// Entity is one persistent combat unit in the active roster.
// Mutated only through ledger transactions; on death it is relocated to the
// graveyard table in the same transaction that removes it from the roster.
type Entity struct {
	ID              EntityID        `json:"id"`
	Role            string          `json:"role"`
	Generation      int             `json:"generation"`
	LastEngine      Engine          `json:"last_engine"`
	CumulativeScore float64         `json:"cumulative_score"`
	Victories       map[Engine]int  `json:"victories_per_engine"`
	TraitSnapshot   json.RawMessage `json:"trait_snapshot,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	LastActive      time.Time       `json:"last_active"`
}

// TotalVictories sums victories across both engines.
func (e *Entity) TotalVictories() int {
	total := 0
	for _, v := range e.Victories {
		total += v
	}
	return total
}

// Versatile reports whether the entity has won in both engines.
func (e *Entity) Versatile() bool {
	return e.Victories[EngineSpace] > 0 && e.Victories[EngineShell] > 0
}

// PerformanceRecord is one append-only fact in the audit trail behind
// CumulativeScore. Immutable once written; keyed by (entity, skirmish) so
// re-submission of the same skirmish is a no-op.
type PerformanceRecord struct {
	EntityID      EntityID        `json:"entity_id"`
	Engine        Engine          `json:"engine"`
	Score         float64         `json:"score"`
	Timestamp     time.Time       `json:"timestamp"`
	SkirmishID    string          `json:"skirmish_id"`
	Role          string          `json:"role"`
	Generation    int             `json:"generation"`
	TraitSnapshot json.RawMessage `json:"trait_snapshot,omitempty"`
}

// GraveyardEntry is the write-once record of a permanently lost entity.
type GraveyardEntry struct {
	EntityID        EntityID   `json:"entity_id"`
	DeathTime       time.Time  `json:"death_time"`
	Cause           DeathCause `json:"cause"`
	FinalGeneration int        `json:"final_generation"`
	FinalScore      float64    `json:"final_score"`
	LastEngine      Engine     `json:"last_engine"`
	Epitaph         string     `json:"epitaph"`
}

// GenomeFitness is the transient per-pass view the selection engine works
// on. Derived from the roster at the start of a generation boundary; never
// persisted.
type GenomeFitness struct {
	EntityID   EntityID `json:"entity_id"`
	Fitness    float64  `json:"fitness"`
	Victories  int      `json:"victories"`
	Generation int      `json:"generation"`
}
