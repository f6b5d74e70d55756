// Package battle analyzes structured skirmish results: MVP identification,
// contribution scoring, and handoff of performance facts to the commit
// pipeline.
package battle

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
	"github.com/talgya/fleet-roster/internal/ledger"
	"github.com/talgya/fleet-roster/internal/pipeline"
)

// Outcome is the team-level result of a skirmish.
type Outcome uint8

const (
	OutcomeDraw Outcome = iota
	OutcomeVictory
	OutcomeDefeat
)

// String returns the wire tag for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeVictory:
		return "victory"
	case OutcomeDefeat:
		return "defeat"
	default:
		return "draw"
	}
}

// Participant is one entity's raw metrics from a single skirmish, as
// reported by the combat engine.
type Participant struct {
	EntityID    fleet.EntityID `json:"entity_id"`
	DamageDealt float64        `json:"damage_dealt"`
	DamageTaken float64        `json:"damage_taken"`
	Accuracy    float64        `json:"accuracy"`
	Survived    bool           `json:"survived"`
	Kills       int            `json:"kills"`
	Assists     int            `json:"assists"`
	Role        string         `json:"role"`
	Generation  int            `json:"generation"`
}

// Skirmish is one discrete combat resolution event.
type Skirmish struct {
	ID           string        `json:"skirmish_id"`
	Timestamp    time.Time     `json:"timestamp"`
	Engine       fleet.Engine  `json:"engine"`
	Outcome      Outcome       `json:"outcome"`
	Participants []Participant `json:"participants"`
}

// Contribution is one entity's share of a skirmish for the outbound report.
type Contribution struct {
	EntityID    fleet.EntityID `json:"entity_id"`
	Score       float64        `json:"score"`
	DamageShare float64        `json:"damage_share"`
}

// Report is the analyzer's outbound summary for the UI layer.
type Report struct {
	SkirmishID     string         `json:"skirmish_id"`
	MVPEntityID    fleet.EntityID `json:"mvp_entity_id"`
	TeamEfficiency float64        `json:"team_efficiency"`
	Contributions  []Contribution `json:"contributions"`
}

// Analyzer scores skirmish results and emits update requests.
type Analyzer struct {
	pipe *pipeline.Pipeline
}

// NewAnalyzer creates an analyzer feeding the given pipeline.
func NewAnalyzer(pipe *pipeline.Pipeline) *Analyzer {
	return &Analyzer{pipe: pipe}
}

// MVP weights. Damage share dominates; accuracy, survival, and frags split
// the rest evenly.
const (
	weightDamage   = 0.4
	weightAccuracy = 0.2
	weightSurvival = 0.2
	weightFrags    = 0.2
)

// Analyze scores one skirmish, submits a performance update per participant
// plus one MVP award, and returns the outbound report. A skirmish with no
// participants is a no-op returning fleet.ErrNoParticipants.
func (a *Analyzer) Analyze(sk Skirmish) (*Report, error) {
	if len(sk.Participants) == 0 {
		return nil, fmt.Errorf("analyze %s: %w", sk.ID, fleet.ErrNoParticipants)
	}
	if sk.ID == "" {
		return nil, fmt.Errorf("analyze: empty skirmish id: %w", fleet.ErrValidation)
	}
	if err := validateParticipants(sk.Participants); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", sk.ID, err)
	}

	totalDamage := 0.0
	maxFrags := 0
	for _, p := range sk.Participants {
		totalDamage += p.DamageDealt
		if frags := p.Kills + p.Assists; frags > maxFrags {
			maxFrags = frags
		}
	}
	if maxFrags < 1 {
		maxFrags = 1
	}

	report := &Report{
		SkirmishID:     sk.ID,
		TeamEfficiency: teamEfficiency(sk),
		Contributions:  make([]Contribution, 0, len(sk.Participants)),
	}

	bestScore := math.Inf(-1)
	for _, p := range sk.Participants {
		score := 0.0
		share := 0.0
		if totalDamage > 0 {
			share = p.DamageDealt / totalDamage
			score += share * weightDamage
		}
		score += p.Accuracy * weightAccuracy
		if p.Survived {
			score += weightSurvival
		}
		score += float64(p.Kills+p.Assists) / float64(maxFrags) * weightFrags

		report.Contributions = append(report.Contributions, Contribution{
			EntityID:    p.EntityID,
			Score:       score,
			DamageShare: share,
		})

		// Strict greater-than keeps ties on the first-seen participant.
		if score > bestScore {
			bestScore = score
			report.MVPEntityID = p.EntityID
		}
	}

	timestamp := sk.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	won := sk.Outcome == OutcomeVictory

	for i, p := range sk.Participants {
		a.pipe.Submit(ledger.EnsureRegistered{
			EntityID:   p.EntityID,
			Role:       p.Role,
			Generation: p.Generation,
		})
		a.pipe.Submit(ledger.PerformanceUpdate{
			EntityID:   p.EntityID,
			Engine:     sk.Engine,
			Score:      report.Contributions[i].Score,
			Timestamp:  timestamp,
			SkirmishID: sk.ID,
			Role:       p.Role,
			Generation: p.Generation,
			Won:        won,
		})
	}
	a.pipe.Submit(ledger.MVPAward{EntityID: report.MVPEntityID})

	slog.Debug("skirmish analyzed",
		"skirmish", sk.ID,
		"engine", sk.Engine.String(),
		"outcome", sk.Outcome.String(),
		"participants", len(sk.Participants),
		"mvp", report.MVPEntityID,
	)
	return report, nil
}

func validateParticipants(participants []Participant) error {
	for _, p := range participants {
		switch {
		case p.EntityID == "":
			return fmt.Errorf("participant with empty id: %w", fleet.ErrValidation)
		case !finite(p.DamageDealt) || !finite(p.DamageTaken) || !finite(p.Accuracy):
			return fmt.Errorf("participant %s: non-finite metric: %w", p.EntityID, fleet.ErrValidation)
		case p.DamageDealt < 0 || p.DamageTaken < 0:
			return fmt.Errorf("participant %s: negative damage: %w", p.EntityID, fleet.ErrValidation)
		case p.Accuracy < 0 || p.Accuracy > 1:
			return fmt.Errorf("participant %s: accuracy outside [0,1]: %w", p.EntityID, fleet.ErrValidation)
		case p.Kills < 0 || p.Assists < 0:
			return fmt.Errorf("participant %s: negative frag count: %w", p.EntityID, fleet.ErrValidation)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// teamEfficiency rates the skirmish as a whole: damage traded favorably
// plus a small victory bonus, capped at 1.
func teamEfficiency(sk Skirmish) float64 {
	dealt := 0.0
	taken := 0.0
	for _, p := range sk.Participants {
		dealt += p.DamageDealt
		taken += p.DamageTaken
	}
	if dealt == 0 {
		return 0
	}

	efficiency := math.Min(dealt/(taken+1), 1.0)
	if sk.Outcome == OutcomeVictory {
		efficiency += 0.1
	}
	return math.Min(efficiency, 1.0)
}
