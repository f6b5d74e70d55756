// Package skirmish simulates combat engagements for the roster. The
// generator produces structured skirmish results whose intensity drifts
// over time on a noise field, so consecutive engagements feel like phases
// of a campaign rather than independent coin flips.
package skirmish

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/fleet-roster/internal/battle"
	"github.com/talgya/fleet-roster/internal/fleet"
)

// Combatant identifies one roster entity entering a skirmish.
type Combatant struct {
	ID         fleet.EntityID
	Role       string
	Generation int
}

// Activity reports what each combatant did during the engagement, for
// resource ticking: thrusting burns fuel, combat builds thermal load.
type Activity struct {
	EntityID     fleet.EntityID
	ThrustActive bool
	InCombat     bool
	DamageTaken  float64
}

// Generator produces simulated skirmishes.
type Generator struct {
	rng       *rand.Rand
	intensity opensimplex.Noise
	step      float64
}

// NewGenerator creates a generator. The same seed replays the same
// campaign.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:       rand.New(rand.NewSource(seed)),
		intensity: opensimplex.NewNormalized(seed),
	}
}

// Generate simulates one engagement for the given combatants and returns
// the skirmish result plus per-combatant activity. The caller feeds the
// result to the battle analyzer and the activity to resource tracking.
func (g *Generator) Generate(engine fleet.Engine, combatants []Combatant) (battle.Skirmish, []Activity, error) {
	if len(combatants) == 0 {
		return battle.Skirmish{}, nil, fmt.Errorf("generate skirmish: %w", fleet.ErrNoParticipants)
	}

	// Campaign intensity drifts on a 1D slice of the noise field. Each
	// engine type walks its own lane.
	g.step += 0.1
	heat := octaveNoise(g.intensity, g.step, float64(engine), 3, 0.5, 0.5)

	sk := battle.Skirmish{
		ID:           "skirmish-" + uuid.NewString(),
		Timestamp:    time.Now(),
		Engine:       engine,
		Participants: make([]battle.Participant, 0, len(combatants)),
	}
	activity := make([]Activity, 0, len(combatants))

	dealtTotal := 0.0
	takenTotal := 0.0
	for _, c := range combatants {
		dealt := heat * (20 + g.rng.Float64()*80)
		taken := heat * g.rng.Float64() * 60
		accuracy := clamp01(0.3 + g.rng.Float64()*0.6 + heat*0.1)
		survived := taken < 45 || g.rng.Float64() > 0.5
		kills := 0
		if g.rng.Float64() < accuracy*heat {
			kills = 1 + g.rng.Intn(2)
		}
		assists := g.rng.Intn(2)

		sk.Participants = append(sk.Participants, battle.Participant{
			EntityID:    c.ID,
			DamageDealt: dealt,
			DamageTaken: taken,
			Accuracy:    accuracy,
			Survived:    survived,
			Kills:       kills,
			Assists:     assists,
			Role:        c.Role,
			Generation:  c.Generation,
		})
		activity = append(activity, Activity{
			EntityID:     c.ID,
			ThrustActive: true,
			InCombat:     true,
			DamageTaken:  taken,
		})

		dealtTotal += dealt
		takenTotal += taken
	}

	sk.Outcome = resolveOutcome(dealtTotal, takenTotal)
	return sk, activity, nil
}

// resolveOutcome calls the engagement on the damage balance. Near-even
// trades are draws.
func resolveOutcome(dealt, taken float64) battle.Outcome {
	switch {
	case dealt > taken*1.1:
		return battle.OutcomeVictory
	case taken > dealt*1.1:
		return battle.OutcomeDefeat
	default:
		return battle.OutcomeDraw
	}
}

// octaveNoise layers noise octaves with decreasing amplitude.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxValue := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxValue += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxValue
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
