// Package selection computes the next generation: prestige-biased fitness,
// elitism, and tournament selection over the roster's genome snapshot.
package selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// Config tunes the selection pass.
type Config struct {
	// PrestigeWeight blends raw fitness with the victory-rewarding term.
	PrestigeWeight float64
	// EliteFraction of the population is kept unconditionally.
	EliteFraction float64
	// TournamentSize candidates compete for each remaining parent slot.
	TournamentSize int
}

// DefaultConfig returns the canonical selection parameters.
func DefaultConfig() Config {
	return Config{
		PrestigeWeight: 0.3,
		EliteFraction:  0.2,
		TournamentSize: 3,
	}
}

// Candidate pairs a genome with its prestige-biased fitness.
type Candidate struct {
	fleet.GenomeFitness
	Biased float64
}

// Stats summarizes biased fitness across one selection pass for the
// outbound report.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
}

// Engine runs selection passes. Not safe for concurrent use: it is invoked
// once per generation boundary after a forced flush.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

// NewEngine creates a selection engine. Zero config fields select defaults.
func NewEngine(cfg Config, seed int64) *Engine {
	if cfg.PrestigeWeight == 0 {
		cfg.PrestigeWeight = DefaultConfig().PrestigeWeight
	}
	if cfg.EliteFraction == 0 {
		cfg.EliteFraction = DefaultConfig().EliteFraction
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = DefaultConfig().TournamentSize
	}
	return &Engine{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// ApplyPrestigeBias blends each genome's fitness with its victory record:
//
//	biased = fitness·(1−w) + fitness·(1+0.1·victories)·w
//
// clamped to at most 2× the raw fitness. Zero fitness stays zero regardless
// of victories. Non-finite or negative input is rejected rather than
// propagated.
func (e *Engine) ApplyPrestigeBias(population []fleet.GenomeFitness) ([]Candidate, error) {
	w := e.cfg.PrestigeWeight

	candidates := make([]Candidate, 0, len(population))
	for _, g := range population {
		if math.IsNaN(g.Fitness) || math.IsInf(g.Fitness, 0) {
			return nil, fmt.Errorf("prestige bias %s: non-finite fitness: %w", g.EntityID, fleet.ErrValidation)
		}
		if g.Fitness < 0 {
			return nil, fmt.Errorf("prestige bias %s: negative fitness: %w", g.EntityID, fleet.ErrValidation)
		}
		if g.Victories < 0 {
			return nil, fmt.Errorf("prestige bias %s: negative victories: %w", g.EntityID, fleet.ErrValidation)
		}

		biased := g.Fitness*(1-w) + g.Fitness*(1+0.1*float64(g.Victories))*w
		if limit := 2 * g.Fitness; biased > limit {
			biased = limit
		}
		candidates = append(candidates, Candidate{GenomeFitness: g, Biased: biased})
	}
	return candidates, nil
}

// UpdateVictoryCounts merges externally supplied per-skirmish victory
// tallies into the population before biasing.
func UpdateVictoryCounts(population []fleet.GenomeFitness, tallies map[fleet.EntityID]int) []fleet.GenomeFitness {
	merged := make([]fleet.GenomeFitness, len(population))
	copy(merged, population)
	for i := range merged {
		merged[i].Victories += tallies[merged[i].EntityID]
	}
	return merged
}

// SelectParents chooses n parents: the top elite fraction by biased fitness
// is kept unconditionally, and the remaining slots are filled by repeated
// tournaments. Duplicates are allowed in the tournament-filled remainder,
// as usual for genetic selection.
func (e *Engine) SelectParents(population []fleet.GenomeFitness, n int) ([]fleet.GenomeFitness, Stats, error) {
	if n <= 0 {
		return nil, Stats{}, fmt.Errorf("select parents: non-positive count %d: %w", n, fleet.ErrValidation)
	}
	if len(population) == 0 {
		return nil, Stats{}, fmt.Errorf("select parents: empty population: %w", fleet.ErrValidation)
	}

	candidates, err := e.ApplyPrestigeBias(population)
	if err != nil {
		return nil, Stats{}, err
	}

	// Stable sort keeps first-seen order among equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Biased > candidates[j].Biased
	})

	eliteCount := int(e.cfg.EliteFraction * float64(len(candidates)))
	if eliteCount > n {
		eliteCount = n
	}

	parents := make([]fleet.GenomeFitness, 0, n)
	for i := 0; i < eliteCount; i++ {
		parents = append(parents, candidates[i].GenomeFitness)
	}

	for len(parents) < n {
		winner := e.tournament(candidates)
		parents = append(parents, winner.GenomeFitness)
	}

	return parents, biasedStats(candidates), nil
}

// tournament samples candidates uniformly and returns the one with the
// highest biased fitness.
func (e *Engine) tournament(candidates []Candidate) Candidate {
	best := candidates[e.rng.Intn(len(candidates))]
	for i := 1; i < e.cfg.TournamentSize; i++ {
		challenger := candidates[e.rng.Intn(len(candidates))]
		if challenger.Biased > best.Biased {
			best = challenger
		}
	}
	return best
}

func biasedStats(candidates []Candidate) Stats {
	if len(candidates) == 0 {
		return Stats{}
	}

	stats := Stats{
		Count: len(candidates),
		Min:   candidates[0].Biased,
		Max:   candidates[0].Biased,
	}
	total := 0.0
	for _, c := range candidates {
		if c.Biased < stats.Min {
			stats.Min = c.Biased
		}
		if c.Biased > stats.Max {
			stats.Max = c.Biased
		}
		total += c.Biased
	}
	stats.Mean = total / float64(len(candidates))
	return stats
}
