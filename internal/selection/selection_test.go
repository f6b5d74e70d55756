package selection

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/talgya/fleet-roster/internal/fleet"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultConfig(), 42)
}

func TestPrestigeBiasFormula(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name      string
		fitness   float64
		victories int
		want      float64
	}{
		{"no victories", 1.0, 0, 1.0},
		{"one victory", 1.0, 1, 1.0*0.7 + 1.0*1.1*0.3},
		{"five victories", 2.0, 5, 2.0*0.7 + 2.0*1.5*0.3},
		{"zero fitness stays zero", 0, 50, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := e.ApplyPrestigeBias([]fleet.GenomeFitness{
				{EntityID: "g1", Fitness: tc.fitness, Victories: tc.victories},
			})
			if err != nil {
				t.Fatalf("bias: %v", err)
			}
			if math.Abs(out[0].Biased-tc.want) > 1e-9 {
				t.Errorf("biased = %v, want %v", out[0].Biased, tc.want)
			}
		})
	}
}

func TestPrestigeBiasCap(t *testing.T) {
	e := newTestEngine()

	// An absurd victory count must never push bias past 2× raw fitness.
	out, err := e.ApplyPrestigeBias([]fleet.GenomeFitness{
		{EntityID: "g1", Fitness: 1.0, Victories: 10000},
	})
	if err != nil {
		t.Fatalf("bias: %v", err)
	}
	if out[0].Biased != 2.0 {
		t.Errorf("biased = %v, want capped 2.0", out[0].Biased)
	}
}

func TestPrestigeBiasRejectsBadFitness(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name string
		g    fleet.GenomeFitness
	}{
		{"nan", fleet.GenomeFitness{EntityID: "g1", Fitness: math.NaN()}},
		{"inf", fleet.GenomeFitness{EntityID: "g1", Fitness: math.Inf(1)}},
		{"negative", fleet.GenomeFitness{EntityID: "g1", Fitness: -1}},
		{"negative victories", fleet.GenomeFitness{EntityID: "g1", Fitness: 1, Victories: -1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ApplyPrestigeBias([]fleet.GenomeFitness{tc.g})
			if !errors.Is(err, fleet.ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSelectParentsElitesIncluded(t *testing.T) {
	e := newTestEngine()

	// Population of 10: elite fraction 0.2 keeps the top 2 verbatim.
	population := make([]fleet.GenomeFitness, 10)
	for i := range population {
		population[i] = fleet.GenomeFitness{
			EntityID: fleet.EntityID(string(rune('a' + i))),
			Fitness:  float64(i + 1),
		}
	}

	parents, stats, err := e.SelectParents(population, 5)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(parents) != 5 {
		t.Fatalf("parents = %d, want 5", len(parents))
	}

	// Highest-fitness genomes are j (10) and i (9).
	if parents[0].EntityID != "j" || parents[1].EntityID != "i" {
		t.Errorf("elites = %s, %s, want j, i", parents[0].EntityID, parents[1].EntityID)
	}

	if stats.Count != 10 {
		t.Errorf("stats count = %d, want 10", stats.Count)
	}
	if stats.Max < stats.Mean || stats.Mean < stats.Min {
		t.Errorf("stats out of order: min=%v mean=%v max=%v", stats.Min, stats.Mean, stats.Max)
	}
}

func TestSelectParentsEmptyPopulation(t *testing.T) {
	e := newTestEngine()
	if _, _, err := e.SelectParents(nil, 3); !errors.Is(err, fleet.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestUpdateVictoryCounts(t *testing.T) {
	population := []fleet.GenomeFitness{
		{EntityID: "g1", Fitness: 1, Victories: 2},
		{EntityID: "g2", Fitness: 1, Victories: 0},
	}

	merged := UpdateVictoryCounts(population, map[fleet.EntityID]int{"g1": 3})
	if merged[0].Victories != 5 {
		t.Errorf("g1 victories = %d, want 5", merged[0].Victories)
	}
	if merged[1].Victories != 0 {
		t.Errorf("g2 victories = %d, want 0", merged[1].Victories)
	}
	// The input slice is left alone.
	if population[0].Victories != 2 {
		t.Errorf("input mutated: g1 victories = %d", population[0].Victories)
	}
}

func TestBreed(t *testing.T) {
	e := newTestEngine()

	traits := json.RawMessage(`{"aggression":0.8}`)
	parents := []*fleet.Entity{
		{ID: "p1", Role: "striker", Generation: 3, CumulativeScore: 5, TraitSnapshot: traits},
		{ID: "p2", Role: "scout", Generation: 2, CumulativeScore: 1},
	}

	offspring, err := e.Breed(parents, 4)
	if err != nil {
		t.Fatalf("breed: %v", err)
	}
	if len(offspring) != 4 {
		t.Fatalf("offspring = %d, want 4", len(offspring))
	}

	seen := make(map[fleet.EntityID]bool)
	for _, child := range offspring {
		if child.ID == "" || seen[child.ID] {
			t.Errorf("offspring id %q not unique", child.ID)
		}
		seen[child.ID] = true
		if child.Generation != 4 {
			t.Errorf("generation = %d, want 4 (after the older parent)", child.Generation)
		}
	}

	// The fitter parent's traits and role carry over.
	if offspring[0].Role != "striker" {
		t.Errorf("role = %q, want fitter parent's striker", offspring[0].Role)
	}
	if string(offspring[0].TraitSnapshot) != string(traits) {
		t.Errorf("traits = %s, want fitter parent's", offspring[0].TraitSnapshot)
	}
}

func TestBreedValidation(t *testing.T) {
	e := newTestEngine()

	if _, err := e.Breed(nil, 3); !errors.Is(err, fleet.ErrValidation) {
		t.Fatalf("no parents: err = %v, want ErrValidation", err)
	}
	if _, err := e.Breed([]*fleet.Entity{{ID: "p1"}}, 0); !errors.Is(err, fleet.ErrValidation) {
		t.Fatalf("zero count: err = %v, want ErrValidation", err)
	}
}
