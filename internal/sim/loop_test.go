package sim

import (
	"testing"
)

func TestStepCadence(t *testing.T) {
	e := NewEngine()
	e.SkirmishEvery = 2
	e.RefitEvery = 4
	e.GenerationEvery = 8

	var ticks, skirmishes, refits, generations int
	e.OnTick = func(uint64) { ticks++ }
	e.OnSkirmish = func(uint64) { skirmishes++ }
	e.OnRefit = func(uint64) { refits++ }
	e.OnGeneration = func(uint64) { generations++ }

	for i := 0; i < 8; i++ {
		e.step()
	}

	if ticks != 8 {
		t.Errorf("ticks = %d, want 8", ticks)
	}
	if skirmishes != 4 {
		t.Errorf("skirmishes = %d, want 4", skirmishes)
	}
	if refits != 2 {
		t.Errorf("refits = %d, want 2", refits)
	}
	if generations != 1 {
		t.Errorf("generations = %d, want 1", generations)
	}
}

func TestStepNilCallbacks(t *testing.T) {
	e := NewEngine()
	// No callbacks wired: stepping must not panic.
	for i := 0; i < 250; i++ {
		e.step()
	}
	if e.Tick != 250 {
		t.Errorf("tick = %d, want 250", e.Tick)
	}
}

func TestCampaignTime(t *testing.T) {
	e := NewEngine()
	e.GenerationEvery = 100

	if got := e.CampaignTime(250); got != "Gen 2, tick 50/100" {
		t.Errorf("campaign time = %q", got)
	}
}
