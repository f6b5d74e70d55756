// Package sim provides the tick-based campaign loop. Resource drain runs
// every tick, skirmishes resolve on a fixed cadence, and generation
// boundaries trigger the flush-select-breed cycle.
package sim

import (
	"fmt"
	"log/slog"
	"time"
)

// Cadence defaults, in ticks.
const (
	TicksPerSkirmish   = 10  // one engagement every 10 ticks
	TicksPerRefit      = 50  // maintenance window
	TicksPerGeneration = 200 // flush, select, breed
)

// Engine drives the campaign forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base tick interval (default 1 second)
	Running  bool

	// Cadence overrides; zero selects the defaults above.
	SkirmishEvery   uint64
	RefitEvery      uint64
	GenerationEvery uint64

	// Callbacks for each layer — populated during setup.
	OnTick       func(tick uint64) // Every tick: resource drain, trigger checks
	OnSkirmish   func(tick uint64) // Skirmish cadence
	OnRefit      func(tick uint64) // Maintenance window
	OnGeneration func(tick uint64) // Generation boundary
}

// NewEngine creates a campaign engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:           1.0,
		Interval:        time.Second,
		SkirmishEvery:   TicksPerSkirmish,
		RefitEvery:      TicksPerRefit,
		GenerationEvery: TicksPerGeneration,
	}
}

// Run starts the campaign loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.Running = true
	slog.Info("campaign engine started", "tick", e.Tick, "speed", e.Speed)

	for e.Running {
		if e.Speed <= 0 {
			// Paused — sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("campaign engine stopped", "tick", e.Tick)
}

// Stop halts the campaign loop.
func (e *Engine) Stop() {
	e.Running = false
}

// step advances the campaign by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}

	if e.SkirmishEvery > 0 && e.Tick%e.SkirmishEvery == 0 && e.OnSkirmish != nil {
		e.OnSkirmish(e.Tick)
	}

	if e.RefitEvery > 0 && e.Tick%e.RefitEvery == 0 && e.OnRefit != nil {
		e.OnRefit(e.Tick)
	}

	if e.GenerationEvery > 0 && e.Tick%e.GenerationEvery == 0 && e.OnGeneration != nil {
		e.OnGeneration(e.Tick)
	}
}

// CampaignTime renders a tick as a generation-relative time string.
func (e *Engine) CampaignTime(tick uint64) string {
	every := e.GenerationEvery
	if every == 0 {
		every = TicksPerGeneration
	}
	generation := tick / every
	within := tick % every
	return fmt.Sprintf("Gen %d, tick %d/%d", generation, within, every)
}
