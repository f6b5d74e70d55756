// Command fleetsim runs the autonomous fleet roster campaign.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/fleet-roster/internal/battle"
	"github.com/talgya/fleet-roster/internal/config"
	"github.com/talgya/fleet-roster/internal/entropy"
	"github.com/talgya/fleet-roster/internal/fleet"
	"github.com/talgya/fleet-roster/internal/ledger"
	"github.com/talgya/fleet-roster/internal/mortality"
	"github.com/talgya/fleet-roster/internal/pipeline"
	"github.com/talgya/fleet-roster/internal/resources"
	"github.com/talgya/fleet-roster/internal/selection"
	"github.com/talgya/fleet-roster/internal/sim"
	"github.com/talgya/fleet-roster/internal/skirmish"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("Fleet Roster — Autonomous Campaign Simulation")

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	led, err := ledger.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open ledger", "error", err)
		os.Exit(1)
	}
	defer led.Close()
	slog.Info("ledger opened", "path", cfg.DBPath)

	// ── Roster ────────────────────────────────────────────────────────
	roster, err := led.ActiveEntities()
	if err != nil {
		slog.Error("failed to load roster", "error", err)
		os.Exit(1)
	}

	if len(roster) == 0 {
		slog.Info("empty roster, recruiting founding generation", "size", cfg.RosterSize)
		roster = recruit(led, cfg.RosterSize)
	} else {
		slog.Info("roster restored", "entities", len(roster))
	}

	res := resources.NewManager(
		resources.Rates{
			FuelConsumption:    cfg.FuelBurnRate,
			ThermalGeneration:  cfg.ThermalCombat,
			ThermalDissipation: cfg.ThermalDissipate,
		},
		resources.Costs{
			RefuelPerUnit:  cfg.RefuelCost,
			RepairPerUnit:  cfg.RepairCost,
			CoolingPerUnit: cfg.CoolingCost,
		},
	)
	now := time.Now()
	for _, e := range roster {
		res.Track(e.ID, now)
	}

	pipe := pipeline.New(led, cfg.BatchSize, cfg.FlushTimeout)
	analyzer := battle.NewAnalyzer(pipe)
	// One generator per engine: each keeps its own rng and noise walk, so
	// the two engagements of a tick can resolve on parallel workers.
	generators := map[fleet.Engine]*skirmish.Generator{
		fleet.EngineSpace: skirmish.NewGenerator(seed),
		fleet.EngineShell: skirmish.NewGenerator(seed + 100),
	}
	selector := selection.NewEngine(selection.Config{
		PrestigeWeight: cfg.PrestigeWeight,
		EliteFraction:  cfg.EliteFraction,
		TournamentSize: cfg.TournamentSize,
	}, seed+1)

	// Death saves draw true randomness when a random.org key is set.
	var rolls mortality.RollSource = entropy.NewClient(cfg.RandomOrgKey)
	if entropyClient, ok := rolls.(*entropy.Client); ok && entropyClient.Enabled() {
		slog.Info("entropy client enabled (random.org)")
	}
	arbiter := mortality.NewArbiter(led, res, rolls, mortality.Thresholds{
		fleet.CauseCombatDestruction: cfg.SaveCombat,
		fleet.CauseResourceDepletion: cfg.SaveResource,
		fleet.CauseAbandoned:         cfg.SaveAbandoned,
		fleet.CauseSystemFailure:     cfg.SaveSystem,
	})

	campaign := &campaignState{
		led:        led,
		res:        res,
		pipe:       pipe,
		analyzer:   analyzer,
		generators: generators,
		selector:   selector,
		arbiter:    arbiter,
		rng:        rand.New(rand.NewSource(seed + 2)),
		credits:    cfg.StartCredits,
		squadSize:  cfg.SquadSize,
		rosterSize: cfg.RosterSize,
	}

	// ── Campaign loop ─────────────────────────────────────────────────
	eng := sim.NewEngine()
	eng.Interval = cfg.TickInterval
	eng.Speed = cfg.Speed
	eng.OnTick = campaign.tickResources
	eng.OnSkirmish = campaign.runSkirmish
	eng.OnRefit = campaign.maintenanceWindow
	eng.OnGeneration = campaign.generationBoundary

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nFleet is ready: %s pilots, %s starting credits.\n",
		humanize.Comma(int64(len(roster))), humanize.Commaf(cfg.StartCredits))
	fmt.Println("Starting campaign... (Ctrl+C to stop)")

	eng.Run()

	// Final flush on shutdown.
	slog.Info("final flush...")
	pipe.Close()
	campaign.printSummary()
}

// campaignState holds the mutable pieces the tick callbacks share. The
// engine invokes callbacks from a single goroutine; skirmish analysis
// fans out to workers internally.
type campaignState struct {
	led        *ledger.Ledger
	res        *resources.Manager
	pipe       *pipeline.Pipeline
	analyzer   *battle.Analyzer
	generators map[fleet.Engine]*skirmish.Generator
	selector   *selection.Engine
	arbiter    *mortality.Arbiter
	rng        *rand.Rand
	squadSize  int
	rosterSize int

	mu       sync.Mutex
	credits  float64
	inCombat map[fleet.EntityID]bool
}

// tickResources drains every tracked entity and resolves any depletion
// triggers.
func (c *campaignState) tickResources(tick uint64) {
	now := time.Now()
	for _, status := range c.res.Snapshot() {
		trigger, err := c.res.Tick(status.EntityID, now, c.combatActive(status.EntityID), c.combatActive(status.EntityID))
		if err != nil {
			if !errors.Is(err, fleet.ErrNotFound) {
				slog.Warn("resource tick failed", "entity", status.EntityID, "error", err)
			}
			continue
		}
		if trigger != nil {
			c.resolveTrigger(*trigger)
		}
	}
}

func (c *campaignState) combatActive(id fleet.EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inCombat[id]
}

func (c *campaignState) setCombat(ids []fleet.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inCombat = make(map[fleet.EntityID]bool, len(ids))
	for _, id := range ids {
		c.inCombat[id] = true
	}
}

// runSkirmish sends one squad per engine into concurrent engagements and
// feeds each result through the analyzer and damage model. The pipeline
// and resource manager are built for exactly this kind of parallel fan-in.
func (c *campaignState) runSkirmish(tick uint64) {
	roster, err := c.led.ActiveEntities()
	if err != nil {
		slog.Error("roster read failed", "error", err)
		return
	}
	if len(roster) == 0 {
		slog.Warn("no pilots left, campaign is a graveyard")
		return
	}

	squads := c.pickSquads(roster, 2)
	engines := []fleet.Engine{fleet.EngineSpace, fleet.EngineShell}

	var ids []fleet.EntityID
	for _, squad := range squads {
		for _, e := range squad {
			ids = append(ids, e.ID)
		}
	}
	c.setCombat(ids)

	var wg sync.WaitGroup
	for i, squad := range squads {
		wg.Add(1)
		go func(engine fleet.Engine, squad []*fleet.Entity) {
			defer wg.Done()
			c.resolveEngagement(engine, squad)
		}(engines[i], squad)
	}
	wg.Wait()
	c.setCombat(nil)
}

func (c *campaignState) resolveEngagement(engine fleet.Engine, squad []*fleet.Entity) {
	if len(squad) == 0 {
		return
	}

	combatants := make([]skirmish.Combatant, 0, len(squad))
	for _, e := range squad {
		combatants = append(combatants, skirmish.Combatant{
			ID:         e.ID,
			Role:       e.Role,
			Generation: e.Generation,
		})
	}

	sk, activity, err := c.generators[engine].Generate(engine, combatants)
	if err != nil {
		slog.Error("skirmish generation failed", "error", err)
		return
	}

	report, err := c.analyzer.Analyze(sk)
	if err != nil {
		slog.Error("skirmish analysis failed", "skirmish", sk.ID, "error", err)
		return
	}

	// Combat earnings scale with how cleanly the squad fought.
	c.addCredits(report.TeamEfficiency * 100)

	for _, act := range activity {
		trigger, err := c.res.ApplyDamage(act.EntityID, act.DamageTaken)
		if err != nil {
			slog.Warn("damage application failed", "entity", act.EntityID, "error", err)
			continue
		}
		if trigger != nil {
			c.resolveTrigger(*trigger)
		}
	}

	slog.Info("skirmish resolved",
		"skirmish", sk.ID,
		"engine", engine.String(),
		"outcome", sk.Outcome.String(),
		"mvp", report.MVPEntityID,
		"efficiency", fmt.Sprintf("%.2f", report.TeamEfficiency),
		"credits", humanize.Commaf(c.balance()),
	)
}

// pickSquads deals up to count disjoint squads of squadSize pilots.
func (c *campaignState) pickSquads(roster []*fleet.Entity, count int) [][]*fleet.Entity {
	order := c.rng.Perm(len(roster))
	squads := make([][]*fleet.Entity, 0, count)
	next := 0
	for s := 0; s < count; s++ {
		n := c.squadSize
		if n > len(roster)-next {
			n = len(roster) - next
		}
		if n == 0 {
			break
		}
		squad := make([]*fleet.Entity, 0, n)
		for _, i := range order[next : next+n] {
			squad = append(squad, roster[i])
		}
		squads = append(squads, squad)
		next += n
	}
	return squads
}

func (c *campaignState) addCredits(amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credits += amount
}

func (c *campaignState) balance() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credits
}

func (c *campaignState) resolveTrigger(trigger resources.DeathTrigger) {
	result, err := c.arbiter.ResolveMortality(trigger.EntityID, trigger.Cause)
	if err != nil {
		if errors.Is(err, fleet.ErrAlreadyDead) {
			return
		}
		slog.Error("mortality resolution failed", "entity", trigger.EntityID, "error", err)
		return
	}
	if result.Survived {
		slog.Info("pilot clings to life", "entity", trigger.EntityID, "roll", result.Roll)
	}
}

// maintenanceWindow spends credits restoring degraded pilots to full.
func (c *campaignState) maintenanceWindow(tick uint64) {
	for _, status := range c.res.Snapshot() {
		if status.Severity == resources.SeverityOperational {
			continue
		}

		quote, err := c.res.RefitCosts(status.EntityID)
		if err != nil {
			continue
		}
		if quote.Total() > c.balance() {
			slog.Warn("refit unaffordable, pilot stays degraded",
				"entity", status.EntityID,
				"quote", humanize.Commaf(quote.Total()),
				"credits", humanize.Commaf(c.balance()),
			)
			continue
		}

		if m := status.Metrics; m.Fuel < 100 {
			if cost, err := c.res.Refuel(status.EntityID, 100-m.Fuel, c.balance()); err == nil {
				c.addCredits(-cost)
			}
		}
		if m := status.Metrics; m.Hull < 100 {
			if cost, err := c.res.Repair(status.EntityID, 100-m.Hull, c.balance()); err == nil {
				c.addCredits(-cost)
			}
		}
		if m := status.Metrics; m.Thermal > 0 {
			if cost, err := c.res.Cool(status.EntityID, m.Thermal, c.balance()); err == nil {
				c.addCredits(-cost)
			}
		}
	}
}

// generationBoundary flushes pending facts, selects parents on prestige-
// biased fitness, and breeds replacements for the fallen.
func (c *campaignState) generationBoundary(tick uint64) {
	// Selection must see every committed skirmish. Retries cover transient
	// lock contention on the flush.
	_, err := backoff.Retry(context.Background(), func() (struct{}, error) {
		if !c.pipe.ForceFlush() {
			return struct{}{}, errors.New("flush did not commit")
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(5))
	if err != nil {
		slog.Error("generation flush failed, postponing selection", "error", err)
		return
	}

	population, err := c.led.PopulationFitness()
	if err != nil {
		slog.Error("population read failed", "error", err)
		return
	}
	if len(population) < 2 {
		slog.Warn("too few pilots for selection", "population", len(population))
		return
	}

	parentCount := len(population) / 2
	if parentCount < 2 {
		parentCount = 2
	}
	parents, stats, err := c.selector.SelectParents(population, parentCount)
	if err != nil {
		slog.Error("selection failed", "error", err)
		return
	}

	parentEntities := make([]*fleet.Entity, 0, len(parents))
	seen := make(map[fleet.EntityID]bool, len(parents))
	for _, p := range parents {
		if seen[p.EntityID] {
			continue
		}
		seen[p.EntityID] = true
		entity, err := c.led.Get(p.EntityID)
		if err != nil {
			continue
		}
		parentEntities = append(parentEntities, entity)
	}
	if len(parentEntities) == 0 {
		return
	}

	vacancies := c.rosterSize - len(population)
	if vacancies <= 0 {
		slog.Info("generation boundary, no vacancies",
			"tick", tick,
			"fitness_min", fmt.Sprintf("%.3f", stats.Min),
			"fitness_mean", fmt.Sprintf("%.3f", stats.Mean),
			"fitness_max", fmt.Sprintf("%.3f", stats.Max),
		)
		return
	}

	offspring, err := c.selector.Breed(parentEntities, vacancies)
	if err != nil {
		slog.Error("breeding failed", "error", err)
		return
	}

	now := time.Now()
	recruited := 0
	for _, child := range offspring {
		if err := c.led.RegisterWithTraits(child.ID, child.Role, child.Generation, child.TraitSnapshot); err != nil {
			slog.Error("offspring registration failed", "entity", child.ID, "error", err)
			continue
		}
		c.res.Track(child.ID, now)
		recruited++
	}

	slog.Info("generation boundary",
		"tick", tick,
		"parents", len(parentEntities),
		"recruited", recruited,
		"fitness_min", fmt.Sprintf("%.3f", stats.Min),
		"fitness_mean", fmt.Sprintf("%.3f", stats.Mean),
		"fitness_max", fmt.Sprintf("%.3f", stats.Max),
	)
}

func (c *campaignState) printSummary() {
	stat, err := c.led.Statistics()
	if err != nil {
		slog.Error("summary read failed", "error", err)
		return
	}

	fmt.Printf("\nCampaign over: %s pilots active, %s skirmish facts recorded, %s fallen.\n",
		humanize.Comma(int64(stat.ActiveEntities)),
		humanize.Comma(int64(stat.SkirmishFacts)),
		humanize.Comma(int64(stat.Fallen)),
	)

	aces, err := c.led.TopAces(3)
	if err == nil {
		for i, ace := range aces {
			fmt.Printf("  #%d %s — gen %d, score %.2f, %d victories\n",
				i+1, ace.ID, ace.Generation, ace.CumulativeScore, ace.TotalVictories())
		}
	}

	graves, err := c.led.GraveyardSummary()
	if err == nil && graves.Total > 0 {
		fmt.Printf("The graveyard holds %s. Their epitaphs remain.\n", humanize.Comma(int64(graves.Total)))
	}
}

// recruit seeds a founding generation of fresh pilots.
func recruit(led *ledger.Ledger, count int) []*fleet.Entity {
	roles := []string{"striker", "vanguard", "scout", "warden"}
	roster := make([]*fleet.Entity, 0, count)
	for i := 0; i < count; i++ {
		id := fleet.EntityID("pilot-" + uuid.NewString())
		role := roles[i%len(roles)]
		if err := led.Register(id, role, 0); err != nil {
			slog.Error("recruit failed", "entity", id, "error", err)
			continue
		}
		entity, err := led.Get(id)
		if err != nil {
			continue
		}
		roster = append(roster, entity)
	}
	return roster
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
