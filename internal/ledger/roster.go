package ledger

import (
	"fmt"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// ActiveEntities returns every entity still on the active roster.
func (l *Ledger) ActiveEntities() ([]*fleet.Entity, error) {
	var rows []entityRow
	err := l.conn.Select(&rows, `SELECT id, role, generation, last_engine, cumulative_score,
		mvp_count, victories_per_engine_json, trait_snapshot_json, created_at, last_active
		FROM entities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active entities: %v: %w", err, fleet.ErrCommitFailed)
	}

	entities := make([]*fleet.Entity, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// PopulationFitness derives the transient selection-pass view of the active
// roster: cumulative score as fitness plus total victory count. Read once at
// each generation boundary, after a forced flush.
func (l *Ledger) PopulationFitness() ([]fleet.GenomeFitness, error) {
	entities, err := l.ActiveEntities()
	if err != nil {
		return nil, err
	}

	population := make([]fleet.GenomeFitness, 0, len(entities))
	for _, e := range entities {
		population = append(population, fleet.GenomeFitness{
			EntityID:   e.ID,
			Fitness:    e.CumulativeScore,
			Victories:  e.TotalVictories(),
			Generation: e.Generation,
		})
	}
	return population, nil
}

// TopAces returns the highest-scoring active entities, best first.
func (l *Ledger) TopAces(limit int) ([]*fleet.Entity, error) {
	var rows []entityRow
	err := l.conn.Select(&rows, `SELECT id, role, generation, last_engine, cumulative_score,
		mvp_count, victories_per_engine_json, trait_snapshot_json, created_at, last_active
		FROM entities ORDER BY cumulative_score DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top aces: %v: %w", err, fleet.ErrCommitFailed)
	}

	entities := make([]*fleet.Entity, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// FleetStatistics aggregates the roster for the periodic report.
type FleetStatistics struct {
	ActiveEntities int
	TotalScore     float64
	MaxGeneration  int
	SkirmishFacts  int
	Fallen         int
}

// Statistics computes roster-wide aggregates in one pass.
func (l *Ledger) Statistics() (FleetStatistics, error) {
	var stats FleetStatistics
	err := l.conn.Get(&stats.ActiveEntities, `SELECT COUNT(*) FROM entities`)
	if err != nil {
		return stats, fmt.Errorf("statistics: %v: %w", err, fleet.ErrCommitFailed)
	}
	if err := l.conn.Get(&stats.TotalScore, `SELECT COALESCE(SUM(cumulative_score), 0) FROM entities`); err != nil {
		return stats, fmt.Errorf("statistics: %v: %w", err, fleet.ErrCommitFailed)
	}
	if err := l.conn.Get(&stats.MaxGeneration, `SELECT COALESCE(MAX(generation), 0) FROM entities`); err != nil {
		return stats, fmt.Errorf("statistics: %v: %w", err, fleet.ErrCommitFailed)
	}
	if err := l.conn.Get(&stats.SkirmishFacts, `SELECT COUNT(*) FROM performance_history`); err != nil {
		return stats, fmt.Errorf("statistics: %v: %w", err, fleet.ErrCommitFailed)
	}
	if err := l.conn.Get(&stats.Fallen, `SELECT COUNT(*) FROM graveyard`); err != nil {
		return stats, fmt.Errorf("statistics: %v: %w", err, fleet.ErrCommitFailed)
	}
	return stats, nil
}

// History returns the audit trail for one entity, oldest first.
func (l *Ledger) History(id fleet.EntityID) ([]fleet.PerformanceRecord, error) {
	type historyRow struct {
		EntityID   string  `db:"entity_id"`
		Engine     string  `db:"engine"`
		Score      float64 `db:"score"`
		Timestamp  int64   `db:"timestamp"`
		SkirmishID string  `db:"skirmish_id"`
		Role       string  `db:"role"`
		Generation int     `db:"generation"`
	}

	var rows []historyRow
	err := l.conn.Select(&rows, `SELECT entity_id, engine, score, timestamp, skirmish_id, role, generation
		FROM performance_history WHERE entity_id = ? ORDER BY id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("history %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}

	records := make([]fleet.PerformanceRecord, 0, len(rows))
	for _, r := range rows {
		rec := fleet.PerformanceRecord{
			EntityID:   fleet.EntityID(r.EntityID),
			Score:      r.Score,
			Timestamp:  time.UnixMilli(r.Timestamp),
			SkirmishID: r.SkirmishID,
			Role:       r.Role,
			Generation: r.Generation,
		}
		if engine, err := fleet.ParseEngine(r.Engine); err == nil {
			rec.Engine = engine
		}
		records = append(records, rec)
	}
	return records, nil
}
