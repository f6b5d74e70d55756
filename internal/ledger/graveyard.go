package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// MoveToGraveyard atomically removes an entity from the active roster and
// writes its permanent graveyard record. The delete and the insert share
// one transaction, so at every observable instant the id lives in exactly
// one of the two tables. Returns fleet.ErrAlreadyDead for an id already
// buried and fleet.ErrNotFound for one never registered.
func (l *Ledger) MoveToGraveyard(id fleet.EntityID, cause fleet.DeathCause, epitaph string) (*fleet.GraveyardEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.conn.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin graveyard move: %v: %w", err, fleet.ErrCommitFailed)
	}
	defer tx.Rollback()

	var row entityRow
	err = tx.Get(&row, `SELECT id, role, generation, last_engine, cumulative_score,
		mvp_count, victories_per_engine_json, trait_snapshot_json, created_at, last_active
		FROM entities WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		var buried int
		if err := tx.Get(&buried, `SELECT COUNT(*) FROM graveyard WHERE entity_id = ?`, string(id)); err != nil {
			return nil, fmt.Errorf("graveyard lookup %s: %v: %w", id, err, fleet.ErrCommitFailed)
		}
		if buried > 0 {
			return nil, fmt.Errorf("graveyard move %s: %w", id, fleet.ErrAlreadyDead)
		}
		return nil, fmt.Errorf("graveyard move %s: %w", id, fleet.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("graveyard move %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}

	entry := &fleet.GraveyardEntry{
		EntityID:        id,
		DeathTime:       time.Now(),
		Cause:           cause,
		FinalGeneration: row.Generation,
		FinalScore:      row.Score,
		Epitaph:         epitaph,
	}
	if engine, err := fleet.ParseEngine(row.LastEngine); err == nil {
		entry.LastEngine = engine
	}

	_, err = tx.Exec(`INSERT INTO graveyard
		(entity_id, death_time, cause, final_generation, final_score, last_engine, epitaph)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(id), entry.DeathTime.UnixMilli(), cause.String(),
		entry.FinalGeneration, entry.FinalScore, row.LastEngine, epitaph)
	if err != nil {
		return nil, fmt.Errorf("graveyard insert %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}

	if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, string(id)); err != nil {
		return nil, fmt.Errorf("roster delete %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit graveyard move %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}

	l.revision.Add(1)
	return entry, nil
}

// InGraveyard reports whether the id has a graveyard record.
func (l *Ledger) InGraveyard(id fleet.EntityID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inGraveyardLocked(id)
}

func (l *Ledger) inGraveyardLocked(id fleet.EntityID) (bool, error) {
	var count int
	if err := l.conn.Get(&count, `SELECT COUNT(*) FROM graveyard WHERE entity_id = ?`, string(id)); err != nil {
		return false, fmt.Errorf("graveyard lookup %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}
	return count > 0, nil
}

type graveyardRow struct {
	EntityID        string  `db:"entity_id"`
	DeathTime       int64   `db:"death_time"`
	Cause           string  `db:"cause"`
	FinalGeneration int     `db:"final_generation"`
	FinalScore      float64 `db:"final_score"`
	LastEngine      string  `db:"last_engine"`
	Epitaph         string  `db:"epitaph"`
}

func parseCause(s string) fleet.DeathCause {
	switch s {
	case "combat_destruction":
		return fleet.CauseCombatDestruction
	case "resource_depletion":
		return fleet.CauseResourceDepletion
	case "abandoned":
		return fleet.CauseAbandoned
	default:
		return fleet.CauseSystemFailure
	}
}

// GraveyardEntries returns the most recent fallen, newest first.
func (l *Ledger) GraveyardEntries(limit int) ([]fleet.GraveyardEntry, error) {
	var rows []graveyardRow
	err := l.conn.Select(&rows, `SELECT entity_id, death_time, cause, final_generation,
		final_score, last_engine, epitaph
		FROM graveyard ORDER BY death_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("graveyard entries: %v: %w", err, fleet.ErrCommitFailed)
	}

	entries := make([]fleet.GraveyardEntry, 0, len(rows))
	for _, r := range rows {
		entry := fleet.GraveyardEntry{
			EntityID:        fleet.EntityID(r.EntityID),
			DeathTime:       time.UnixMilli(r.DeathTime),
			Cause:           parseCause(r.Cause),
			FinalGeneration: r.FinalGeneration,
			FinalScore:      r.FinalScore,
			Epitaph:         r.Epitaph,
		}
		if engine, err := fleet.ParseEngine(r.LastEngine); err == nil {
			entry.LastEngine = engine
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GraveyardStats summarizes the fallen by cause.
type GraveyardStats struct {
	Total   int
	ByCause map[fleet.DeathCause]int
}

// GraveyardSummary counts graveyard entries per death cause.
func (l *Ledger) GraveyardSummary() (GraveyardStats, error) {
	rows, err := l.conn.Query(`SELECT cause, COUNT(*) FROM graveyard GROUP BY cause`)
	if err != nil {
		return GraveyardStats{}, fmt.Errorf("graveyard summary: %v: %w", err, fleet.ErrCommitFailed)
	}
	defer rows.Close()

	stats := GraveyardStats{ByCause: make(map[fleet.DeathCause]int)}
	for rows.Next() {
		var cause string
		var count int
		if err := rows.Scan(&cause, &count); err != nil {
			return GraveyardStats{}, fmt.Errorf("graveyard summary scan: %v: %w", err, fleet.ErrCommitFailed)
		}
		stats.ByCause[parseCause(cause)] = count
		stats.Total += count
	}
	return stats, rows.Err()
}
