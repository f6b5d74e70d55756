package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// Update is one mutation inside a batch transaction. The set is closed:
// only this package defines appliers, so every batch is made of known,
// validated mutations.
type Update interface {
	// Validate runs before the transaction opens. A validation failure
	// aborts the whole batch.
	Validate() error
	// apply runs inside the transaction. Returning fleet.ErrNotFound skips
	// just this update; any other error rolls the batch back.
	apply(tx *sqlx.Tx) error
}

// EnsureRegistered inserts the entity into the roster if absent. Safe to
// batch ahead of performance updates for the same skirmish.
type EnsureRegistered struct {
	EntityID   fleet.EntityID
	Role       string
	Generation int
}

// Validate implements Update.
func (u EnsureRegistered) Validate() error {
	if u.EntityID == "" {
		return fmt.Errorf("ensure registered: empty entity id: %w", fleet.ErrValidation)
	}
	return nil
}

func (u EnsureRegistered) apply(tx *sqlx.Tx) error {
	now := time.Now().UnixMilli()
	_, err := tx.Exec(`INSERT OR IGNORE INTO entities
		(id, role, generation, victories_per_engine_json, created_at, last_active)
		VALUES (?, ?, ?, '{}', ?, ?)`,
		string(u.EntityID), u.Role, u.Generation, now, now)
	return err
}

// PerformanceUpdate records one skirmish's outcome for one entity: an
// append-only history row plus the aggregate roll-up on the entity itself.
// Idempotent per (entity, skirmish): a duplicate submission leaves exactly
// one history row and counts the score exactly once.
type PerformanceUpdate struct {
	EntityID      fleet.EntityID
	Engine        fleet.Engine
	Score         float64
	Timestamp     time.Time
	SkirmishID    string
	Role          string
	Generation    int
	Won           bool
	TraitSnapshot json.RawMessage
}

// Validate implements Update.
func (u PerformanceUpdate) Validate() error {
	switch {
	case u.EntityID == "":
		return fmt.Errorf("performance update: empty entity id: %w", fleet.ErrValidation)
	case u.SkirmishID == "":
		return fmt.Errorf("performance update %s: empty skirmish id: %w", u.EntityID, fleet.ErrValidation)
	case math.IsNaN(u.Score) || math.IsInf(u.Score, 0):
		return fmt.Errorf("performance update %s: non-finite score: %w", u.EntityID, fleet.ErrValidation)
	case u.Score < 0:
		return fmt.Errorf("performance update %s: negative score: %w", u.EntityID, fleet.ErrValidation)
	}
	return nil
}

func (u PerformanceUpdate) apply(tx *sqlx.Tx) error {
	var row entityRow
	err := tx.Get(&row, `SELECT id, role, generation, last_engine, cumulative_score,
		mvp_count, victories_per_engine_json, trait_snapshot_json, created_at, last_active
		FROM entities WHERE id = ?`, string(u.EntityID))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("performance update %s: %w", u.EntityID, fleet.ErrNotFound)
	}
	if err != nil {
		return err
	}

	var traitsCol any
	if len(u.TraitSnapshot) > 0 {
		traitsCol = string(u.TraitSnapshot)
	}

	// Unique (entity_id, skirmish_id) makes re-submission a no-op.
	res, err := tx.Exec(`INSERT INTO performance_history
		(entity_id, engine, score, timestamp, skirmish_id, role, generation, trait_snapshot_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, skirmish_id) DO NOTHING`,
		string(u.EntityID), u.Engine.String(), u.Score, u.Timestamp.UnixMilli(),
		u.SkirmishID, u.Role, u.Generation, traitsCol)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		// Duplicate skirmish fact; aggregates already reflect it.
		return nil
	}

	victories := make(map[fleet.Engine]int)
	if row.VictoriesJSON != "" {
		if err := json.Unmarshal([]byte(row.VictoriesJSON), &victories); err != nil {
			return fmt.Errorf("decode victories for %s: %w", u.EntityID, err)
		}
	}
	if u.Won {
		victories[u.Engine]++
	}
	victoriesJSON, err := json.Marshal(victories)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE entities
		SET cumulative_score = cumulative_score + ?,
		    last_engine = ?,
		    victories_per_engine_json = ?,
		    trait_snapshot_json = COALESCE(?, trait_snapshot_json),
		    last_active = ?
		WHERE id = ?`,
		u.Score, u.Engine.String(), string(victoriesJSON), traitsCol,
		u.Timestamp.UnixMilli(), string(u.EntityID))
	return err
}

// MVPAward credits one MVP title to an entity.
type MVPAward struct {
	EntityID fleet.EntityID
}

// Validate implements Update.
func (u MVPAward) Validate() error {
	if u.EntityID == "" {
		return fmt.Errorf("mvp award: empty entity id: %w", fleet.ErrValidation)
	}
	return nil
}

func (u MVPAward) apply(tx *sqlx.Tx) error {
	res, err := tx.Exec(`UPDATE entities SET mvp_count = mvp_count + 1 WHERE id = ?`,
		string(u.EntityID))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("mvp award %s: %w", u.EntityID, fleet.ErrNotFound)
	}
	return nil
}

// Apply commits a batch of updates as one transaction: all-or-nothing.
// A validation failure anywhere aborts the batch before it opens. Updates
// that hit a missing entity (late arrivals after a graveyard move) are
// logged and skipped without aborting the rest.
func (l *Ledger) Apply(updates []Update) error {
	return l.ApplyContext(context.Background(), updates)
}

// ApplyContext is Apply bounded by a context deadline. A deadline hit maps
// to fleet.ErrContention so callers retry with backoff.
func (l *Ledger) ApplyContext(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.conn.BeginTxx(ctx, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("begin batch: %w", fleet.ErrContention)
		}
		return fmt.Errorf("begin batch: %v: %w", err, fleet.ErrCommitFailed)
	}
	defer tx.Rollback()

	skipped := 0
	for _, u := range updates {
		if err := u.apply(tx); err != nil {
			if errors.Is(err, fleet.ErrNotFound) {
				// Entity already graveyarded (or never registered); the
				// update is dropped, the batch continues.
				slog.Warn("dropping update for missing entity", "error", err)
				skipped++
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("apply batch: %w", fleet.ErrContention)
			}
			return fmt.Errorf("apply batch: %v: %w", err, fleet.ErrCommitFailed)
		}
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("commit batch: %w", fleet.ErrContention)
		}
		return fmt.Errorf("commit batch: %v: %w", err, fleet.ErrCommitFailed)
	}

	l.revision.Add(1)
	if skipped > 0 {
		slog.Debug("batch committed with skips", "updates", len(updates), "skipped", skipped)
	}
	return nil
}
