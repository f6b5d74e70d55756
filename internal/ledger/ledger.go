// Package ledger provides the SQLite-backed fleet roster: the active entity
// table, the append-only performance history, and the graveyard.
package ledger

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/fleet-roster/internal/fleet"
)

// Ledger wraps a SQLite connection for roster persistence. All writes go
// through one mutex so a dying entity cannot race a late performance update
// across the graveyard move.
type Ledger struct {
	conn *sqlx.DB

	mu       sync.Mutex
	revision atomic.Uint64
}

// Open opens or creates the roster database at the given path.
func Open(path string) (*Ledger, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open roster db: %w", err)
	}

	l := &Ledger{conn: conn}
	if err := l.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Revision returns the monotonic counter incremented by every committed
// transaction. Used for optimistic conflict detection by readers.
func (l *Ledger) Revision() uint64 {
	return l.revision.Load()
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		role TEXT NOT NULL,
		generation INTEGER NOT NULL,
		last_engine TEXT NOT NULL DEFAULT 'SPACE',
		cumulative_score REAL NOT NULL DEFAULT 0,
		mvp_count INTEGER NOT NULL DEFAULT 0,
		victories_per_engine_json TEXT NOT NULL DEFAULT '{}',
		trait_snapshot_json TEXT,
		created_at INTEGER NOT NULL,
		last_active INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS performance_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT NOT NULL,
		engine TEXT NOT NULL,
		score REAL NOT NULL,
		timestamp INTEGER NOT NULL,
		skirmish_id TEXT NOT NULL,
		role TEXT NOT NULL,
		generation INTEGER NOT NULL,
		trait_snapshot_json TEXT,
		UNIQUE(entity_id, skirmish_id)
	);

	CREATE TABLE IF NOT EXISTS graveyard (
		entity_id TEXT PRIMARY KEY,
		death_time INTEGER NOT NULL,
		cause TEXT NOT NULL,
		final_generation INTEGER NOT NULL,
		final_score REAL NOT NULL,
		last_engine TEXT NOT NULL,
		epitaph TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_entity ON performance_history(entity_id);
	CREATE INDEX IF NOT EXISTS idx_history_skirmish ON performance_history(skirmish_id);
	CREATE INDEX IF NOT EXISTS idx_entities_generation ON entities(generation);
	CREATE INDEX IF NOT EXISTS idx_entities_score ON entities(cumulative_score);
	`
	_, err := l.conn.Exec(schema)
	return err
}

// Register inserts an entity into the active roster if absent. Idempotent:
// re-registering an existing id is a no-op and re-registering a graveyarded
// id does not resurrect it.
func (l *Ledger) Register(id fleet.EntityID, role string, generation int) error {
	return l.RegisterWithTraits(id, role, generation, nil)
}

// RegisterWithTraits registers an entity carrying an opaque genome blob.
func (l *Ledger) RegisterWithTraits(id fleet.EntityID, role string, generation int, traits json.RawMessage) error {
	if id == "" {
		return fmt.Errorf("register: empty entity id: %w", fleet.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dead, err := l.inGraveyardLocked(id)
	if err != nil {
		return err
	}
	if dead {
		return fmt.Errorf("register %s: %w", id, fleet.ErrAlreadyDead)
	}

	now := time.Now().UnixMilli()
	var traitsCol any
	if len(traits) > 0 {
		traitsCol = string(traits)
	}
	_, err = l.conn.Exec(`INSERT OR IGNORE INTO entities
		(id, role, generation, victories_per_engine_json, trait_snapshot_json, created_at, last_active)
		VALUES (?, ?, ?, '{}', ?, ?, ?)`,
		string(id), role, generation, traitsCol, now, now)
	if err != nil {
		return fmt.Errorf("register %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}
	l.revision.Add(1)
	return nil
}

type entityRow struct {
	ID            string         `db:"id"`
	Role          string         `db:"role"`
	Generation    int            `db:"generation"`
	LastEngine    string         `db:"last_engine"`
	Score         float64        `db:"cumulative_score"`
	MVPCount      int            `db:"mvp_count"`
	VictoriesJSON string         `db:"victories_per_engine_json"`
	TraitsJSON    sql.NullString `db:"trait_snapshot_json"`
	CreatedAt     int64          `db:"created_at"`
	LastActive    int64          `db:"last_active"`
}

func (r *entityRow) toEntity() (*fleet.Entity, error) {
	engine, err := fleet.ParseEngine(r.LastEngine)
	if err != nil {
		return nil, err
	}

	victories := make(map[fleet.Engine]int)
	if r.VictoriesJSON != "" {
		if err := json.Unmarshal([]byte(r.VictoriesJSON), &victories); err != nil {
			return nil, fmt.Errorf("decode victories for %s: %w", r.ID, err)
		}
	}

	e := &fleet.Entity{
		ID:              fleet.EntityID(r.ID),
		Role:            r.Role,
		Generation:      r.Generation,
		LastEngine:      engine,
		CumulativeScore: r.Score,
		Victories:       victories,
		CreatedAt:       time.UnixMilli(r.CreatedAt),
		LastActive:      time.UnixMilli(r.LastActive),
	}
	if r.TraitsJSON.Valid {
		e.TraitSnapshot = json.RawMessage(r.TraitsJSON.String)
	}
	return e, nil
}

// Get returns the active-roster entity with the given id.
func (l *Ledger) Get(id fleet.EntityID) (*fleet.Entity, error) {
	var row entityRow
	err := l.conn.Get(&row, `SELECT id, role, generation, last_engine, cumulative_score,
		mvp_count, victories_per_engine_json, trait_snapshot_json, created_at, last_active
		FROM entities WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, fleet.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}
	return row.toEntity()
}

// MVPCount returns how many MVP awards the entity has accumulated.
func (l *Ledger) MVPCount(id fleet.EntityID) (int, error) {
	var count int
	err := l.conn.Get(&count, `SELECT mvp_count FROM entities WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("mvp count %s: %w", id, fleet.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("mvp count %s: %v: %w", id, err, fleet.ErrCommitFailed)
	}
	return count, nil
}
