// Package persistence stores finished simulation runs in SQLite and writes the
// per-tick compressed log.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/office-diffusion/internal/metrics"
	"github.com/talgya/office-diffusion/internal/office"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		seed TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		ticks INTEGER NOT NULL,
		population INTEGER NOT NULL,
		spaces INTEGER NOT NULL,
		informed INTEGER NOT NULL,
		percent REAL NOT NULL,
		interactions INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS diffusion (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		tick INTEGER NOT NULL,
		informed INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percent REAL NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS space_usage (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		tick INTEGER NOT NULL,
		space_id INTEGER NOT NULL,
		space_type TEXT NOT NULL,
		occupants INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick, space_id)
	);

	CREATE TABLE IF NOT EXISTS interactions (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		agent_a INTEGER NOT NULL,
		agent_b INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS centrality (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		agent_id INTEGER NOT NULL,
		degree REAL NOT NULL,
		closeness REAL NOT NULL,
		betweenness REAL NOT NULL,
		pagerank REAL NOT NULL,
		interactions INTEGER NOT NULL,
		PRIMARY KEY (run_id, agent_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_interactions_tick ON interactions(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunRecord summarises one stored run.
type RunRecord struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	CreatedAt    time.Time `json:"created_at"`
	Seed         uint64    `json:"seed"`
	Mode         string    `json:"mode"`
	Status       string    `json:"status"`
	Ticks        int       `json:"ticks"`
	Population   int       `json:"population"`
	Spaces       int       `json:"spaces"`
	Informed     int       `json:"informed"`
	Percent      float64   `json:"percent"`
	Interactions int       `json:"interactions"`
}

// runRow is the storage form of RunRecord. SQLite integers are signed, so the
// seed is kept as text.
type runRow struct {
	ID           string  `db:"id"`
	Label        string  `db:"label"`
	CreatedAt    int64   `db:"created_at"`
	Seed         string  `db:"seed"`
	Mode         string  `db:"mode"`
	Status       string  `db:"status"`
	Ticks        int     `db:"ticks"`
	Population   int     `db:"population"`
	Spaces       int     `db:"spaces"`
	Informed     int     `db:"informed"`
	Percent      float64 `db:"percent"`
	Interactions int     `db:"interactions"`
}

func (r runRow) record() RunRecord {
	seed, _ := strconv.ParseUint(r.Seed, 10, 64)
	return RunRecord{
		ID:           r.ID,
		Label:        r.Label,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
		Seed:         seed,
		Mode:         r.Mode,
		Status:       r.Status,
		Ticks:        r.Ticks,
		Population:   r.Population,
		Spaces:       r.Spaces,
		Informed:     r.Informed,
		Percent:      r.Percent,
		Interactions: r.Interactions,
	}
}

// SaveRun writes a run summary and all of its series in one transaction. An
// empty rec.ID is filled with a fresh UUID; a zero CreatedAt with the current time.
func (db *DB) SaveRun(rec *RunRecord, floor *office.Floor, snap metrics.Snapshot, centrality []metrics.CentralityRow) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	final := snap.Final()
	rec.Ticks = snap.Ticks()
	rec.Informed = final.Informed
	rec.Percent = final.Percent
	rec.Interactions = len(snap.Interactions)
	if floor != nil {
		rec.Spaces = floor.Len()
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs
		(id, label, created_at, seed, mode, status, ticks, population, spaces,
		 informed, percent, interactions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Label, rec.CreatedAt.UnixMilli(), strconv.FormatUint(rec.Seed, 10),
		rec.Mode, rec.Status, rec.Ticks, rec.Population, rec.Spaces,
		rec.Informed, rec.Percent, rec.Interactions,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := insertDiffusion(tx, rec.ID, snap.Diffusion); err != nil {
		return fmt.Errorf("insert diffusion: %w", err)
	}
	if err := insertUsage(tx, rec.ID, floor, snap.Usage); err != nil {
		return fmt.Errorf("insert usage: %w", err)
	}
	if err := insertInteractions(tx, rec.ID, snap.Interactions); err != nil {
		return fmt.Errorf("insert interactions: %w", err)
	}
	if err := insertCentrality(tx, rec.ID, centrality); err != nil {
		return fmt.Errorf("insert centrality: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("run saved", "run", rec.ID, "ticks", rec.Ticks, "interactions", rec.Interactions)
	return nil
}

func insertDiffusion(tx *sqlx.Tx, runID string, points []metrics.DiffusionPoint) error {
	stmt, err := tx.Preparex(`INSERT INTO diffusion (run_id, tick, informed, total, percent)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.Exec(runID, p.Tick, p.Informed, p.Total, p.Percent); err != nil {
			return fmt.Errorf("tick %d: %w", p.Tick, err)
		}
	}
	return nil
}

func insertUsage(tx *sqlx.Tx, runID string, floor *office.Floor, usage []metrics.UsagePoint) error {
	if floor == nil || len(usage) == 0 {
		return nil
	}
	stmt, err := tx.Preparex(`INSERT INTO space_usage (run_id, tick, space_id, space_type, occupants)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, u := range usage {
		for id, n := range u.BySpace {
			sp := floor.Get(office.SpaceID(id))
			if sp == nil {
				return fmt.Errorf("tick %d: unknown space %d", u.Tick, id)
			}
			if _, err := stmt.Exec(runID, u.Tick, id, sp.Type.String(), n); err != nil {
				return fmt.Errorf("tick %d space %d: %w", u.Tick, id, err)
			}
		}
	}
	return nil
}

func insertInteractions(tx *sqlx.Tx, runID string, records []metrics.Interaction) error {
	stmt, err := tx.Preparex(`INSERT INTO interactions (run_id, seq, tick, agent_a, agent_b)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range records {
		if _, err := stmt.Exec(runID, i, r.Tick, int64(r.A), int64(r.B)); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func insertCentrality(tx *sqlx.Tx, runID string, rows []metrics.CentralityRow) error {
	stmt, err := tx.Preparex(`INSERT INTO centrality
		(run_id, agent_id, degree, closeness, betweenness, pagerank, interactions)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(runID, int64(r.Agent), r.Degree, r.Closeness,
			r.Betweenness, r.PageRank, r.Interactions); err != nil {
			return fmt.Errorf("agent %d: %w", r.Agent, err)
		}
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	var rows []runRow
	if err := db.conn.Select(&rows,
		"SELECT * FROM runs ORDER BY created_at DESC, id LIMIT ?", limit,
	); err != nil {
		return nil, err
	}
	out := make([]RunRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// GetRun returns one run summary.
func (db *DB) GetRun(id string) (RunRecord, error) {
	var row runRow
	err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, err
	}
	return row.record(), nil
}

// LoadDiffusion returns the coverage series of a run in tick order.
func (db *DB) LoadDiffusion(runID string) ([]metrics.DiffusionPoint, error) {
	var points []metrics.DiffusionPoint
	err := db.conn.Select(&points,
		"SELECT tick, informed, total, percent FROM diffusion WHERE run_id = ? ORDER BY tick",
		runID,
	)
	return points, err
}

// LoadInteractions returns the interaction log of a run in recorded order.
func (db *DB) LoadInteractions(runID string) ([]metrics.Interaction, error) {
	var records []metrics.Interaction
	err := db.conn.Select(&records,
		"SELECT tick, agent_a, agent_b FROM interactions WHERE run_id = ? ORDER BY seq",
		runID,
	)
	return records, err
}

// LoadCentrality returns the stored centrality table of a run, by agent ID.
func (db *DB) LoadCentrality(runID string) ([]metrics.CentralityRow, error) {
	var rows []metrics.CentralityRow
	err := db.conn.Select(&rows,
		`SELECT agent_id, degree, closeness, betweenness, pagerank, interactions
		FROM centrality WHERE run_id = ? ORDER BY agent_id`,
		runID,
	)
	return rows, err
}

// TypeUsage is the total occupancy of one space type over a whole run.
type TypeUsage struct {
	Type      string `json:"type" db:"space_type"`
	Occupants int    `json:"occupants" db:"occupants"`
}

// LoadTypeUsage sums occupancy per space type across every tick of a run.
func (db *DB) LoadTypeUsage(runID string) ([]TypeUsage, error) {
	var out []TypeUsage
	err := db.conn.Select(&out,
		`SELECT space_type, SUM(occupants) AS occupants FROM space_usage
		WHERE run_id = ? GROUP BY space_type ORDER BY space_type`,
		runID,
	)
	return out, err
}

// DeleteRun removes a run and its series.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"diffusion", "space_usage", "interactions", "centrality"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}
