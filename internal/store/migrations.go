package store

import (
	"database/sql"
	"fmt"

	"github.com/MeKo-Tech/tilecache/internal/tile"
)

// migration is one ordered, named schema change tracked in schema_info.
type migration struct {
	name string
	up   func(*sql.Tx) error
}

// migrations is the ordered list applied by applyMigrations. Migration 005
// ("drop_out_of_bounds") is intentionally NOT in this list: spec.md §9
// keeps it a one-shot, optionally-invoked operation, available only as
// Store.PruneOutOfBounds; no CLI command calls it.
var migrations = []migration{
	{name: "001_schema_info", up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS schema_info (
				name TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL
			)`)
		return err
	}},
	{name: "002_tiles_metadata", up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS tiles (
				zoom_level  INTEGER NOT NULL,
				tile_column INTEGER NOT NULL,
				tile_row    INTEGER NOT NULL,
				tile_data   BLOB NOT NULL,
				generated   INTEGER NOT NULL DEFAULT 0,
				updated_at  TEXT NOT NULL
			);
			CREATE UNIQUE INDEX IF NOT EXISTS tiles_key ON tiles (zoom_level, tile_column, tile_row);
			CREATE INDEX IF NOT EXISTS tiles_zoom ON tiles (zoom_level);
			CREATE INDEX IF NOT EXISTS tiles_zoom_size ON tiles (zoom_level, length(tile_data));
			CREATE INDEX IF NOT EXISTS tiles_zoom_updated ON tiles (zoom_level, updated_at);
			CREATE INDEX IF NOT EXISTS tiles_zoom_generated ON tiles (zoom_level, generated);

			CREATE TABLE IF NOT EXISTS metadata (
				name  TEXT UNIQUE NOT NULL,
				value TEXT
			);
		`)
		return err
	}},
	{name: "003_misses", up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS misses (
				zoom_level    INTEGER NOT NULL,
				tile_column   INTEGER NOT NULL,
				tile_row      INTEGER NOT NULL,
				ts            INTEGER NOT NULL,
				reason        TEXT NOT NULL,
				details       TEXT,
				status        INTEGER NOT NULL,
				response_body BLOB,
				PRIMARY KEY (zoom_level, tile_column, tile_row)
			);
			CREATE INDEX IF NOT EXISTS misses_zoom_status ON misses (zoom_level, status);
			CREATE INDEX IF NOT EXISTS misses_ts ON misses (ts);
		`)
		return err
	}},
	{name: "004_scan_progress", up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE IF NOT EXISTS scan_progress (
				source         TEXT NOT NULL,
				zoom_level     INTEGER NOT NULL,
				last_x         INTEGER NOT NULL DEFAULT 0,
				last_y         INTEGER NOT NULL DEFAULT 0,
				tiles_today    INTEGER NOT NULL DEFAULT 0,
				last_scan_date TEXT NOT NULL DEFAULT '',
				status         TEXT NOT NULL DEFAULT 'waiting',
				PRIMARY KEY (source, zoom_level)
			);
		`)
		return err
	}},
}

// applyMigrations runs every migration not already recorded in
// schema_info, in order, inside its own transaction. A failed migration
// is fatal to opening the source, per spec.md §4.1.
func applyMigrations(db *sql.DB) error {
	// schema_info itself may not exist yet on a brand-new file; the
	// first migration creates it, so probe defensively.
	applied := map[string]bool{}
	if hasTable(db, "schema_info") {
		rows, err := db.Query("SELECT name FROM schema_info")
		if err != nil {
			return fmt.Errorf("reading schema_info: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			applied[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	for _, m := range migrations {
		if applied[m.name] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %s: begin: %w", m.name, err)
		}

		if err := m.up(tx); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %s: %w", m.name, err)
		}

		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO schema_info (name, applied_at) VALUES (?, datetime('now'))",
			m.name,
		); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %s: record: %w", m.name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %s: commit: %w", m.name, err)
		}
	}

	return nil
}

func hasTable(db *sql.DB, name string) bool {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	return err == nil && count > 0
}

// PruneOutOfBounds implements the optional migration 005: deletes every
// tile outside the given WGS84 bbox. It is never invoked automatically;
// spec.md §9 keeps it an explicit, one-shot operation. No CLI command
// calls it: `tilecache vacuum` only runs VACUUM.
func (s *Store) PruneOutOfBounds(bbox [4]float64, zoomMin, zoomMax int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.Query(
		"SELECT zoom_level, tile_column, tile_row FROM tiles WHERE zoom_level BETWEEN ? AND ?",
		zoomMin, zoomMax,
	)
	if err != nil {
		return 0, err
	}

	type key struct{ z, x, tmsRow int }
	var toDelete []key
	for rows.Next() {
		var z, x, tmsRow int
		if err := rows.Scan(&z, &x, &tmsRow); err != nil {
			rows.Close()
			return 0, err
		}
		if !tmsRowInBounds(z, x, tmsRow, bbox) {
			toDelete = append(toDelete, key{z, x, tmsRow})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare("DELETE FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var deleted int64
	for _, k := range toDelete {
		res, err := stmt.Exec(k.z, k.x, k.tmsRow)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func tmsRowInBounds(z, x, tmsRow int, bbox [4]float64) bool {
	c := tile.FromTMSRow(uint32(z), uint32(x), uint32(tmsRow))
	return c.InBounds(bbox)
}
