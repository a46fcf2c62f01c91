package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup key has no row.
var ErrNotFound = errors.New("store: not found")

// Tile is a stored tile row, key is (Z, X, TMSRow).
type Tile struct {
	Z         int
	X         int
	TMSRow    int
	Data      []byte
	Generated Generated
	UpdatedAt time.Time
}

// GetTile reads a tile by its TMS-row key. Returns ErrNotFound if absent.
func (s *Store) GetTile(z, x, tmsRow int) (*Tile, error) {
	var data []byte
	var generated int
	var updatedAt string

	err := s.db.QueryRow(
		`SELECT tile_data, generated, updated_at FROM tiles
		 WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
		z, x, tmsRow,
	).Scan(&data, &generated, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tile %d/%d/%d: %w", z, x, tmsRow, err)
	}

	ts, _ := time.Parse(time.RFC3339, updatedAt)
	return &Tile{
		Z: z, X: x, TMSRow: tmsRow,
		Data:      data,
		Generated: Generated(generated),
		UpdatedAt: ts,
	}, nil
}

// PutTile upserts a tile, replacing any existing row with the same key
// and refreshing updated_at to now (UTC). This is the Engine's and
// Scanner's write path for origin tiles (generated=0) and the
// Reconstructor's write path for composed tiles (generated=1).
//
// A key is in Tiles XOR Misses (invariant I1): the same transaction that
// writes the tile also deletes any Miss at the same key.
func (s *Store) PutTile(z, x, tmsRow int, data []byte, generated Generated) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("put tile %d/%d/%d: begin: %w", z, x, tmsRow, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(
		`INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data, generated, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (zoom_level, tile_column, tile_row)
		 DO UPDATE SET tile_data=excluded.tile_data, generated=excluded.generated, updated_at=excluded.updated_at`,
		z, x, tmsRow, data, int(generated), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put tile %d/%d/%d: %w", z, x, tmsRow, err)
	}

	if _, err := tx.Exec(
		"DELETE FROM misses WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		z, x, tmsRow,
	); err != nil {
		return fmt.Errorf("put tile %d/%d/%d: clear miss: %w", z, x, tmsRow, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put tile %d/%d/%d: commit: %w", z, x, tmsRow, err)
	}
	return nil
}

// SetGenerated updates only the generated column of an existing tile,
// used by the reconstructor to promote a placeholder (1→2) without
// touching tile_data. Returns ErrNotFound if the key doesn't exist.
func (s *Store) SetGenerated(z, x, tmsRow int, generated Generated) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE tiles SET generated=? WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
		int(generated), z, x, tmsRow,
	)
	if err != nil {
		return fmt.Errorf("set generated %d/%d/%d: %w", z, x, tmsRow, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CandidatesAtZoom returns every tile at z marked generated=2
// (regeneration candidate), used by the reconstructor's scheduled pass.
func (s *Store) CandidatesAtZoom(z int) ([]Tile, error) {
	rows, err := s.db.Query(
		`SELECT tile_column, tile_row, tile_data, updated_at FROM tiles
		 WHERE zoom_level=? AND generated=?`,
		z, int(GeneratedCandidate),
	)
	if err != nil {
		return nil, fmt.Errorf("candidates at zoom %d: %w", z, err)
	}
	defer rows.Close()

	var out []Tile
	for rows.Next() {
		t := Tile{Z: z, Generated: GeneratedCandidate}
		var updatedAt string
		if err := rows.Scan(&t.X, &t.TMSRow, &t.Data, &updatedAt); err != nil {
			return nil, fmt.Errorf("candidates at zoom %d: scan: %w", z, err)
		}
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DistinctParentKeys returns every distinct (tile_column/2, tile_row/2)
// pair among tiles stored at childZoom, used by the reconstructor to
// find child clusters whose parent row is entirely absent.
func (s *Store) DistinctParentKeys(childZoom int) ([][2]int, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT tile_column/2, tile_row/2 FROM tiles WHERE zoom_level=?`,
		childZoom,
	)
	if err != nil {
		return nil, fmt.Errorf("distinct parent keys z=%d: %w", childZoom, err)
	}
	defer rows.Close()

	var out [][2]int
	for rows.Next() {
		var px, ptms int
		if err := rows.Scan(&px, &ptms); err != nil {
			return nil, fmt.Errorf("distinct parent keys z=%d: scan: %w", childZoom, err)
		}
		out = append(out, [2]int{px, ptms})
	}
	return out, rows.Err()
}

// CountTiles returns the number of stored tiles at a zoom level.
func (s *Store) CountTiles(z int) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM tiles WHERE zoom_level=?", z).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tiles z=%d: %w", z, err)
	}
	return n, nil
}

// SumTileBytes returns the total stored tile payload size across all
// zoom levels, used for the /api/stats cache_size field.
func (s *Store) SumTileBytes() (int64, error) {
	var n sql.NullInt64
	err := s.db.QueryRow("SELECT SUM(length(tile_data)) FROM tiles").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sum tile bytes: %w", err)
	}
	return n.Int64, nil
}
