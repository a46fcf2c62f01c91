package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// DefaultMissMaxRecords matches spec.md §6's default for miss_max_records.
const DefaultMissMaxRecords = 10000

// Miss is a negative cache entry: a failed or unusable upstream fetch.
type Miss struct {
	Z, X, TMSRow int
	TS           int64
	Reason       string
	Details      string
	Status       int
	ResponseBody []byte
}

// GetMiss reads the miss at a key. Returns ErrNotFound if absent.
func (s *Store) GetMiss(z, x, tmsRow int) (*Miss, error) {
	m := &Miss{Z: z, X: x, TMSRow: tmsRow}
	var details sql.NullString
	var body []byte

	err := s.db.QueryRow(
		`SELECT ts, reason, details, status, response_body FROM misses
		 WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
		z, x, tmsRow,
	).Scan(&m.TS, &m.Reason, &details, &m.Status, &body)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get miss %d/%d/%d: %w", z, x, tmsRow, err)
	}

	m.Details = details.String
	m.ResponseBody = body
	return m, nil
}

// RecordMiss deletes any existing miss at the key then inserts the new
// one (so ts/reason/status always reflect the latest failure, the
// "canonical" miss record spec.md §7 requires), and bulk-trims the
// table if it now exceeds maxRecords, keeping the newest 80%.
func (s *Store) RecordMiss(m Miss, maxRecords int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxRecords <= 0 {
		maxRecords = DefaultMissMaxRecords
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record miss %d/%d/%d: begin: %w", m.Z, m.X, m.TMSRow, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(
		"DELETE FROM misses WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		m.Z, m.X, m.TMSRow,
	); err != nil {
		return fmt.Errorf("record miss %d/%d/%d: delete: %w", m.Z, m.X, m.TMSRow, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO misses (zoom_level, tile_column, tile_row, ts, reason, details, status, response_body)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Z, m.X, m.TMSRow, m.TS, m.Reason, m.Details, m.Status, m.ResponseBody,
	); err != nil {
		return fmt.Errorf("record miss %d/%d/%d: insert: %w", m.Z, m.X, m.TMSRow, err)
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM misses").Scan(&count); err != nil {
		return fmt.Errorf("record miss: count: %w", err)
	}

	if count > maxRecords {
		keep := (maxRecords * 80) / 100
		trim := count - keep
		if trim > 0 {
			if _, err := tx.Exec(
				`DELETE FROM misses WHERE rowid IN (
					SELECT rowid FROM misses ORDER BY ts ASC LIMIT ?
				)`, trim,
			); err != nil {
				return fmt.Errorf("record miss: trim: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record miss %d/%d/%d: commit: %w", m.Z, m.X, m.TMSRow, err)
	}
	return nil
}

// DeleteMiss removes a miss at a key, e.g. when it has aged past
// miss_timeout and is being retried.
func (s *Store) DeleteMiss(z, x, tmsRow int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM misses WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		z, x, tmsRow,
	)
	if err != nil {
		return fmt.Errorf("delete miss %d/%d/%d: %w", z, x, tmsRow, err)
	}
	return nil
}

// CountMisses returns the number of recorded misses at a zoom level.
func (s *Store) CountMisses(z int) (int64, error) {
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM misses WHERE zoom_level=?", z).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count misses z=%d: %w", z, err)
	}
	return n, nil
}

// MissesAtZoom returns every miss at a zoom level, used by the
// reconstructor's "convert misses into tiles where children exist" pass.
func (s *Store) MissesAtZoom(z int) ([]Miss, error) {
	rows, err := s.db.Query(
		`SELECT tile_column, tile_row, ts, reason, details, status, response_body
		 FROM misses WHERE zoom_level=?`, z,
	)
	if err != nil {
		return nil, fmt.Errorf("misses at zoom %d: %w", z, err)
	}
	defer rows.Close()

	var out []Miss
	for rows.Next() {
		m := Miss{Z: z}
		var details sql.NullString
		var body []byte
		if err := rows.Scan(&m.X, &m.TMSRow, &m.TS, &m.Reason, &details, &m.Status, &body); err != nil {
			return nil, fmt.Errorf("misses at zoom %d: scan: %w", z, err)
		}
		m.Details = details.String
		m.ResponseBody = body
		out = append(out, m)
	}
	return out, rows.Err()
}
