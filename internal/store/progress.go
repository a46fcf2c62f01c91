package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ScanStatus is the lifecycle state of one zoom's scan, spec.md §3.
type ScanStatus string

const (
	ScanWaiting           ScanStatus = "waiting"
	ScanActive            ScanStatus = "active"
	ScanCompleted         ScanStatus = "completed"
	ScanStopped           ScanStatus = "stopped"
	ScanError             ScanStatus = "error"
	ScanSourceUnavailable ScanStatus = "source_unavailable"
	ScanCriticalError     ScanStatus = "critical_error"
)

// ScanProgress is the resumable cursor for one source/zoom scan.
type ScanProgress struct {
	Source       string
	Zoom         int
	LastX        int
	LastY        int
	TilesToday   int
	LastScanDate string // YYYY-MM-DD
	Status       ScanStatus
}

// GetScanProgress reads the progress row for (source, zoom). Returns a
// zero-value ScanProgress with Status=waiting if none exists yet —
// scans always have an implicit starting state.
func (s *Store) GetScanProgress(source string, zoom int) (ScanProgress, error) {
	p := ScanProgress{Source: source, Zoom: zoom, Status: ScanWaiting}

	var lastScanDate sql.NullString
	err := s.db.QueryRow(
		`SELECT last_x, last_y, tiles_today, last_scan_date, status
		 FROM scan_progress WHERE source=? AND zoom_level=?`,
		source, zoom,
	).Scan(&p.LastX, &p.LastY, &p.TilesToday, &lastScanDate, &p.Status)

	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("get scan progress %s/z%d: %w", source, zoom, err)
	}
	p.LastScanDate = lastScanDate.String
	return p, nil
}

// UpsertScanProgress writes the full progress row.
func (s *Store) UpsertScanProgress(p ScanProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO scan_progress (source, zoom_level, last_x, last_y, tiles_today, last_scan_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, zoom_level) DO UPDATE SET
		   last_x=excluded.last_x, last_y=excluded.last_y,
		   tiles_today=excluded.tiles_today, last_scan_date=excluded.last_scan_date,
		   status=excluded.status`,
		p.Source, p.Zoom, p.LastX, p.LastY, p.TilesToday, p.LastScanDate, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("upsert scan progress %s/z%d: %w", p.Source, p.Zoom, err)
	}
	return nil
}

// UpdateStatus sets the status column for a set of zooms, e.g. to move a
// whole source to source_unavailable or to reset stale zooms to waiting
// on startup.
func (s *Store) UpdateStatus(source string, zooms []int, status ScanStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("update status: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(
		`UPDATE scan_progress SET status=? WHERE source=? AND zoom_level=?`,
	)
	if err != nil {
		return fmt.Errorf("update status: prepare: %w", err)
	}
	defer stmt.Close()

	for _, z := range zooms {
		if _, err := stmt.Exec(string(status), source, z); err != nil {
			return fmt.Errorf("update status z=%d: %w", z, err)
		}
	}

	return tx.Commit()
}

// AllScanProgress returns every progress row for a source, used to
// rebuild in-memory scanner state on startup.
func (s *Store) AllScanProgress(source string) ([]ScanProgress, error) {
	rows, err := s.db.Query(
		`SELECT zoom_level, last_x, last_y, tiles_today, last_scan_date, status
		 FROM scan_progress WHERE source=?`, source,
	)
	if err != nil {
		return nil, fmt.Errorf("all scan progress %s: %w", source, err)
	}
	defer rows.Close()

	var out []ScanProgress
	for rows.Next() {
		p := ScanProgress{Source: source}
		var lastScanDate sql.NullString
		if err := rows.Scan(&p.Zoom, &p.LastX, &p.LastY, &p.TilesToday, &lastScanDate, &p.Status); err != nil {
			return nil, fmt.Errorf("all scan progress %s: scan: %w", source, err)
		}
		p.LastScanDate = lastScanDate.String
		out = append(out, p)
	}
	return out, rows.Err()
}
