package store

import (
	"fmt"
)

// Metadata is the (name UNIQUE, value) contract spec.md §3 requires,
// adapted from the teacher's mbtiles.Metadata to add the encoding field
// this domain needs (terrain elevation encoding, if any).
type Metadata struct {
	Name        string
	Format      string // png, jpg, webp, ...
	Attribution string
	Description string
	Type        string // baselayer, overlay
	Version     string
	Bounds      [4]float64 // minLon, minLat, maxLon, maxLat
	Center      [3]float64 // lon, lat, zoom
	MinZoom     int
	MaxZoom     int
	TileSize    int
	Encoding    string // "", terrarium, mapbox
}

// ToMap flattens Metadata into the string key/value pairs stored in the
// metadata table.
func (m Metadata) ToMap() map[string]string {
	out := map[string]string{
		"name":        m.Name,
		"format":      m.Format,
		"attribution": m.Attribution,
		"description": m.Description,
		"type":        m.Type,
		"version":     m.Version,
		"minzoom":     fmt.Sprintf("%d", m.MinZoom),
		"maxzoom":     fmt.Sprintf("%d", m.MaxZoom),
		"tileSize":    fmt.Sprintf("%d", m.TileSize),
		"bounds":      fmt.Sprintf("%g,%g,%g,%g", m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3]),
		"center":      fmt.Sprintf("%g,%g,%g", m.Center[0], m.Center[1], m.Center[2]),
	}
	if m.Encoding != "" {
		out["encoding"] = m.Encoding
	}
	return out
}

// PutMetadata replaces the metadata table contents with m.
func (s *Store) PutMetadata(m Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("put metadata: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("put metadata: clear: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("put metadata: prepare: %w", err)
	}
	defer stmt.Close()

	for k, v := range m.ToMap() {
		if _, err := stmt.Exec(k, v); err != nil {
			return fmt.Errorf("put metadata: insert %q: %w", k, err)
		}
	}

	return tx.Commit()
}

// GetMetadata reads and parses the metadata table.
func (s *Store) GetMetadata() (Metadata, error) {
	rows, err := s.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	defer rows.Close()

	raw := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("get metadata: scan: %w", err)
		}
		raw[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, err
	}

	m := Metadata{
		Name:        raw["name"],
		Format:      raw["format"],
		Attribution: raw["attribution"],
		Description: raw["description"],
		Type:        raw["type"],
		Version:     raw["version"],
		Encoding:    raw["encoding"],
	}
	fmt.Sscanf(raw["minzoom"], "%d", &m.MinZoom)
	fmt.Sscanf(raw["maxzoom"], "%d", &m.MaxZoom)
	fmt.Sscanf(raw["tileSize"], "%d", &m.TileSize)
	fmt.Sscanf(raw["bounds"], "%g,%g,%g,%g", &m.Bounds[0], &m.Bounds[1], &m.Bounds[2], &m.Bounds[3])
	fmt.Sscanf(raw["center"], "%g,%g,%g", &m.Center[0], &m.Center[1], &m.Center[2])

	return m, nil
}
