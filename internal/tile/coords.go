// Package tile provides Web Mercator tile coordinate math shared by the
// store, engine, scanner and pyramid reconstructor.
package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Coords identifies a tile in the XYZ (Google/OSM) addressing scheme.
type Coords struct {
	Z uint32
	X uint32
	Y uint32
}

// String returns the tile coordinate as "z{zoom}_x{x}_y{y}".
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// Path returns a file-path-shaped rendering of the coordinate with the
// given extension, e.g. "z13_x4297_y2754.png".
func (c Coords) Path(extension string) string {
	return fmt.Sprintf("%s.%s", c.String(), extension)
}

// Tile returns the maptile.Tile equivalent of this coordinate.
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// TMSRow converts the XYZ row to the MBTiles/TMS row convention
// (tile_row = 2^z - 1 - y).
func (c Coords) TMSRow() uint32 {
	return (uint32(1)<<c.Z - 1) - c.Y
}

// FromTMSRow builds a Coords from a zoom, column and TMS row.
func FromTMSRow(z, x, tmsRow uint32) Coords {
	return Coords{Z: z, X: x, Y: (uint32(1)<<z - 1) - tmsRow}
}

// Parent returns the tile one zoom level up that contains this tile, and
// whether one exists (z must be > 0).
func (c Coords) Parent() (Coords, bool) {
	if c.Z == 0 {
		return Coords{}, false
	}
	return Coords{Z: c.Z - 1, X: c.X / 2, Y: c.Y / 2}, true
}

// Children returns the four tiles one zoom level down, in
// [topLeft, topRight, bottomLeft, bottomRight] order.
func (c Coords) Children() [4]Coords {
	z, x, y := c.Z+1, c.X*2, c.Y*2
	return [4]Coords{
		{Z: z, X: x, Y: y},
		{Z: z, X: x + 1, Y: y},
		{Z: z, X: x, Y: y + 1},
		{Z: z, X: x + 1, Y: y + 1},
	}
}

// Bounds returns the geographic bounding box for this tile in WGS84
// (EPSG:4326) as [minLon, minLat, maxLon, maxLat].
func (c Coords) Bounds() [4]float64 {
	t := c.Tile()
	bound := t.Bound()

	return [4]float64{
		bound.Min.Lon(),
		bound.Min.Lat(),
		bound.Max.Lon(),
		bound.Max.Lat(),
	}
}

// BoundsMercator returns the bounding box in Web Mercator (EPSG:3857), in
// meters, as [minX, minY, maxX, maxY].
func (c Coords) BoundsMercator() [4]float64 {
	bounds := c.Bounds()
	minLon, minLat := bounds[0], bounds[1]
	maxLon, maxLat := bounds[2], bounds[3]

	minX, minY := lonLatToMercator(minLon, minLat)
	maxX, maxY := lonLatToMercator(maxLon, maxLat)

	return [4]float64{minX, minY, maxX, maxY}
}

// Center returns the center point of the tile in WGS84 (lon, lat).
func (c Coords) Center() (float64, float64) {
	bounds := c.Bounds()
	lon := (bounds[0] + bounds[2]) / 2.0
	lat := (bounds[1] + bounds[3]) / 2.0
	return lon, lat
}

// CenterMercator returns the center point in Web Mercator (x, y) meters.
func (c Coords) CenterMercator() (float64, float64) {
	lon, lat := c.Center()
	return lonLatToMercator(lon, lat)
}

// InBounds reports whether the tile intersects the given WGS84 bounding
// box [minLon, minLat, maxLon, maxLat].
func (c Coords) InBounds(bbox [4]float64) bool {
	tb := c.Bounds()
	return tb[0] < bbox[2] && tb[2] > bbox[0] && tb[1] < bbox[3] && tb[3] > bbox[1]
}

func lonLatToMercator(lon, lat float64) (float64, float64) {
	const earthRadius = 6378137.0

	x := earthRadius * lon * math.Pi / 180.0
	latRad := lat * math.Pi / 180.0
	y := earthRadius * math.Log(math.Tan(math.Pi/4.0+latRad/2.0))

	return x, y
}

func mercatorToLonLat(x, y float64) (float64, float64) {
	const earthRadius = 6378137.0

	lon := (x / earthRadius) * 180.0 / math.Pi
	lat := (math.Atan(math.Exp(y/earthRadius)) - math.Pi/4.0) * 2.0 * 180.0 / math.Pi

	return lon, lat
}

// NewCoords builds a Coords from zoom, x, y values.
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// ParseCoords parses a string like "z13_x4297_y2754" into Coords.
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, nil
}

// TileRange is a rectangular range of tiles at a single zoom level, or
// the same rectangle repeated across a zoom span.
type TileRange struct {
	MinZ, MaxZ uint32
	MinX, MaxX uint32
	MinY, MaxY uint32
}

// ForEach calls fn for every tile in the range, ordered by zoom then
// column (x) then row (y).
func (r TileRange) ForEach(fn func(Coords)) {
	for z := r.MinZ; z <= r.MaxZ; z++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			for y := r.MinY; y <= r.MaxY; y++ {
				fn(NewCoords(z, x, y))
			}
		}
	}
}

// Count returns the total number of tiles in the range.
func (r TileRange) Count() int {
	count := 0
	for z := r.MinZ; z <= r.MaxZ; z++ {
		xCount := r.MaxX - r.MinX + 1
		yCount := r.MaxY - r.MinY + 1
		count += int(xCount * yCount)
	}
	return count
}

// TileCount returns the number of tiles intersecting bbox
// ([minLon, minLat, maxLon, maxLat] in WGS84) across [zoomMin, zoomMax],
// computing X/Y independently at each zoom level — used by the scanner
// as the expected tile count of a zoom level.
func TileCount(bbox [4]float64, zoomMin, zoomMax int) int {
	minLon, minLat, maxLon, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]
	minPoint := orb.Point{minLon, minLat}
	maxPoint := orb.Point{maxLon, maxLat}

	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		zoom := maptile.Zoom(z)

		minTile := maptile.At(minPoint, zoom)
		maxTile := maptile.At(maxPoint, zoom)

		minX, maxX := minTile.X, maxTile.X
		if minX > maxX {
			minX, maxX = maxX, minX
		}

		minY, maxY := minTile.Y, maxTile.Y
		if minY > maxY {
			minY, maxY = maxY, minY
		}

		xCount := int(maxX - minX + 1)
		yCount := int(maxY - minY + 1)
		count += xCount * yCount
	}

	return count
}

// ZoomXYBounds returns the XYZ tile index range covering bbox at a
// single zoom, clipped to [0, 2^z-1]. Used by the scanner's grid walk,
// which resumes from a persisted (last_x, last_y) per zoom rather than
// materializing the whole multi-zoom tile list up front.
func ZoomXYBounds(bbox [4]float64, z int) (minX, maxX, minY, maxY uint32) {
	minLon, minLat, maxLon, maxLat := bbox[0], bbox[1], bbox[2], bbox[3]
	zoom := maptile.Zoom(z)

	minTile := maptile.At(orb.Point{minLon, minLat}, zoom)
	maxTile := maptile.At(orb.Point{maxLon, maxLat}, zoom)

	minX, maxX = minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	limit := uint32(1)<<uint32(z) - 1
	if maxX > limit {
		maxX = limit
	}
	if maxY > limit {
		maxY = limit
	}
	return minX, maxX, minY, maxY
}
