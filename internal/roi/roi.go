// Package roi decides which regions of a frame the detector looks at.
//
// Static photos are split once into an overlapping grid (StaticGrid). Live
// frames get one region per inference from a Rotator, cycling through the
// frame so that over a few frames every part is seen at higher effective
// resolution.
package roi

import (
	"image"
	"math"
	"sync"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// DefaultMinTileDimension is the long-side length below which a static image
// is processed as a single full frame.
const DefaultMinTileDimension = 1000

// GridConfig controls StaticGrid.
type GridConfig struct {
	// MinDimension disables tiling when the image's long side is smaller.
	MinDimension int
	// Overlap is the fraction of the frame shared by neighboring grid tiles.
	Overlap float64
	// CenterFraction is the size of the centered tile relative to the frame.
	CenterFraction float64
}

// DefaultGridConfig returns the standard static grid.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		MinDimension:   DefaultMinTileDimension,
		Overlap:        0.2,
		CenterFraction: 0.5,
	}
}

// StaticGrid returns the tiles for a width x height image: the full frame
// (index 0), a 2x2 grid of overlapping tiles clamped to the image (indices
// 1-4, reading order from the top-left) and a centered tile (index 5). Small
// images get only the full frame.
func StaticGrid(width, height int, cfg GridConfig) []geometry.Tile {
	tiles := []geometry.Tile{geometry.FullFrame()}
	if width <= 0 || height <= 0 {
		return tiles
	}
	if max(width, height) < cfg.MinDimension {
		return tiles
	}

	full := image.Pt(width, height)
	tw := int(math.Round(float64(width) * (0.5 + cfg.Overlap/2)))
	th := int(math.Round(float64(height) * (0.5 + cfg.Overlap/2)))

	index := 1
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			// Nominal origin of the half-frame cell, shifted so the tile is
			// centered on it, then kept inside the image.
			x := col*width/2 - (tw-width/2)/2
			y := row*height/2 - (th-height/2)/2
			x = clamp(x, 0, width-tw)
			y = clamp(y, 0, height-th)
			rect := image.Rect(x, y, x+tw, y+th)
			tiles = append(tiles, tileFromRect(rect, full, index))
			index++
		}
	}

	cw := int(math.Round(float64(width) * cfg.CenterFraction))
	ch := int(math.Round(float64(height) * cfg.CenterFraction))
	cx := (width - cw) / 2
	cy := (height - ch) / 2
	tiles = append(tiles, tileFromRect(image.Rect(cx, cy, cx+cw, cy+ch), full, index))

	return tiles
}

func tileFromRect(r image.Rectangle, full image.Point, index int) geometry.Tile {
	b := geometry.MapCropRegionToNormalized(r, full)
	return geometry.Tile{
		Origin: geometry.Point{X: b.X, Y: b.Y},
		Size:   geometry.Size{W: b.W, H: b.H},
		Index:  index,
	}
}

// RotatingTiles returns the fixed cycle used for live frames: the full
// frame, four corner tiles of cornerFraction per axis (top-left, top-right,
// bottom-left, bottom-right) and a centered tile of the same size.
func RotatingTiles(cornerFraction float64) []geometry.Tile {
	s := cornerFraction
	far := 1 - s
	mid := (1 - s) / 2
	size := geometry.Size{W: s, H: s}
	return []geometry.Tile{
		geometry.FullFrame(),
		{Origin: geometry.Point{X: 0, Y: far}, Size: size, Index: 1},
		{Origin: geometry.Point{X: far, Y: far}, Size: size, Index: 2},
		{Origin: geometry.Point{X: 0, Y: 0}, Size: size, Index: 3},
		{Origin: geometry.Point{X: far, Y: 0}, Size: size, Index: 4},
		{Origin: geometry.Point{X: mid, Y: mid}, Size: size, Index: 5},
	}
}

// DefaultCornerFraction is the per-axis size of the rotating corner tiles.
const DefaultCornerFraction = 0.6

// Rotator cycles through a fixed list of tiles, one per call.
type Rotator struct {
	mu    sync.Mutex
	tiles []geometry.Tile
	index int
}

// NewRotator creates a rotator over the default six-tile cycle.
func NewRotator() *Rotator {
	return NewRotatorWithTiles(RotatingTiles(DefaultCornerFraction))
}

// NewRotatorWithTiles creates a rotator over tiles, which must not be empty.
func NewRotatorWithTiles(tiles []geometry.Tile) *Rotator {
	return &Rotator{tiles: tiles, index: len(tiles) - 1}
}

// Next advances the cursor and returns the tile under it. The first call
// returns the first tile.
func (r *Rotator) Next() geometry.Tile {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = (r.index + 1) % len(r.tiles)
	return r.tiles[r.index]
}

// Reset rewinds the cycle so the next call returns the first tile.
func (r *Rotator) Reset() {
	r.mu.Lock()
	r.index = len(r.tiles) - 1
	r.mu.Unlock()
}

// Len returns the cycle length.
func (r *Rotator) Len() int {
	return len(r.tiles)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
