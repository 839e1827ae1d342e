package geometry

import (
	"image"
	"math"
)

// FullFrameIndex is the tile index reserved for the whole frame.
const FullFrameIndex = 0

// Tile is a rectangular sub-region of a frame in normalized, bottom-left
// coordinates. Index 0 always denotes the full frame.
type Tile struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
	Index  int   `json:"index"`
}

// FullFrame returns the identity tile.
func FullFrame() Tile {
	return Tile{Origin: Point{0, 0}, Size: Size{1, 1}, Index: FullFrameIndex}
}

// Box returns the tile's region as a Box.
func (t Tile) Box() Box {
	return Box{X: t.Origin.X, Y: t.Origin.Y, W: t.Size.W, H: t.Size.H}
}

// IsFullFrame reports whether t covers the whole frame.
func (t Tile) IsFullFrame() bool {
	return t.Index == FullFrameIndex
}

// MapTileBoxToGlobal lifts a box normalized to tile into frame-normalized
// coordinates. For the full-frame tile it is the identity.
func MapTileBoxToGlobal(b Box, tile Tile) Box {
	return Box{
		X: tile.Origin.X + b.X*tile.Size.W,
		Y: tile.Origin.Y + b.Y*tile.Size.H,
		W: b.W * tile.Size.W,
		H: b.H * tile.Size.H,
	}
}

// MapCropRegionToNormalized converts a top-left-origin pixel crop rectangle
// of a full raster into a bottom-left-origin normalized Box.
func MapCropRegionToNormalized(crop image.Rectangle, full image.Point) Box {
	if full.X <= 0 || full.Y <= 0 {
		return Box{}
	}
	fw, fh := float64(full.X), float64(full.Y)
	cw, ch := float64(crop.Dx()), float64(crop.Dy())
	return Box{
		X: float64(crop.Min.X) / fw,
		Y: 1 - float64(crop.Min.Y)/fh - ch/fh,
		W: cw / fw,
		H: ch / fh,
	}
}

// TileToCropRect returns the pixel rectangle of tile inside a width x height
// raster. It is the inverse of MapCropRegionToNormalized up to rounding.
func TileToCropRect(tile Tile, width, height int) image.Rectangle {
	fw, fh := float64(width), float64(height)
	x1 := int(math.Round(tile.Origin.X * fw))
	x2 := int(math.Round((tile.Origin.X + tile.Size.W) * fw))
	y1 := int(math.Round((1 - tile.Origin.Y - tile.Size.H) * fh))
	y2 := int(math.Round((1 - tile.Origin.Y) * fh))
	return image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, width, height))
}
