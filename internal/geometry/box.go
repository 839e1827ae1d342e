package geometry

import (
	"image"
	"math"
)

// Point is a 2D position in whatever space the caller is working in.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a 2D extent.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Box is an axis-aligned rectangle with a bottom-left origin. In normalized
// space its fields are nominally in [0,1].
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// MaxX returns the right edge.
func (b Box) MaxX() float64 { return b.X + b.W }

// MaxY returns the top edge.
func (b Box) MaxY() float64 { return b.Y + b.H }

// Center returns the box midpoint.
func (b Box) Center() Point { return Point{X: b.X + b.W/2, Y: b.Y + b.H/2} }

// Area returns W*H, or 0 for degenerate boxes.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Intersect returns the overlapping region of a and b. The result is the
// zero Box when they do not overlap.
func (b Box) Intersect(o Box) Box {
	x1 := math.Max(b.X, o.X)
	y1 := math.Max(b.Y, o.Y)
	x2 := math.Min(b.MaxX(), o.MaxX())
	y2 := math.Min(b.MaxY(), o.MaxY())
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Intersects reports whether the two boxes share positive area.
func (b Box) Intersects(o Box) bool {
	return !b.Intersect(o).Empty()
}

// Union returns the smallest box containing both.
func (b Box) Union(o Box) Box {
	x1 := math.Min(b.X, o.X)
	y1 := math.Min(b.Y, o.Y)
	x2 := math.Max(b.MaxX(), o.MaxX())
	y2 := math.Max(b.MaxY(), o.MaxY())
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Clamp restricts the box to the unit square.
func (b Box) Clamp() Box {
	x1 := clamp01(b.X)
	y1 := clamp01(b.Y)
	x2 := clamp01(b.MaxX())
	y2 := clamp01(b.MaxY())
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// IOU returns intersection over union, 0 when the boxes are disjoint.
func IOU(a, b Box) float64 {
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// ApproxEqual compares two boxes field by field within eps.
func ApproxEqual(a, b Box, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps &&
		math.Abs(a.Y-b.Y) <= eps &&
		math.Abs(a.W-b.W) <= eps &&
		math.Abs(a.H-b.H) <= eps
}

// ToPixelRect converts a normalized box to a top-left-origin pixel rectangle
// inside a width x height frame. Edges are rounded outward and clipped.
func (b Box) ToPixelRect(width, height int) image.Rectangle {
	c := b.Clamp()
	fw, fh := float64(width), float64(height)
	x1 := int(math.Floor(c.X * fw))
	x2 := int(math.Ceil(c.MaxX() * fw))
	y1 := int(math.Floor((1 - c.MaxY()) * fh))
	y2 := int(math.Ceil((1 - c.Y) * fh))
	return image.Rect(x1, y1, x2, y2).Intersect(image.Rect(0, 0, width, height))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
