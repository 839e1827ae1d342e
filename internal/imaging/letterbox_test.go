package imaging

import (
	"image"
	"math"
	"testing"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

func TestPlanLetterbox(t *testing.T) {
	tests := []struct {
		name       string
		source     image.Point
		target     image.Point
		wantScale  float64
		wantPlaced image.Point
		wantPad    geometry.Point
	}{
		{"wide", image.Pt(200, 100), image.Pt(64, 64), 0.32, image.Pt(64, 32), geometry.Point{X: 0, Y: 16}},
		{"tall", image.Pt(100, 400), image.Pt(640, 640), 1.6, image.Pt(160, 640), geometry.Point{X: 240, Y: 0}},
		{"square", image.Pt(1280, 1280), image.Pt(640, 640), 0.5, image.Pt(640, 640), geometry.Point{}},
		{"odd padding", image.Pt(100, 33), image.Pt(100, 100), 1, image.Pt(100, 33), geometry.Point{X: 0, Y: 34}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanLetterbox(tt.source, tt.target)
			if err != nil {
				t.Fatalf("PlanLetterbox failed: %v", err)
			}
			if math.Abs(plan.Scale-tt.wantScale) > 1e-9 {
				t.Errorf("Scale = %v, want %v", plan.Scale, tt.wantScale)
			}
			if plan.Placed != tt.wantPlaced {
				t.Errorf("Placed = %v, want %v", plan.Placed, tt.wantPlaced)
			}
			if plan.PadOffset != tt.wantPad {
				t.Errorf("PadOffset = %+v, want %+v", plan.PadOffset, tt.wantPad)
			}
		})
	}

	if _, err := PlanLetterbox(image.Pt(0, 10), image.Pt(64, 64)); err == nil {
		t.Error("expected error for empty source")
	}
	if _, err := PlanLetterbox(image.Pt(10, 10), image.Pt(0, 64)); err == nil {
		t.Error("expected error for empty target")
	}
}

func TestLetterboxPixels(t *testing.T) {
	src := newSolidImage(200, 100, red)
	out, plan, err := Letterbox(src, image.Pt(64, 64), DefaultPadColor)
	if err != nil {
		t.Fatalf("Letterbox failed: %v", err)
	}
	if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 64 {
		t.Fatalf("output size %v, want 64x64", out.Bounds())
	}
	if plan.Placed != image.Pt(64, 32) {
		t.Fatalf("Placed = %v", plan.Placed)
	}

	tests := []struct {
		name string
		x, y int
		want interface{}
	}{
		{"top padding", 32, 5, DefaultPadColor},
		{"bottom padding", 32, 60, DefaultPadColor},
		{"image center", 32, 32, red},
		{"image top row", 10, 16, red},
		{"image bottom row", 10, 47, red},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nrgbaAt(out, tt.x, tt.y); got != tt.want {
				t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestLetterboxRoundTrip(t *testing.T) {
	sources := []image.Point{
		image.Pt(1920, 1080),
		image.Pt(1080, 1920),
		image.Pt(640, 640),
		image.Pt(333, 77),
	}
	boxes := []geometry.Box{
		{X: 0, Y: 0, W: 1, H: 1},
		{X: 0.1, Y: 0.2, W: 0.3, H: 0.4},
		{X: 0.9, Y: 0.05, W: 0.05, H: 0.9},
	}

	for _, src := range sources {
		plan, err := PlanLetterbox(src, image.Pt(640, 640))
		if err != nil {
			t.Fatalf("PlanLetterbox(%v) failed: %v", src, err)
		}
		for _, b := range boxes {
			det := MapSourceBoxToDetector(b, plan)
			back := MapDetectorBoxToSource(det, plan)
			if !geometry.ApproxEqual(back, b, 1e-9) {
				t.Errorf("source %v: %+v -> %+v -> %+v", src, b, det, back)
			}
		}
	}
}

func TestMapDetectorBoxToSourcePlacedRegion(t *testing.T) {
	tests := []struct {
		name   string
		source image.Point
	}{
		{"tall", image.Pt(100, 400)},
		{"wide strip", image.Pt(3000, 7)},
		{"tall strip", image.Pt(9, 2000)},
		{"rounded", image.Pt(333, 77)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanLetterbox(tt.source, image.Pt(640, 640))
			if err != nil {
				t.Fatal(err)
			}
			placed := geometry.Box{
				X: plan.PadOffset.X / 640,
				Y: plan.PadOffset.Y / 640,
				W: float64(plan.Placed.X) / 640,
				H: float64(plan.Placed.Y) / 640,
			}
			got := MapDetectorBoxToSource(placed, plan)
			if !geometry.ApproxEqual(got, geometry.Box{X: 0, Y: 0, W: 1, H: 1}, 1e-9) {
				t.Errorf("placed region maps to %+v, want the unit box", got)
			}
		})
	}
}
