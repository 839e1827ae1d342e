package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// LetterboxPlan records how a source raster was fitted into a detector
// input. It is created right before a detector call and discarded once the
// detector's boxes have been mapped back.
type LetterboxPlan struct {
	// Scale is min(target/source) over both axes.
	Scale float64
	// PadOffset is the padding, in target pixels, between the target's
	// bottom-left corner and the placed image.
	PadOffset geometry.Point
	// Placed is the scaled image size in target pixels.
	Placed     image.Point
	SourceSize image.Point
	TargetSize image.Point
}

// PlanLetterbox computes the fit of a source raster into a target raster
// without touching pixels.
func PlanLetterbox(source, target image.Point) (LetterboxPlan, error) {
	if source.X <= 0 || source.Y <= 0 {
		return LetterboxPlan{}, fmt.Errorf("invalid source size %dx%d", source.X, source.Y)
	}
	if target.X <= 0 || target.Y <= 0 {
		return LetterboxPlan{}, fmt.Errorf("invalid target size %dx%d", target.X, target.Y)
	}

	scale := math.Min(float64(target.X)/float64(source.X), float64(target.Y)/float64(source.Y))
	pw := clampInt(int(math.Round(float64(source.X)*scale)), 1, target.X)
	ph := clampInt(int(math.Round(float64(source.Y)*scale)), 1, target.Y)

	left := (target.X - pw) / 2
	top := (target.Y - ph) / 2
	bottom := target.Y - ph - top

	return LetterboxPlan{
		Scale:      scale,
		PadOffset:  geometry.Point{X: float64(left), Y: float64(bottom)},
		Placed:     image.Pt(pw, ph),
		SourceSize: source,
		TargetSize: target,
	}, nil
}

// Letterbox scales img to fit target while preserving aspect ratio, centers
// it, and fills the rest with pad. The result is exactly target-sized.
func Letterbox(img image.Image, target image.Point, pad color.Color) (*image.NRGBA, LetterboxPlan, error) {
	b := img.Bounds()
	plan, err := PlanLetterbox(image.Pt(b.Dx(), b.Dy()), target)
	if err != nil {
		return nil, LetterboxPlan{}, err
	}

	canvas := imaging.New(target.X, target.Y, pad)
	scaled := imaging.Resize(img, plan.Placed.X, plan.Placed.Y, imaging.Linear)
	top := target.Y - plan.Placed.Y - int(plan.PadOffset.Y)
	canvas = imaging.Paste(canvas, scaled, image.Pt(int(plan.PadOffset.X), top))
	return canvas, plan, nil
}

// MapDetectorBoxToSource converts a box normalized to the detector input
// into a box normalized to the source raster the plan was built from. Each
// axis maps through the rounded placed size, which is what the pixels were
// actually resized to.
func MapDetectorBoxToSource(b geometry.Box, plan LetterboxPlan) geometry.Box {
	tw, th := float64(plan.TargetSize.X), float64(plan.TargetSize.Y)
	pw, ph := float64(plan.Placed.X), float64(plan.Placed.Y)
	return geometry.Box{
		X: (b.X*tw - plan.PadOffset.X) / pw,
		Y: (b.Y*th - plan.PadOffset.Y) / ph,
		W: b.W * tw / pw,
		H: b.H * th / ph,
	}
}

// MapSourceBoxToDetector is the inverse of MapDetectorBoxToSource.
func MapSourceBoxToDetector(b geometry.Box, plan LetterboxPlan) geometry.Box {
	tw, th := float64(plan.TargetSize.X), float64(plan.TargetSize.Y)
	pw, ph := float64(plan.Placed.X), float64(plan.Placed.Y)
	return geometry.Box{
		X: (b.X*pw + plan.PadOffset.X) / tw,
		Y: (b.Y*ph + plan.PadOffset.Y) / th,
		W: b.W * pw / tw,
		H: b.H * ph / th,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
