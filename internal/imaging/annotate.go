package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// Annotation is one box to draw. Box is frame-normalized with a bottom-left
// origin, the same space detections are reported in.
type Annotation struct {
	Label      string
	Box        geometry.Box
	Confidence float64
}

// Annotate draws each box onto a copy of img, colored by label, with the
// confidence as a percentage in the box's top-left corner.
func Annotate(img image.Image, anns []Annotation, thickness int) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	if thickness < 1 {
		thickness = 2
	}

	for _, a := range anns {
		r := a.Box.ToPixelRect(bounds.Dx(), bounds.Dy())
		if r.Empty() {
			continue
		}
		c := LabelColor(a.Label)
		strokeRect(out, r, thickness, c)
		if a.Confidence > 0 {
			label := fmt.Sprintf("%d%%", int(a.Confidence*100+0.5))
			drawLabel(out, r.Min.X+thickness+1, r.Min.Y+thickness+1, label, Contrasting(c), c)
		}
	}
	return out
}

func strokeRect(img *image.RGBA, r image.Rectangle, thickness int, c color.Color) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
	}
}

// drawLabel draws text with a tiny 3x5 pixel font. Only digits and "%" have
// glyphs; other runes leave a gap.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.Color) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		'%': {"101", "001", "010", "100", "101"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	bgRect := image.Rect(x-1, y-1, x+labelWidth, y+labelHeight).Intersect(bounds)
	draw.Draw(img, bgRect, image.NewUniform(bg), image.Point{}, draw.Src)

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel != '1' {
					continue
				}
				p := image.Pt(cx+col, y+row)
				if p.In(bounds) {
					img.Set(p.X, p.Y, fg)
				}
			}
		}
		cx += charWidth
	}
}

// Save writes img to path. The format follows the file extension.
func Save(img image.Image, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
