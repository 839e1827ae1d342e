package imaging

import (
	"fmt"
	"hash/fnv"
	"image/color"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultPadColor is the neutral gray YOLO-family models are trained with.
var DefaultPadColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// ParseColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	alpha := uint8(255)
	switch len(hex) {
	case 7:
	case 9:
		var a uint8
		if _, err := fmt.Sscanf(hex[7:], "%02x", &a); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", hex, err)
		}
		alpha = a
		hex = hex[:7]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length in %q", hex)
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// LabelColor returns a stable, saturated color for a label, so the same
// label is drawn the same way across frames.
func LabelColor(label string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(label))
	hue := float64(h.Sum32() % 360)
	r, g, b := colorful.Hsv(hue, 0.85, 0.95).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Contrasting returns black or white, whichever reads better on c.
func Contrasting(c color.Color) color.NRGBA {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return color.NRGBA{A: 255}
	}
	_, _, l := cf.Hcl()
	if l > 0.6 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
}
