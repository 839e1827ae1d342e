package ocr

import (
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
)

// MinTextHeight is the image height below which frames are upscaled before
// recognition. Tesseract reads small glyphs poorly.
const MinTextHeight = 720

// Preprocess prepares a frame for recognition: small frames are upscaled,
// contrast is raised and the result is converted to grayscale. Boxes
// normalized against the returned image are valid for the original.
func Preprocess(img image.Image, contrast float64) *image.Gray {
	b := img.Bounds()
	if h := b.Dy(); h > 0 && h < MinTextHeight {
		factor := float64(MinTextHeight) / float64(h)
		w := int(float64(b.Dx())*factor + 0.5)
		img = transform.Resize(img, w, MinTextHeight, transform.Linear)
	}
	if contrast != 0 {
		img = adjust.Contrast(img, contrast)
	}
	rgba := effect.Grayscale(img)
	gray := image.NewGray(rgba.Bounds())
	draw.Draw(gray, gray.Bounds(), rgba, rgba.Bounds().Min, draw.Src)
	return gray
}
