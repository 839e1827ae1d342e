package ocr

import (
	"image"
	"image/color"
	"testing"
)

func TestPreprocessUpscalesSmallFrames(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	got := Preprocess(img, DefaultContrast)
	if h := got.Bounds().Dy(); h != MinTextHeight {
		t.Errorf("height = %d, want %d", h, MinTextHeight)
	}
	if w := got.Bounds().Dx(); w != 960 {
		t.Errorf("width = %d, want 960", w)
	}
}

func TestPreprocessKeepsLargeFrames(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 960))
	got := Preprocess(img, 0)
	if got.Bounds().Size() != image.Pt(1280, 960) {
		t.Errorf("size = %v, want 1280x960", got.Bounds().Size())
	}
}

func TestPreprocessGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 800; x++ {
			img.Set(x, y, color.RGBA{200, 30, 30, 255})
		}
	}
	got := Preprocess(img, DefaultContrast)
	if a, b := got.GrayAt(0, 0), got.GrayAt(799, 799); a != b {
		t.Errorf("uniform input produced uneven gray: %v vs %v", a, b)
	}
}

func TestPreprocessKeepsLuminance(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 800))
	for y := 0; y < 800; y++ {
		for x := 0; x < 400; x++ {
			img.Set(x, y, color.White)
			img.Set(x+400, y, color.Black)
		}
	}
	got := Preprocess(img, 0)
	if g := got.GrayAt(10, 10).Y; g != 255 {
		t.Errorf("white pixel = %d, want 255", g)
	}
	if g := got.GrayAt(790, 10).Y; g != 0 {
		t.Errorf("black pixel = %d, want 0", g)
	}
}
