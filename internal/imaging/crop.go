package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// CropResult is a PNG-encoded image ready to hand to a client.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropTile cuts the region of tile out of img. The returned rectangle is the
// pixel crop relative to img's bounds origin. A tile that maps to no pixels
// is an error.
func CropTile(img image.Image, tile geometry.Tile) (*image.NRGBA, image.Rectangle, error) {
	b := img.Bounds()
	rect := geometry.TileToCropRect(tile, b.Dx(), b.Dy())
	if rect.Empty() {
		return nil, rect, fmt.Errorf("tile %d maps to an empty crop in %dx%d image", tile.Index, b.Dx(), b.Dy())
	}
	cropped := imaging.Crop(img, rect.Add(b.Min))
	return cropped, rect, nil
}

// Scale resizes img by factor. Factors of 1 or less than or equal to zero
// return img unchanged.
func Scale(img image.Image, factor float64) image.Image {
	if factor == 1.0 || factor <= 0 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 || h < 1 {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// EncodePNG encodes img as base64 PNG.
func EncodePNG(img image.Image) (*CropResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
