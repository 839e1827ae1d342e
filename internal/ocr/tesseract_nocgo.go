//go:build !cgo

package ocr

import (
	"context"
	"errors"
	"image"

	"github.com/wyyywsd/FinderEye/internal/detection"
)

// Tesseract is unavailable in builds without cgo.
type Tesseract struct{}

var _ detection.TextDetector = (*Tesseract)(nil)

// New always fails: Tesseract needs cgo.
func New(Options) (*Tesseract, error) {
	return nil, detection.NewDetectorUnavailableError("tesseract", errors.New("built without cgo"))
}

func (t *Tesseract) Recognize(context.Context, image.Image, string) ([]detection.TextLine, error) {
	return nil, detection.ErrDetectorUnavailable
}

func (t *Tesseract) Info() Info {
	return Info{Backend: "none", Error: "built without cgo"}
}
