//go:build !cgo

package onnxdet

import (
	"context"
	"errors"
	"image"

	"github.com/wyyywsd/FinderEye/internal/detection"
)

// Detector is unavailable in builds without cgo.
type Detector struct{}

var _ detection.ObjectDetector = (*Detector)(nil)

// New always fails: ONNX Runtime needs cgo.
func New(Options) (*Detector, error) {
	return nil, detection.NewDetectorUnavailableError("onnx", errors.New("built without cgo"))
}

func (d *Detector) InputSize() (int, int) { return 0, 0 }

func (d *Detector) Detect(context.Context, image.Image, float64) ([]detection.RawDetection, error) {
	return nil, detection.ErrDetectorUnavailable
}

func (d *Detector) Close() {}
