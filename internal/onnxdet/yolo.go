// Package onnxdet runs YOLOv8-style object detection models through ONNX
// Runtime.
//
// The model takes a 1x3xSxS float tensor in [0, 1] and produces a
// 1x(4+C)xN tensor: per anchor, the box center and size in input pixels
// followed by C class scores. Decoding and tensor preparation are plain Go;
// only the session itself needs cgo and the onnxruntime shared library.
package onnxdet

import (
	"fmt"
	"image"
	"sort"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// DefaultIOU is the per-class suppression threshold applied to raw model
// output before boxes leave the detector.
const DefaultIOU = 0.45

// AnchorCount is the number of predictions a YOLOv8 head emits for a square
// input of the given size (strides 8, 16 and 32).
func AnchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := size / stride
		n += g * g
	}
	return n
}

// FillTensor writes img into dst in CHW order, scaled to [0, 1]. dst must
// hold 3*w*h values for the image's w x h bounds.
func FillTensor(dst []float32, img image.Image) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	if len(dst) < 3*plane {
		return fmt.Errorf("tensor holds %d values, need %d", len(dst), 3*plane)
	}

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			row := n.Pix[y*n.Stride:]
			for x := 0; x < w; x++ {
				i := y*w + x
				p := row[x*4 : x*4+3]
				dst[i] = float32(p[0]) / 255.0
				dst[plane+i] = float32(p[1]) / 255.0
				dst[2*plane+i] = float32(p[2]) / 255.0
			}
		}
		return nil
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[i] = float32(r>>8) / 255.0
			dst[plane+i] = float32(g>>8) / 255.0
			dst[2*plane+i] = float32(bl>>8) / 255.0
		}
	}
	return nil
}

// Decoder turns raw model output into detections.
type Decoder struct {
	Labels []string
	Width  int
	Height int
	IOU    float64
}

// Decode reads a 1x(4+C)xN output. Boxes come back normalized to the model
// input with a bottom-left origin; candidates under minConfidence are dropped
// and overlapping boxes of the same class are suppressed.
func (d Decoder) Decode(output []float32, minConfidence float64) ([]detection.RawDetection, error) {
	classes := len(d.Labels)
	if classes == 0 {
		return nil, fmt.Errorf("decoder has no labels")
	}
	rows := 4 + classes
	if len(output)%rows != 0 {
		return nil, fmt.Errorf("output length %d is not a multiple of %d", len(output), rows)
	}
	n := len(output) / rows
	fw, fh := float64(d.Width), float64(d.Height)

	var cands []detection.RawDetection
	for i := 0; i < n; i++ {
		best, score := 0, float32(0)
		for c := 0; c < classes; c++ {
			if s := output[(4+c)*n+i]; s > score {
				best, score = c, s
			}
		}
		if float64(score) < minConfidence || score <= 0 {
			continue
		}

		cx := float64(output[i])
		cy := float64(output[n+i])
		w := float64(output[2*n+i])
		h := float64(output[3*n+i])

		box := geometry.Box{
			X: (cx - w/2) / fw,
			Y: 1 - (cy+h/2)/fh,
			W: w / fw,
			H: h / fh,
		}.Clamp()
		if box.Empty() {
			continue
		}
		cands = append(cands, detection.RawDetection{
			Label:      d.Labels[best],
			Box:        box,
			Confidence: float64(score),
		})
	}
	return suppressByClass(cands, d.IOU), nil
}

func suppressByClass(cands []detection.RawDetection, iou float64) []detection.RawDetection {
	if iou <= 0 {
		iou = DefaultIOU
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})

	dropped := make([]bool, len(cands))
	var out []detection.RawDetection
	for i := range cands {
		if dropped[i] {
			continue
		}
		out = append(out, cands[i])
		for j := i + 1; j < len(cands); j++ {
			if !dropped[j] && cands[j].Label == cands[i].Label && geometry.IOU(cands[i].Box, cands[j].Box) > iou {
				dropped[j] = true
			}
		}
	}
	return out
}
