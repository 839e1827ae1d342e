package pipeline

import (
	"image"
	"strings"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/imaging"
)

// Frame is an upright image handed to the pipeline.
type Frame struct {
	Image image.Image
}

// NewFrame wraps an already upright image.
func NewFrame(img image.Image) (Frame, error) {
	if img == nil || img.Bounds().Empty() {
		return Frame{}, detection.NewInvalidFrameError("frame has no pixels")
	}
	return Frame{Image: img}, nil
}

// FrameFromRGBA builds a frame from a raw RGBA buffer plus its dimensions
// and EXIF orientation, the way a camera delivers it.
func FrameFromRGBA(pix []byte, width, height int, o imaging.Orientation) (Frame, error) {
	img, err := imaging.FromRGBA(pix, width, height, o)
	if err != nil {
		return Frame{}, &detection.Error{Code: detection.CodeInvalidFrame, Message: "bad pixel buffer", Region: -1, Cause: err}
	}
	return Frame{Image: img}, nil
}

// FrameFromEncoded decodes PNG, JPEG or GIF data into a frame.
func FrameFromEncoded(data []byte, o imaging.Orientation) (Frame, error) {
	img, err := imaging.DecodeFrame(data, o)
	if err != nil {
		return Frame{}, &detection.Error{Code: detection.CodeInvalidFrame, Message: "undecodable image", Region: -1, Cause: err}
	}
	return Frame{Image: img}, nil
}

// Size returns the frame's pixel dimensions.
func (f Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	b := f.Image.Bounds()
	return image.Pt(b.Dx(), b.Dy())
}

// Query is what the user is looking for.
type Query struct {
	Keyword string         `json:"keyword"`
	Kind    detection.Kind `json:"kind"`
}

func (q Query) normalized() Query {
	return Query{Keyword: strings.ToLower(strings.TrimSpace(q.Keyword)), Kind: q.Kind}
}

// Empty reports whether the query has no keyword.
func (q Query) Empty() bool {
	return strings.TrimSpace(q.Keyword) == ""
}
