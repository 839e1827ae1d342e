package detection

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// Kind distinguishes object detections from recognized text.
type Kind int

const (
	KindObject Kind = iota
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts "object" or "text".
func (k *Kind) UnmarshalText(b []byte) error {
	kind, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseKind maps a name to a Kind. The empty string means KindObject.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "object", "objects":
		return KindObject, nil
	case "text":
		return KindText, nil
	default:
		return KindObject, fmt.Errorf("unknown detection kind %q", s)
	}
}

// Detection is one result in frame-normalized, bottom-left coordinates.
type Detection struct {
	Label      string       `json:"label"`
	Box        geometry.Box `json:"box"`
	Confidence float64      `json:"confidence"`
	Kind       Kind         `json:"kind"`
}

// RawDetection is what an ObjectDetector returns: a box normalized to the
// detector's input raster (bottom-left origin), before any letterbox or tile
// mapping.
type RawDetection struct {
	Label      string
	Box        geometry.Box
	Confidence float64
}

// TextLine is a recognized piece of text whose box is already normalized to
// the image handed to the TextDetector.
type TextLine struct {
	Text       string
	Box        geometry.Box
	Confidence float64
}

// ObjectDetector runs a fixed-input-size model on one image.
//
// The image passed to Detect is already letterboxed to InputSize. Detect may
// be called concurrently from several goroutines.
type ObjectDetector interface {
	Detect(ctx context.Context, img image.Image, minConfidence float64) ([]RawDetection, error)
	InputSize() (width, height int)
}

// TextDetector recognizes text matching keyword in an upright image. Which
// part of a matching line is reported (the whole line or only the matching
// span) is up to the implementation.
type TextDetector interface {
	Recognize(ctx context.Context, img image.Image, keyword string) ([]TextLine, error)
}
