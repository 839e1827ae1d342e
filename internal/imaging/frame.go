package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Orientation is the EXIF orientation tag (1-8) of a captured frame. It says
// how the stored pixels must be transformed to appear upright.
type Orientation int

const (
	OrientationUnspecified Orientation = 0
	OrientationUp          Orientation = 1
	OrientationUpMirrored  Orientation = 2
	OrientationDown        Orientation = 3
	OrientationDownMirror  Orientation = 4
	OrientationLeftMirror  Orientation = 5
	OrientationRight       Orientation = 6
	OrientationRightMirror Orientation = 7
	OrientationLeft        Orientation = 8
)

// Valid reports whether o is a defined EXIF orientation.
func (o Orientation) Valid() bool {
	return o >= OrientationUp && o <= OrientationLeft
}

// SwapsAxes reports whether applying o exchanges width and height.
func (o Orientation) SwapsAxes() bool {
	return o >= OrientationLeftMirror && o <= OrientationLeft
}

// Orient returns img transformed to upright. Unknown orientations leave the
// image untouched.
func Orient(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationUpMirrored:
		return imaging.FlipH(img)
	case OrientationDown:
		return imaging.Rotate180(img)
	case OrientationDownMirror:
		return imaging.FlipV(img)
	case OrientationLeftMirror:
		return imaging.Transpose(img)
	case OrientationRight:
		return imaging.Rotate270(img)
	case OrientationRightMirror:
		return imaging.Transverse(img)
	case OrientationLeft:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// DecodeFrame decodes an encoded image (PNG, JPEG or GIF) and returns it
// upright. With OrientationUnspecified the EXIF tag embedded in the data, if
// any, is honored instead.
func DecodeFrame(data []byte, o Orientation) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if o == OrientationUnspecified {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return Orient(img, o), nil
}

// FromRGBA wraps a tightly packed, non-premultiplied RGBA buffer of
// width x height pixels and returns it upright. The buffer is copied.
func FromRGBA(pix []byte, width, height int, o Orientation) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if want := width * height * 4; len(pix) != want {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d for %dx%d RGBA", len(pix), want, width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pix)
	return Orient(img, o), nil
}
