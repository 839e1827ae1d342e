//go:build cgo

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/logging"
)

// Tesseract is a detection.TextDetector backed by libtesseract.
type Tesseract struct {
	opts    Options
	version string
}

var _ detection.TextDetector = (*Tesseract)(nil)

// New checks that Tesseract can be initialized with opts.
func New(opts Options) (*Tesseract, error) {
	if len(opts.Languages) == 0 {
		opts.Languages = []string{"eng"}
	}
	client, err := newClient(opts)
	if err != nil {
		return nil, detection.NewDetectorUnavailableError("tesseract", err)
	}
	defer client.Close()

	t := &Tesseract{opts: opts, version: client.Version()}
	logging.Component("ocr").Info().
		Str("version", t.version).
		Strs("languages", opts.Languages).
		Str("match_mode", opts.MatchMode).
		Msg("tesseract ready")
	return t, nil
}

func newClient(opts Options) (*gosseract.Client, error) {
	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(opts.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return client, nil
}

// Recognize finds lines containing keyword. gosseract clients are not safe
// for concurrent use, so every call gets its own.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, keyword string) ([]detection.TextLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepared := Preprocess(img, t.opts.Contrast)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client, err := newClient(t.opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	lineBoxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get text lines: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(lineBoxes))
	for _, b := range lineBoxes {
		lines = append(lines, Line{Text: b.Word, Rect: b.Box, Confidence: float64(b.Confidence) / 100.0})
	}

	// Word boxes only narrow span matches; their failure is not fatal.
	if words, err := client.GetBoundingBoxes(gosseract.RIL_WORD); err == nil {
		ws := make([]Word, 0, len(words))
		for _, w := range words {
			ws = append(ws, Word{Text: w.Word, Rect: w.Box, Confidence: float64(w.Confidence) / 100.0})
		}
		lines = GroupWords(lines, ws)
	}

	return MatchLines(lines, keyword, t.opts.MatchMode, prepared.Bounds().Size()), nil
}

// Info reports the backend version.
func (t *Tesseract) Info() Info {
	return Info{
		Available: true,
		Version:   t.version,
		Backend:   "gosseract",
		Languages: t.opts.Languages,
	}
}
