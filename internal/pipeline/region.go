package pipeline

import (
	"context"
	"image"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
	"github.com/wyyywsd/FinderEye/internal/imaging"
)

// detectRegion runs the object detector on one tile of img and returns
// matching detections in frame coordinates. Every failure yields nil.
func (p *Pipeline) detectRegion(ctx context.Context, img image.Image, tile geometry.Tile, keyword string, s config.Settings) []detection.Detection {
	if p.objects == nil {
		p.log.Debug().Int("tile", tile.Index).Err(detection.NewDetectorUnavailableError("object", nil)).Msg("skipping region")
		return nil
	}

	if err := p.pool.Acquire(ctx); err != nil {
		p.log.Debug().Int("tile", tile.Index).Err(err).Msg("no worker for region")
		return nil
	}
	defer p.pool.Release()

	crop, rect, err := imaging.CropTile(img, tile)
	if err != nil {
		p.log.Debug().Int("tile", tile.Index).Err(detection.NewEmptyRegionError(tile.Index)).Msg("skipping region")
		return nil
	}

	// Map through the crop actually taken, not the nominal tile, so pixel
	// rounding does not shift boxes.
	b := img.Bounds()
	cropBox := geometry.MapCropRegionToNormalized(rect, image.Pt(b.Dx(), b.Dy()))
	effective := geometry.Tile{
		Origin: geometry.Point{X: cropBox.X, Y: cropBox.Y},
		Size:   geometry.Size{W: cropBox.W, H: cropBox.H},
		Index:  tile.Index,
	}

	w, h := p.objects.InputSize()
	boxed, plan, err := imaging.Letterbox(crop, image.Pt(w, h), p.pad)
	if err != nil {
		p.log.Warn().Int("tile", tile.Index).Err(err).Msg("letterbox failed")
		return nil
	}

	raw, err := p.objects.Detect(ctx, boxed, s.ConfidenceThreshold)
	if err != nil {
		p.log.Warn().Err(detection.NewDetectorFailedError(tile.Index, err)).Msg("object detector failed")
		return nil
	}

	out := make([]detection.Detection, 0, len(raw))
	for _, r := range raw {
		local := imaging.MapDetectorBoxToSource(r.Box, plan)
		out = append(out, detection.Detection{
			Label:      r.Label,
			Box:        geometry.MapTileBoxToGlobal(local, effective),
			Confidence: r.Confidence,
			Kind:       detection.KindObject,
		})
	}
	return detection.FilterByQuery(out, s.ConfidenceThreshold, keyword, p.matcher)
}

// detectText runs the text detector on the whole image. Text is never
// sliced: splitting a line across tiles breaks recognition.
func (p *Pipeline) detectText(ctx context.Context, img image.Image, keyword string, s config.Settings) []detection.Detection {
	if p.text == nil {
		p.log.Debug().Err(detection.NewDetectorUnavailableError("text", nil)).Msg("skipping text query")
		return nil
	}

	if err := p.pool.Acquire(ctx); err != nil {
		p.log.Debug().Err(err).Msg("no worker for text query")
		return nil
	}
	defer p.pool.Release()

	lines, err := p.text.Recognize(ctx, img, keyword)
	if err != nil {
		p.log.Warn().Err(detection.NewDetectorFailedError(geometry.FullFrameIndex, err)).Msg("text detector failed")
		return nil
	}

	out := make([]detection.Detection, 0, len(lines))
	for _, l := range lines {
		if l.Confidence < s.ConfidenceThreshold || l.Box.Empty() {
			continue
		}
		out = append(out, detection.Detection{
			Label:      l.Text,
			Box:        l.Box,
			Confidence: l.Confidence,
			Kind:       detection.KindText,
		})
	}
	return out
}

// detect runs q against one tile, or the whole image for text.
func (p *Pipeline) detect(ctx context.Context, img image.Image, q Query, tile geometry.Tile, s config.Settings) []detection.Detection {
	if q.Empty() {
		return nil
	}
	if q.Kind == detection.KindText {
		return p.detectText(ctx, img, q.Keyword, s)
	}
	return p.detectRegion(ctx, img, tile, q.Keyword, s)
}

// fuse deduplicates object detections. Text lines come from one whole-frame
// recognition pass and are passed through untouched: stacked lines would
// otherwise merge into one box.
func (p *Pipeline) fuse(kind detection.Kind, dets []detection.Detection) []detection.Detection {
	if kind == detection.KindText {
		return dets
	}
	return p.fuser.Fuse(dets)
}
