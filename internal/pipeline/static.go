package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
	"github.com/wyyywsd/FinderEye/internal/roi"
)

// SubmitStaticImage detects q in a still photo. Requests are debounced: the
// call waits for the quiet period and returns an error matching
// detection.ErrSuperseded if a newer request arrived in the meantime, or
// while it was running. Large photos with high accuracy enabled are split
// into the static grid and the tiles run concurrently.
func (p *Pipeline) SubmitStaticImage(ctx context.Context, frame Frame, q Query) ([]detection.Detection, error) {
	if frame.Image == nil {
		return nil, detection.NewInvalidFrameError("frame has no image")
	}

	ctx, token, release := p.debouncer.Begin(ctx)
	defer release()

	if err := p.debouncer.Wait(ctx, token); err != nil {
		return nil, err
	}

	if q.Empty() {
		return nil, nil
	}

	s := p.settings.Settings()
	start := time.Now()

	var tiles []geometry.Tile
	if q.Kind == detection.KindObject && s.HighAccuracy {
		size := frame.Size()
		tiles = roi.StaticGrid(size.X, size.Y, p.grid)
	} else {
		tiles = []geometry.Tile{geometry.FullFrame()}
	}

	results := make([][]detection.Detection, len(tiles))
	var wg sync.WaitGroup
	for i, tile := range tiles {
		wg.Add(1)
		go func(i int, tile geometry.Tile) {
			defer wg.Done()
			results[i] = p.filter.Apply(p.detect(ctx, frame.Image, q, tile, s))
		}(i, tile)
	}
	wg.Wait()

	if !p.debouncer.IsCurrent(token) {
		p.log.Debug().Uint64("token", token).Msg("dropping superseded static result")
		return nil, detection.NewSupersededError(token)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []detection.Detection
	for _, r := range results {
		all = append(all, r...)
	}
	fused := p.fuse(q.Kind, all)

	p.log.Debug().
		Str("keyword", q.Keyword).
		Stringer("kind", q.Kind).
		Int("tiles", len(tiles)).
		Int("raw", len(all)).
		Int("fused", len(fused)).
		Dur("elapsed", time.Since(start)).
		Msg("static image processed")
	return fused, nil
}
