package pipeline

import (
	"context"
	"image"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
	"github.com/wyyywsd/FinderEye/internal/pacer"
)

// StreamResult is the outcome of one live frame.
type StreamResult struct {
	// Admitted is false when the pacer skipped the frame; Skip says why.
	Admitted bool           `json:"admitted"`
	Skip     pacer.Decision `json:"skip"`

	// Detections is the fused full-frame view after this frame, including
	// still-fresh results from other tiles.
	Detections []detection.Detection `json:"detections"`
	TileIndex  int                   `json:"tile_index"`
	Coverage   int                   `json:"coverage"`
	FrameSize  image.Point           `json:"frame_size"`
	Generation uint64                `json:"generation"`

	// Superseded is set when the query changed or the stream was reset while
	// this frame was being processed. Detections is then empty.
	Superseded bool `json:"superseded"`
	// Canceled is set when the caller's context ended before the frame
	// finished. Nothing from the frame is kept and Detections is empty.
	Canceled bool `json:"canceled"`
}

// OfferStreamFrame runs the admission check on the calling goroutine and,
// if the frame is admitted, processes it in the background and hands the
// result to deliver. Skipped frames are not delivered. The returned decision
// says which happened.
func (p *Pipeline) OfferStreamFrame(ctx context.Context, frame Frame, q Query, deliver func(StreamResult)) pacer.Decision {
	s := p.settings.Settings()
	p.pacer.SetRates(s.ScanningFPS, s.TrackingFPS)
	gen := p.observeQuery(q)

	dec := p.pacer.TryAdmit(p.now())
	if dec != pacer.Admit {
		p.log.Trace().Stringer("decision", dec).Msg("frame skipped")
		return dec
	}

	tile := geometry.FullFrame()
	if q.Kind == detection.KindObject && s.HighAccuracy {
		tile = p.rotator.Next()
	}

	go func() {
		res := p.processStreamFrame(ctx, frame, q, s, tile, gen)
		if deliver != nil {
			deliver(res)
		}
	}()
	return dec
}

// SubmitStreamFrame is the blocking form of OfferStreamFrame. A skipped
// frame returns immediately with Admitted false.
func (p *Pipeline) SubmitStreamFrame(ctx context.Context, frame Frame, q Query) (StreamResult, error) {
	done := make(chan StreamResult, 1)
	dec := p.OfferStreamFrame(ctx, frame, q, func(r StreamResult) { done <- r })
	if dec != pacer.Admit {
		return StreamResult{Skip: dec, FrameSize: frame.Size(), TileIndex: -1}, nil
	}
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return StreamResult{}, ctx.Err()
	}
}

// observeQuery starts a new stream generation when the query changes.
func (p *Pipeline) observeQuery(q Query) uint64 {
	n := q.normalized()
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	if n != p.lastQuery {
		p.lastQuery = n
		p.resetStreamLocked()
	}
	return p.streamGen.Current()
}

func (p *Pipeline) processStreamFrame(ctx context.Context, frame Frame, q Query, s config.Settings, tile geometry.Tile, gen uint64) StreamResult {
	res := StreamResult{
		Admitted:   true,
		Skip:       pacer.Admit,
		TileIndex:  tile.Index,
		FrameSize:  frame.Size(),
		Generation: gen,
	}

	dets := p.filter.Apply(p.detect(ctx, frame.Image, q, tile, s))

	// A detector cut short by cancellation reports nothing, which must not
	// overwrite the tile's last good result.
	if ctx.Err() != nil {
		p.pacer.Abandon()
		res.Canceled = true
		p.log.Debug().Int("tile", tile.Index).Err(ctx.Err()).Msg("stream frame canceled")
		return res
	}

	p.streamMu.Lock()
	if !p.streamGen.IsCurrent(gen) {
		p.streamMu.Unlock()
		p.pacer.Complete(false)
		res.Superseded = true
		p.log.Debug().Uint64("generation", gen).Int("tile", tile.Index).Msg("dropping superseded stream result")
		return res
	}

	now := p.now()
	var fused []detection.Detection
	if q.Kind == detection.KindObject && s.HighAccuracy {
		p.cache.Put(tile.Index, dets, now)
		p.cache.PurgeExpired(now, p.cache.TTL())
		fused = p.fuser.Fuse(p.cache.AllCurrent(now))
		res.Coverage = p.cache.Coverage(now)
	} else {
		p.cache.Reset()
		fused = p.fuse(q.Kind, dets)
		res.Coverage = 1
	}
	p.streamMu.Unlock()

	p.pacer.Complete(len(fused) > 0)
	res.Detections = fused

	p.log.Trace().
		Int("tile", tile.Index).
		Int("raw", len(dets)).
		Int("fused", len(fused)).
		Msg("stream frame processed")
	return res
}
