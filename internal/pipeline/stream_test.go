package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/pacer"
)

var cupQuery = Query{Keyword: "cup", Kind: detection.KindObject}

func TestStreamSingleFlight(t *testing.T) {
	obj := &fakeObjects{size: 64, gate: make(chan struct{}), started: make(chan struct{}, 16)}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{Objects: obj, Clock: clock.Now})
	frame := testFrame(t, 200, 100)
	ctx := context.Background()

	results := make(chan StreamResult, 1)
	if dec := p.OfferStreamFrame(ctx, frame, cupQuery, func(r StreamResult) { results <- r }); dec != pacer.Admit {
		t.Fatalf("first frame: got %v, want admit", dec)
	}
	waitStarted(t, obj.started)

	for i := 0; i < 10; i++ {
		clock.Advance(10 * time.Millisecond)
		if dec := p.OfferStreamFrame(ctx, frame, cupQuery, nil); dec != pacer.SkipInflight {
			t.Fatalf("frame %d while in flight: got %v, want %v", i, dec, pacer.SkipInflight)
		}
	}

	close(obj.gate)
	res := waitResult(t, results)
	if !res.Admitted {
		t.Error("expected delivered result to be admitted")
	}
	if got := obj.Calls(); got != 1 {
		t.Errorf("detector calls = %d, want 1", got)
	}

	clock.Advance(10 * time.Millisecond)
	if _, err := p.SubmitStreamFrame(ctx, frame, cupQuery); err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if got := obj.Calls(); got != 2 {
		t.Errorf("detector calls after completion = %d, want 2", got)
	}
}

func TestStreamFPSGating(t *testing.T) {
	obj := &fakeObjects{size: 64}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Settings: config.NewStore(testSettings(false, 5, 30)),
		Clock:    clock.Now,
	})
	frame := testFrame(t, 200, 100)
	ctx := context.Background()

	first, err := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if !first.Admitted {
		t.Fatalf("first frame not admitted: %v", first.Skip)
	}

	clock.Advance(100 * time.Millisecond)
	second, err := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if second.Admitted || second.Skip != pacer.SkipTooSoon {
		t.Errorf("second frame: admitted=%v skip=%v, want skip %v", second.Admitted, second.Skip, pacer.SkipTooSoon)
	}
	if second.TileIndex != -1 {
		t.Errorf("skipped frame tile = %d, want -1", second.TileIndex)
	}
	if got := obj.Calls(); got != 1 {
		t.Errorf("detector calls = %d, want 1", got)
	}

	clock.Advance(150 * time.Millisecond)
	third, _ := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if !third.Admitted {
		t.Errorf("frame after the scanning interval was skipped: %v", third.Skip)
	}
}

func TestStreamTrackingRateAfterResults(t *testing.T) {
	obj := &fakeObjects{
		size: 64,
		respond: func(int, image.Image) ([]detection.RawDetection, error) {
			return []detection.RawDetection{raw("cup", geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, 0.9)}, nil
		},
	}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Settings: config.NewStore(testSettings(false, 5, 30)),
		Clock:    clock.Now,
	})
	frame := testFrame(t, 100, 100)
	ctx := context.Background()

	res, _ := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(res.Detections))
	}

	clock.Advance(50 * time.Millisecond)
	res, _ = p.SubmitStreamFrame(ctx, frame, cupQuery)
	if !res.Admitted {
		t.Errorf("tracking-rate frame 50ms later was skipped: %v", res.Skip)
	}
}

func TestStreamMapsDetectorBoxesToFrame(t *testing.T) {
	want := geometry.Box{X: 0.5, Y: 0.25, W: 0.25, H: 0.5}
	plan, err := imaging.PlanLetterbox(image.Pt(200, 100), image.Pt(64, 64))
	if err != nil {
		t.Fatalf("PlanLetterbox failed: %v", err)
	}
	detectorBox := imaging.MapSourceBoxToDetector(want, plan)

	obj := &fakeObjects{
		size: 64,
		respond: func(_ int, img image.Image) ([]detection.RawDetection, error) {
			if got := img.Bounds().Size(); got != image.Pt(64, 64) {
				t.Errorf("detector input = %v, want 64x64", got)
			}
			return []detection.RawDetection{
				raw("Coffee Cup", detectorBox, 0.9),
				raw("cup", geometry.Box{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}, 0.2),
				raw("bottle", geometry.Box{X: 0.1, Y: 0.6, W: 0.1, H: 0.1}, 0.95),
			}, nil
		},
	}
	p := newTestPipeline(t, Options{Objects: obj, Clock: newFakeClock().Now})

	res, err := p.SubmitStreamFrame(context.Background(), testFrame(t, 200, 100), cupQuery)
	if err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if res.TileIndex != geometry.FullFrameIndex {
		t.Errorf("tile = %d, want full frame", res.TileIndex)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1: %+v", len(res.Detections), res.Detections)
	}
	d := res.Detections[0]
	if d.Label != "Coffee Cup" || d.Kind != detection.KindObject {
		t.Errorf("unexpected detection %+v", d)
	}
	if !geometry.ApproxEqual(d.Box, want, 1e-6) {
		t.Errorf("box = %+v, want %+v", d.Box, want)
	}
}

func TestStreamRotatesTilesAndAccumulates(t *testing.T) {
	local := geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}
	// Every tile of a square frame is square, so the letterbox adds no
	// padding and tile-local boxes pass through the detector unchanged.
	obj := &fakeObjects{
		size: 64,
		respond: func(int, image.Image) ([]detection.RawDetection, error) {
			return []detection.RawDetection{raw("cup", local, 0.9)}, nil
		},
	}

	clock := newFakeClock()
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Settings: config.NewStore(testSettings(true, 1000, 1000)),
		Clock:    clock.Now,
	})
	frame := testFrame(t, 1000, 1000)
	ctx := context.Background()

	var last StreamResult
	for i := 0; i < 6; i++ {
		res, err := p.SubmitStreamFrame(ctx, frame, cupQuery)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if res.TileIndex != i {
			t.Errorf("frame %d: tile = %d, want %d", i, res.TileIndex, i)
		}
		if res.Coverage != i+1 {
			t.Errorf("frame %d: coverage = %d, want %d", i, res.Coverage, i+1)
		}
		last = res
		clock.Advance(10 * time.Millisecond)
	}

	// The center tile's box lands inside the full frame's box and merges
	// with it; the four corner boxes stay apart.
	if len(last.Detections) != 5 {
		t.Errorf("after a full cycle got %d detections, want 5: %+v", len(last.Detections), last.Detections)
	}

	clock.Advance(600 * time.Millisecond)
	res, _ := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if res.TileIndex != 0 {
		t.Errorf("cycle did not wrap: tile = %d", res.TileIndex)
	}
	if res.Coverage != 1 || len(res.Detections) != 1 {
		t.Errorf("stale tiles survived: coverage=%d detections=%d", res.Coverage, len(res.Detections))
	}
}

func TestStreamHighAccuracyOffUsesFullFrame(t *testing.T) {
	obj := &fakeObjects{size: 64}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{Objects: obj, Clock: clock.Now})
	frame := testFrame(t, 1200, 900)

	for i := 0; i < 3; i++ {
		res, _ := p.SubmitStreamFrame(context.Background(), frame, cupQuery)
		if res.TileIndex != geometry.FullFrameIndex {
			t.Errorf("frame %d: tile = %d, want full frame", i, res.TileIndex)
		}
		clock.Advance(10 * time.Millisecond)
	}
}

func TestStreamDetectorErrorYieldsEmptyResult(t *testing.T) {
	obj := &fakeObjects{
		size: 64,
		respond: func(call int, _ image.Image) ([]detection.RawDetection, error) {
			if call == 1 {
				return nil, errors.New("inference exploded")
			}
			return []detection.RawDetection{raw("cup", geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, 0.9)}, nil
		},
	}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{Objects: obj, Clock: clock.Now})
	frame := testFrame(t, 100, 100)
	ctx := context.Background()

	res, err := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if err != nil {
		t.Fatalf("detector failure surfaced as error: %v", err)
	}
	if !res.Admitted || len(res.Detections) != 0 {
		t.Errorf("got admitted=%v detections=%d, want admitted and empty", res.Admitted, len(res.Detections))
	}

	clock.Advance(time.Second)
	res, _ = p.SubmitStreamFrame(ctx, frame, cupQuery)
	if len(res.Detections) != 1 {
		t.Errorf("next frame got %d detections, want 1", len(res.Detections))
	}
}

func TestStreamSuspended(t *testing.T) {
	obj := &fakeObjects{size: 64}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{Objects: obj, Clock: clock.Now})
	frame := testFrame(t, 100, 100)
	ctx := context.Background()

	p.SetSuspended(true)
	res, _ := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if res.Admitted || res.Skip != pacer.SkipSuspended {
		t.Errorf("suspended frame: admitted=%v skip=%v", res.Admitted, res.Skip)
	}

	p.SetZooming(true)
	p.SetSuspended(false)
	res, _ = p.SubmitStreamFrame(ctx, frame, cupQuery)
	if res.Skip != pacer.SkipSuspended {
		t.Errorf("zooming frame: skip=%v, want suspended", res.Skip)
	}

	p.SetZooming(false)
	res, _ = p.SubmitStreamFrame(ctx, frame, cupQuery)
	if !res.Admitted {
		t.Errorf("resumed frame skipped: %v", res.Skip)
	}
	if got := obj.Calls(); got != 1 {
		t.Errorf("detector calls = %d, want 1", got)
	}
}

func TestStreamResetDiscardsInflightResult(t *testing.T) {
	obj := &fakeObjects{
		size:    64,
		gate:    make(chan struct{}),
		started: make(chan struct{}, 4),
		respond: func(int, image.Image) ([]detection.RawDetection, error) {
			return []detection.RawDetection{raw("cup", geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, 0.9)}, nil
		},
	}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{Objects: obj, Clock: clock.Now})
	frame := testFrame(t, 100, 100)
	ctx := context.Background()

	results := make(chan StreamResult, 1)
	p.OfferStreamFrame(ctx, frame, cupQuery, func(r StreamResult) { results <- r })
	waitStarted(t, obj.started)

	// A new keyword arrives while the old frame is running, after the
	// frame interval has passed.
	clock.Advance(10 * time.Millisecond)
	mug := Query{Keyword: "mug", Kind: detection.KindObject}
	if dec := p.OfferStreamFrame(ctx, frame, mug, nil); dec != pacer.SkipInflight {
		t.Errorf("got %v, want %v", dec, pacer.SkipInflight)
	}

	close(obj.gate)
	res := waitResult(t, results)
	if !res.Superseded {
		t.Error("expected result to be superseded")
	}
	if len(res.Detections) != 0 {
		t.Errorf("superseded result carried %d detections", len(res.Detections))
	}
	if got := p.Stats().Query.Keyword; got != "mug" {
		t.Errorf("stats query = %q, want mug", got)
	}
}

func TestStreamCanceledFrameKeepsPreviousResults(t *testing.T) {
	local := geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}
	release := make(chan struct{})
	obj := &fakeObjects{
		size:    64,
		started: make(chan struct{}, 4),
		respond: func(call int, _ image.Image) ([]detection.RawDetection, error) {
			if call == 2 {
				<-release
			}
			return []detection.RawDetection{raw("cup", local, 0.9)}, nil
		},
	}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Settings: config.NewStore(testSettings(true, 5, 30)),
		Clock:    clock.Now,
	})
	frame := testFrame(t, 1000, 1000)

	res, err := p.SubmitStreamFrame(context.Background(), frame, cupQuery)
	if err != nil || res.Coverage != 1 {
		t.Fatalf("first frame: coverage=%d err=%v", res.Coverage, err)
	}
	waitStarted(t, obj.started)

	clock.Advance(40 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan StreamResult, 1)
	if dec := p.OfferStreamFrame(ctx, frame, cupQuery, func(r StreamResult) { results <- r }); dec != pacer.Admit {
		t.Fatalf("second frame: got %v, want admit", dec)
	}
	waitStarted(t, obj.started)
	cancel()
	close(release)

	res = waitResult(t, results)
	if !res.Canceled {
		t.Error("expected the canceled frame to be reported as canceled")
	}
	if len(res.Detections) != 0 {
		t.Errorf("canceled frame carried %d detections", len(res.Detections))
	}
	if !p.pacer.State().HasActiveResults {
		t.Error("canceled frame dropped the pacer back to the scanning rate")
	}

	// Still at the tracking rate, and the canceled tile never reached the
	// cache: the first frame's tile plus this one.
	clock.Advance(40 * time.Millisecond)
	res, err = p.SubmitStreamFrame(context.Background(), frame, cupQuery)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Admitted {
		t.Fatalf("frame after cancel was skipped: %v", res.Skip)
	}
	if res.Coverage != 2 {
		t.Errorf("coverage = %d, want 2", res.Coverage)
	}
	if len(res.Detections) == 0 {
		t.Error("earlier results were lost")
	}
}

func TestStreamResetClearsCoverage(t *testing.T) {
	obj := &fakeObjects{size: 64}
	clock := newFakeClock()
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Settings: config.NewStore(testSettings(true, 1000, 1000)),
		Clock:    clock.Now,
	})
	frame := testFrame(t, 1000, 1000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p.SubmitStreamFrame(ctx, frame, cupQuery)
		clock.Advance(10 * time.Millisecond)
	}
	if got := p.Stats().Coverage; got != 3 {
		t.Fatalf("coverage = %d, want 3", got)
	}

	before := p.Stats().Generation
	p.ResetStream()
	st := p.Stats()
	if st.Coverage != 0 {
		t.Errorf("coverage after reset = %d, want 0", st.Coverage)
	}
	if st.Generation <= before {
		t.Errorf("generation did not advance: %d -> %d", before, st.Generation)
	}

	res, _ := p.SubmitStreamFrame(ctx, frame, cupQuery)
	if res.TileIndex != 0 {
		t.Errorf("rotation did not restart: tile = %d", res.TileIndex)
	}
}

func TestStreamEmptyKeywordSkipsDetector(t *testing.T) {
	obj := &fakeObjects{size: 64}
	p := newTestPipeline(t, Options{Objects: obj, Clock: newFakeClock().Now})

	res, err := p.SubmitStreamFrame(context.Background(), testFrame(t, 100, 100), Query{Keyword: "  "})
	if err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if len(res.Detections) != 0 {
		t.Errorf("got %d detections, want 0", len(res.Detections))
	}
	if got := obj.Calls(); got != 0 {
		t.Errorf("detector calls = %d, want 0", got)
	}
}

func TestStreamTextMode(t *testing.T) {
	obj := &fakeObjects{size: 64}
	text := &fakeText{lines: []detection.TextLine{
		{Text: "EXIT", Box: geometry.Box{X: 0.1, Y: 0.8, W: 0.2, H: 0.05}, Confidence: 0.92},
		{Text: "EXIT", Box: geometry.Box{X: 0.6, Y: 0.1, W: 0.2, H: 0.05}, Confidence: 0.1},
		{Text: "EXIT", Box: geometry.Box{}, Confidence: 0.9},
	}}
	p := newTestPipeline(t, Options{
		Objects:  obj,
		Text:     text,
		Settings: config.NewStore(testSettings(true, 1000, 1000)),
		Clock:    newFakeClock().Now,
	})

	res, _ := p.SubmitStreamFrame(context.Background(), testFrame(t, 1600, 1200), Query{Keyword: "exit", Kind: detection.KindText})
	if res.TileIndex != geometry.FullFrameIndex {
		t.Errorf("text query used tile %d, want full frame", res.TileIndex)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1", len(res.Detections))
	}
	if res.Detections[0].Kind != detection.KindText {
		t.Errorf("kind = %v, want text", res.Detections[0].Kind)
	}
	if obj.Calls() != 0 {
		t.Error("object detector ran for a text query")
	}
	if len(text.keywords) != 1 || text.keywords[0] != "exit" {
		t.Errorf("text detector keywords = %v", text.keywords)
	}
}

func TestStreamArtifactFilter(t *testing.T) {
	obj := &fakeObjects{
		size: 64,
		respond: func(int, image.Image) ([]detection.RawDetection, error) {
			return []detection.RawDetection{
				raw("cup", geometry.Box{X: 0.0, Y: 0.0, W: 0.05, H: 0.05}, 0.9),
				raw("cup", geometry.Box{X: 0.4, Y: 0.4, W: 0.002, H: 0.2}, 0.9),
				raw("cup", geometry.Box{X: 0.4, Y: 0.4, W: 0.2, H: 0.2}, 0.9),
			}, nil
		},
	}
	p := newTestPipeline(t, Options{
		Objects:   obj,
		Clock:     newFakeClock().Now,
		Artifacts: detection.ArtifactFilter{Enabled: true, EdgeMargin: 0.05, MinSize: 0.01},
	})

	res, _ := p.SubmitStreamFrame(context.Background(), testFrame(t, 64, 64), cupQuery)
	if len(res.Detections) != 1 {
		t.Fatalf("got %d detections, want 1: %+v", len(res.Detections), res.Detections)
	}
}

func TestStreamWithoutObjectDetector(t *testing.T) {
	p := newTestPipeline(t, Options{Clock: newFakeClock().Now})
	res, err := p.SubmitStreamFrame(context.Background(), testFrame(t, 100, 100), cupQuery)
	if err != nil {
		t.Fatalf("SubmitStreamFrame failed: %v", err)
	}
	if !res.Admitted || len(res.Detections) != 0 {
		t.Errorf("got admitted=%v detections=%d", res.Admitted, len(res.Detections))
	}
}
