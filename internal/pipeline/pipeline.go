// Package pipeline turns a fixed-input-size detector into full-frame
// detection for live streams and large static photos.
//
// Every invocation reads one settings snapshot, picks regions (one rotating
// tile per live frame, the static grid for photos), letterboxes each region
// into the detector, maps the boxes back to frame coordinates, filters them by
// confidence and keyword and fuses the survivors. Detector failures only ever
// produce empty results.
package pipeline

import (
	"errors"
	"image/color"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/imaging"
	"github.com/wyyywsd/FinderEye/internal/logging"
	"github.com/wyyywsd/FinderEye/internal/pacer"
	"github.com/wyyywsd/FinderEye/internal/roi"
	"github.com/wyyywsd/FinderEye/internal/slicecache"
)

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	// Objects and Text are the detectors. Either may be nil, in which case
	// queries of that kind return no detections.
	Objects detection.ObjectDetector
	Text    detection.TextDetector

	// Settings is read once per invocation. Required.
	Settings config.SettingsProvider

	Workers     int
	PadColor    color.Color
	Fuser       detection.FuserConfig
	Grid        roi.GridConfig
	SliceTTL    time.Duration
	QuietPeriod time.Duration
	Artifacts   detection.ArtifactFilter
	Matcher     *detection.KeywordMatcher

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// OptionsFromConfig fills every non-detector option from cfg.
func OptionsFromConfig(cfg *config.Config, settings config.SettingsProvider) Options {
	pad, err := imaging.ParseColor(cfg.PadColor)
	if err != nil {
		pad = imaging.DefaultPadColor
	}
	grid := roi.DefaultGridConfig()
	grid.MinDimension = cfg.MinTileDimension
	fuser := detection.DefaultFuserConfig()
	fuser.IOUThreshold = cfg.IOUThreshold

	return Options{
		Settings:    settings,
		Workers:     cfg.Workers,
		PadColor:    pad,
		Fuser:       fuser,
		Grid:        grid,
		SliceTTL:    cfg.SliceTTL,
		QuietPeriod: cfg.StaticQuietPeriod,
		Artifacts: detection.ArtifactFilter{
			Enabled:    cfg.ArtifactFilter,
			EdgeMargin: cfg.ArtifactEdgeMargin,
			MinSize:    cfg.ArtifactMinSize,
		},
	}
}

// Pipeline owns the stream state (pacer, rotating tiles, slice cache) and the
// static debouncer. It is safe for concurrent use; live frames should still
// come from a single delivery goroutine so the pacer sees them in order.
type Pipeline struct {
	id       string
	log      zerolog.Logger
	objects  detection.ObjectDetector
	text     detection.TextDetector
	settings config.SettingsProvider
	pad      color.Color
	grid     roi.GridConfig
	fuser    *detection.Fuser
	matcher  *detection.KeywordMatcher
	filter   detection.ArtifactFilter
	pool     *Pool
	now      func() time.Time

	pacer     *pacer.FramePacer
	rotator   *roi.Rotator
	cache     *slicecache.Cache
	debouncer *pacer.Debouncer

	// streamMu orders query changes against result commits.
	streamMu  sync.Mutex
	streamGen pacer.Generation
	lastQuery Query
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Settings == nil {
		return nil, errors.New("pipeline: settings provider is required")
	}
	if opts.PadColor == nil {
		opts.PadColor = imaging.DefaultPadColor
	}
	if opts.Grid == (roi.GridConfig{}) {
		opts.Grid = roi.DefaultGridConfig()
	}
	if opts.QuietPeriod == 0 {
		opts.QuietPeriod = pacer.DefaultQuietPeriod
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	id := uuid.NewString()
	log := logging.Component("pipeline").With().Str("pipeline_id", id).Logger()
	if opts.Objects == nil {
		log.Warn().Msg("no object detector configured; object queries return nothing")
	}
	if opts.Text == nil {
		log.Warn().Msg("no text detector configured; text queries return nothing")
	}

	s := opts.Settings.Settings()
	return &Pipeline{
		id:        id,
		log:       log,
		objects:   opts.Objects,
		text:      opts.Text,
		settings:  opts.Settings,
		pad:       opts.PadColor,
		grid:      opts.Grid,
		fuser:     detection.NewFuser(opts.Fuser),
		matcher:   opts.Matcher,
		filter:    opts.Artifacts,
		pool:      NewPool(opts.Workers),
		now:       opts.Clock,
		pacer:     pacer.NewFramePacer(s.ScanningFPS, s.TrackingFPS),
		rotator:   roi.NewRotator(),
		cache:     slicecache.New(opts.SliceTTL),
		debouncer: pacer.NewDebouncer(opts.QuietPeriod),
	}, nil
}

// ID identifies this pipeline in logs.
func (p *Pipeline) ID() string {
	return p.id
}

// SetSuspended pauses or resumes the live stream while the user edits the
// query.
func (p *Pipeline) SetSuspended(suspended bool) {
	p.pacer.SetSuspended(pacer.ReasonEditing, suspended)
	p.log.Debug().Bool("suspended", suspended).Msg("editing suspension changed")
}

// SetZooming pauses or resumes the live stream while the camera zooms.
func (p *Pipeline) SetZooming(zooming bool) {
	p.pacer.SetSuspended(pacer.ReasonZooming, zooming)
	p.log.Debug().Bool("zooming", zooming).Msg("zoom suspension changed")
}

// ResetStream drops all live state. In-flight results are discarded when
// they complete.
func (p *Pipeline) ResetStream() {
	p.streamMu.Lock()
	defer p.streamMu.Unlock()
	p.resetStreamLocked()
}

func (p *Pipeline) resetStreamLocked() {
	gen := p.streamGen.Next()
	p.cache.Reset()
	p.rotator.Reset()
	p.pacer.ClearResults()
	p.log.Debug().Uint64("generation", gen).Msg("stream reset")
}

// CancelStatic supersedes any pending static request.
func (p *Pipeline) CancelStatic() {
	p.debouncer.Cancel()
}

// Stats is a snapshot of the pipeline's live state.
type Stats struct {
	PipelineID string      `json:"pipeline_id"`
	Pacer      pacer.State `json:"pacer"`
	Decisions  pacer.Stats `json:"decisions"`
	Pool       PoolStats   `json:"pool"`
	Coverage   int         `json:"coverage"`
	Generation uint64      `json:"generation"`
	Query      Query       `json:"query"`
}

// Stats returns a snapshot of the pipeline's live state.
func (p *Pipeline) Stats() Stats {
	p.streamMu.Lock()
	q := p.lastQuery
	p.streamMu.Unlock()
	return Stats{
		PipelineID: p.id,
		Pacer:      p.pacer.State(),
		Decisions:  p.pacer.Stats(),
		Pool:       p.pool.Stats(),
		Coverage:   p.cache.Coverage(p.now()),
		Generation: p.streamGen.Current(),
		Query:      q,
	}
}
