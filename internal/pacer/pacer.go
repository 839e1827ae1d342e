// Package pacer decides when the detector may run.
//
// FramePacer gates live frames: at most one inference in flight, no faster
// than the current frame rate, and nothing at all while suspended. Debouncer
// collapses bursts of static requests into the last one.
package pacer

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// MinFPS is the floor applied to configured frame rates.
const MinFPS = 0.1

// Decision is the outcome of offering a frame to the pacer.
type Decision int

const (
	Admit Decision = iota
	SkipSuspended
	SkipTooSoon
	SkipInflight
)

func (d Decision) String() string {
	switch d {
	case Admit:
		return "admit"
	case SkipSuspended:
		return "suspended"
	case SkipTooSoon:
		return "too_soon"
	case SkipInflight:
		return "inflight"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// MarshalText encodes the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (d *Decision) UnmarshalText(b []byte) error {
	for _, c := range []Decision{Admit, SkipSuspended, SkipTooSoon, SkipInflight} {
		if c.String() == string(b) {
			*d = c
			return nil
		}
	}
	return fmt.Errorf("unknown pacer decision %q", b)
}

// Reason identifies why the stream is suspended. Reasons are independent:
// the stream runs only when none is set.
type Reason uint8

const (
	ReasonEditing Reason = 1 << iota
	ReasonZooming
)

// State is a snapshot of the pacer.
type State struct {
	Suspended        bool      `json:"suspended"`
	Editing          bool      `json:"editing"`
	Zooming          bool      `json:"zooming"`
	Inflight         bool      `json:"inflight"`
	LastSubmit       time.Time `json:"last_submit"`
	HasActiveResults bool      `json:"has_active_results"`
	ScanningFPS      float64   `json:"scanning_fps"`
	TrackingFPS      float64   `json:"tracking_fps"`
}

// Stats counts admission decisions since the pacer was created.
type Stats struct {
	Admitted        uint64 `json:"admitted"`
	SkippedSuspend  uint64 `json:"skipped_suspended"`
	SkippedTooSoon  uint64 `json:"skipped_too_soon"`
	SkippedInflight uint64 `json:"skipped_inflight"`
	Completed       uint64 `json:"completed"`
	Abandoned       uint64 `json:"abandoned"`
}

// FramePacer owns the admission state for a live stream. All methods are
// safe for concurrent use.
type FramePacer struct {
	mu               sync.Mutex
	suspended        Reason
	inflight         bool
	lastSubmit       time.Time
	hasActiveResults bool
	scanningFPS      float64
	trackingFPS      float64
	stats            Stats
}

// NewFramePacer creates a pacer with the given rates.
func NewFramePacer(scanningFPS, trackingFPS float64) *FramePacer {
	return &FramePacer{scanningFPS: scanningFPS, trackingFPS: trackingFPS}
}

// SetRates updates the scanning and tracking frame rates.
func (p *FramePacer) SetRates(scanningFPS, trackingFPS float64) {
	p.mu.Lock()
	p.scanningFPS = scanningFPS
	p.trackingFPS = trackingFPS
	p.mu.Unlock()
}

// SetSuspended sets or clears one suspension reason.
func (p *FramePacer) SetSuspended(reason Reason, on bool) {
	p.mu.Lock()
	if on {
		p.suspended |= reason
	} else {
		p.suspended &^= reason
	}
	p.mu.Unlock()
}

// Interval returns the minimum spacing between admitted frames for the
// current state: tracking rate while results are on screen, scanning rate
// otherwise.
func (p *FramePacer) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intervalLocked()
}

func (p *FramePacer) intervalLocked() time.Duration {
	fps := p.scanningFPS
	if p.hasActiveResults {
		fps = p.trackingFPS
	}
	fps = math.Max(fps, MinFPS)
	return time.Duration(float64(time.Second) / fps)
}

// TryAdmit decides whether the frame arriving at now goes to the detector.
// Checks run in order: suspension, rate, in-flight. On Admit the pacer marks
// an inference in flight and records now as the last submission; the caller
// must call Complete when the inference finishes.
func (p *FramePacer) TryAdmit(now time.Time) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.suspended != 0 {
		p.stats.SkippedSuspend++
		return SkipSuspended
	}
	if !p.lastSubmit.IsZero() && now.Sub(p.lastSubmit) < p.intervalLocked() {
		p.stats.SkippedTooSoon++
		return SkipTooSoon
	}
	if p.inflight {
		p.stats.SkippedInflight++
		return SkipInflight
	}

	p.inflight = true
	p.lastSubmit = now
	p.stats.Admitted++
	return Admit
}

// Complete ends the in-flight inference. hasResults selects the tracking
// rate for the next frames.
func (p *FramePacer) Complete(hasResults bool) {
	p.mu.Lock()
	p.inflight = false
	p.hasActiveResults = hasResults
	p.stats.Completed++
	p.mu.Unlock()
}

// Abandon ends the in-flight inference without a result. The rate chosen by
// the last completed inference stays in effect.
func (p *FramePacer) Abandon() {
	p.mu.Lock()
	p.inflight = false
	p.stats.Abandoned++
	p.mu.Unlock()
}

// ClearResults drops back to the scanning rate, for example after the query
// changed.
func (p *FramePacer) ClearResults() {
	p.mu.Lock()
	p.hasActiveResults = false
	p.mu.Unlock()
}

// State returns a snapshot of the pacer.
func (p *FramePacer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Suspended:        p.suspended != 0,
		Editing:          p.suspended&ReasonEditing != 0,
		Zooming:          p.suspended&ReasonZooming != 0,
		Inflight:         p.inflight,
		LastSubmit:       p.lastSubmit,
		HasActiveResults: p.hasActiveResults,
		ScanningFPS:      p.scanningFPS,
		TrackingFPS:      p.trackingFPS,
	}
}

// Stats returns the decision counters.
func (p *FramePacer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
