package detection

import (
	"math"
	"sort"

	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// MaxIOUThreshold caps the configured IOU threshold. Tiled inference produces
// duplicates that overlap far less than classic NMS expects.
const MaxIOUThreshold = 0.35

// FuserConfig tunes both fusion passes.
type FuserConfig struct {
	// IOUThreshold is the configured suppression threshold; the effective
	// value is min(IOUThreshold, MaxIOUThreshold).
	IOUThreshold float64

	// ContainmentRatio suppresses a box when its intersection with a kept box
	// covers at least this fraction of the smaller of the two areas.
	ContainmentRatio float64

	// FragmentGapRatio is the largest gap, as a fraction of the smaller box's
	// extent on the gap axis, that still joins two fragments.
	FragmentGapRatio float64

	// FragmentOverlapRatio is the minimum projection overlap on the axis
	// perpendicular to the gap, as a fraction of the smaller box's extent on
	// that axis.
	FragmentOverlapRatio float64
}

// DefaultFuserConfig returns the standard tuning.
func DefaultFuserConfig() FuserConfig {
	return FuserConfig{
		IOUThreshold:         0.45,
		ContainmentRatio:     0.6,
		FragmentGapRatio:     0.10,
		FragmentOverlapRatio: 0.5,
	}
}

// Fuser merges per-tile detections into one deduplicated set.
type Fuser struct {
	cfg FuserConfig
}

// NewFuser creates a Fuser. Zero fields in cfg take their default values.
func NewFuser(cfg FuserConfig) *Fuser {
	def := DefaultFuserConfig()
	if cfg.IOUThreshold <= 0 {
		cfg.IOUThreshold = def.IOUThreshold
	}
	if cfg.ContainmentRatio <= 0 {
		cfg.ContainmentRatio = def.ContainmentRatio
	}
	if cfg.FragmentGapRatio <= 0 {
		cfg.FragmentGapRatio = def.FragmentGapRatio
	}
	if cfg.FragmentOverlapRatio <= 0 {
		cfg.FragmentOverlapRatio = def.FragmentOverlapRatio
	}
	return &Fuser{cfg: cfg}
}

// EffectiveIOU returns the IOU threshold actually used by Suppress.
func (f *Fuser) EffectiveIOU() float64 {
	return math.Min(f.cfg.IOUThreshold, MaxIOUThreshold)
}

// Fuse drops degenerate boxes, merges fragments, then runs NMS. The result is
// sorted by confidence, highest first.
func (f *Fuser) Fuse(dets []Detection) []Detection {
	valid := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if !d.Box.Empty() {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	return f.Suppress(f.MergeFragments(valid))
}

// MergeFragments joins boxes that look like pieces of one object cut apart by
// tile boundaries. Connected components under the adjacency relation collapse
// into their bounding box and take label, confidence and kind from their most
// confident member. Labels play no part in adjacency. Merging repeats until the
// set is stable, since a grown box can reach new neighbors.
func (f *Fuser) MergeFragments(dets []Detection) []Detection {
	current := append([]Detection(nil), dets...)
	for {
		next := f.mergeOnce(current)
		if len(next) == len(current) {
			return next
		}
		current = next
	}
}

func (f *Fuser) mergeOnce(dets []Detection) []Detection {
	n := len(dets)
	if n < 2 {
		return dets
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if f.adjacent(dets[i].Box, dets[j].Box) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
			}
		}
	}

	// Preserve first-seen order of components.
	order := make([]int, 0, n)
	groups := make(map[int]*Detection, n)
	for i, d := range dets {
		root := find(i)
		g, ok := groups[root]
		if !ok {
			cp := d
			groups[root] = &cp
			order = append(order, root)
			continue
		}
		box := g.Box.Union(d.Box)
		if d.Confidence > g.Confidence {
			*g = d
		}
		g.Box = box
	}

	out := make([]Detection, 0, len(order))
	for _, root := range order {
		out = append(out, *groups[root])
	}
	return out
}

// adjacent reports whether a and b intersect, or sit side by side (or one
// above the other) with a small gap and a large shared extent.
func (f *Fuser) adjacent(a, b geometry.Box) bool {
	if a.Intersects(b) {
		return true
	}

	small := a
	if b.Area() < a.Area() {
		small = b
	}
	// Positive gap means separated on that axis; negative is the overlap.
	gapX := math.Max(a.X, b.X) - math.Min(a.MaxX(), b.MaxX())
	gapY := math.Max(a.Y, b.Y) - math.Min(a.MaxY(), b.MaxY())

	if gapX >= 0 && gapX < f.cfg.FragmentGapRatio*small.W && -gapY > f.cfg.FragmentOverlapRatio*small.H {
		return true
	}
	if gapY >= 0 && gapY < f.cfg.FragmentGapRatio*small.H && -gapX > f.cfg.FragmentOverlapRatio*small.W {
		return true
	}
	return false
}

// Suppress is greedy non-maximum suppression with an extra containment rule:
// a box is dropped when its IOU with a kept box reaches EffectiveIOU, or when
// their intersection covers ContainmentRatio of the smaller box. Running it on
// its own output changes nothing.
func (f *Fuser) Suppress(dets []Detection) []Detection {
	sorted := append([]Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	thr := f.EffectiveIOU()
	kept := make([]Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if f.overlaps(k.Box, d.Box, thr) {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

func (f *Fuser) overlaps(a, b geometry.Box, iouThreshold float64) bool {
	inter := a.Intersect(b).Area()
	if inter == 0 {
		return false
	}
	if geometry.IOU(a, b) >= iouThreshold {
		return true
	}
	smaller := math.Min(a.Area(), b.Area())
	return smaller > 0 && inter/smaller >= f.cfg.ContainmentRatio
}
