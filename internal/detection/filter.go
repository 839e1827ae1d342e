package detection

import (
	"strings"
)

// MatchesKeyword is the plain label rule: case-insensitive substring match in
// either direction, so "cup" finds "cup" and "cupboard", and "coffee cup"
// finds "cup". An empty keyword or label never matches.
func MatchesKeyword(label, keyword string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	k := strings.ToLower(strings.TrimSpace(keyword))
	if l == "" || k == "" {
		return false
	}
	return strings.Contains(l, k) || strings.Contains(k, l)
}

// KeywordMatcher extends MatchesKeyword with an alias table, so that a
// keyword can also find labels under other names ("mobile" -> "cell phone").
type KeywordMatcher struct {
	aliases map[string][]string
}

// NewKeywordMatcher builds a matcher. Alias keys are compared lowercased.
func NewKeywordMatcher(aliases map[string][]string) *KeywordMatcher {
	m := &KeywordMatcher{aliases: make(map[string][]string, len(aliases))}
	for k, v := range aliases {
		key := strings.ToLower(strings.TrimSpace(k))
		m.aliases[key] = append(m.aliases[key], v...)
	}
	return m
}

// Match reports whether label satisfies keyword or one of its aliases.
func (m *KeywordMatcher) Match(label, keyword string) bool {
	if MatchesKeyword(label, keyword) {
		return true
	}
	if m == nil {
		return false
	}
	for _, alias := range m.aliases[strings.ToLower(strings.TrimSpace(keyword))] {
		if MatchesKeyword(label, alias) {
			return true
		}
	}
	return false
}

// FilterByQuery keeps detections at or above minConfidence whose label matches
// keyword.
func FilterByQuery(dets []Detection, minConfidence float64, keyword string, m *KeywordMatcher) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Confidence < minConfidence {
			continue
		}
		if !m.Match(d.Label, keyword) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// ArtifactFilter drops detections that are usually noise in a live feed:
// boxes whose center sits within EdgeMargin of a frame edge, and boxes
// narrower or shorter than MinSize. A disabled filter passes everything.
type ArtifactFilter struct {
	Enabled    bool
	EdgeMargin float64
	MinSize    float64
}

// Apply returns the detections that survive the filter.
func (a ArtifactFilter) Apply(dets []Detection) []Detection {
	if !a.Enabled {
		return dets
	}
	out := dets[:0:0]
	for _, d := range dets {
		if d.Box.W < a.MinSize || d.Box.H < a.MinSize {
			continue
		}
		c := d.Box.Center()
		if c.X < a.EdgeMargin || c.X > 1-a.EdgeMargin || c.Y < a.EdgeMargin || c.Y > 1-a.EdgeMargin {
			continue
		}
		out = append(out, d)
	}
	return out
}
