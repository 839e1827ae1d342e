package ocr

import (
	"image"
	"strings"

	"github.com/wyyywsd/FinderEye/internal/config"
	"github.com/wyyywsd/FinderEye/internal/detection"
	"github.com/wyyywsd/FinderEye/internal/geometry"
)

// Word is one recognized word in pixel coordinates (top-left origin).
type Word struct {
	Text       string
	Rect       image.Rectangle
	Confidence float64
}

// Line is one recognized text line and the words that fall inside it.
type Line struct {
	Text       string
	Rect       image.Rectangle
	Confidence float64
	Words      []Word
}

// GroupWords assigns each word to the first line containing its center.
// Words outside every line are dropped.
func GroupWords(lines []Line, words []Word) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	for i := range out {
		out[i].Words = nil
	}
	for _, w := range words {
		c := image.Pt((w.Rect.Min.X+w.Rect.Max.X)/2, (w.Rect.Min.Y+w.Rect.Max.Y)/2)
		for i := range out {
			if c.In(out[i].Rect) {
				out[i].Words = append(out[i].Words, w)
				break
			}
		}
	}
	return out
}

// MatchLines returns a TextLine for every line containing keyword. Boxes are
// normalized to an image of the given size.
func MatchLines(lines []Line, keyword, mode string, size image.Point) []detection.TextLine {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" || size.X <= 0 || size.Y <= 0 {
		return nil
	}

	var out []detection.TextLine
	for _, l := range lines {
		text := strings.TrimSpace(l.Text)
		if !strings.Contains(strings.ToLower(text), k) {
			continue
		}

		rect, conf := l.Rect, l.Confidence
		if mode == config.TextMatchSpan {
			if r, c, ok := spanRect(l.Words, k); ok {
				rect, conf = r, c
			}
		}
		rect = rect.Intersect(image.Rect(0, 0, size.X, size.Y))
		if rect.Empty() {
			continue
		}

		out = append(out, detection.TextLine{
			Text:       text,
			Box:        geometry.MapCropRegionToNormalized(rect, size),
			Confidence: conf,
		})
	}
	return out
}

// spanRect finds the shortest run of words whose joined text contains k and
// returns the union of their rectangles with the lowest word confidence.
func spanRect(words []Word, k string) (image.Rectangle, float64, bool) {
	bestI, bestJ := -1, -1
	for i := range words {
		var b strings.Builder
		for j := i; j < len(words); j++ {
			if j > i {
				b.WriteByte(' ')
			}
			b.WriteString(strings.ToLower(strings.TrimSpace(words[j].Text)))
			if strings.Contains(b.String(), k) {
				if bestI < 0 || j-i < bestJ-bestI {
					bestI, bestJ = i, j
				}
				break
			}
		}
	}
	if bestI < 0 {
		return image.Rectangle{}, 0, false
	}

	r := words[bestI].Rect
	conf := words[bestI].Confidence
	for _, w := range words[bestI+1 : bestJ+1] {
		r = r.Union(w.Rect)
		if w.Confidence < conf {
			conf = w.Confidence
		}
	}
	return r, conf, true
}

// Languages splits a "eng+deu" or "eng,deu" list.
func Languages(s string) []string {
	f := strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' || r == ' ' })
	if len(f) == 0 {
		return []string{"eng"}
	}
	return f
}
