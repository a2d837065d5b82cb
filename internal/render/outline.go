package render

import (
	"fmt"
	"image"
	"math"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Limits on a single shaped run.
const (
	maxSegments   = 1 << 17
	maxCanvasSide = 1 << 14
)

// point is a pixel-space coordinate with y growing downwards.
type point struct{ x, y float32 }

// segment is one scaled outline command.
type segment struct {
	op   ot.SegmentOp
	args [3]point
}

// layout is a shaped and scaled text run ready for rasterization.
type layout struct {
	segments []segment
	// Tight bounds of every outline point, including control points.
	minX, minY, maxX, maxY float32
}

func (l *layout) empty() bool {
	return len(l.segments) == 0 || l.maxX-l.minX < 1 || l.maxY-l.minY < 1
}

// size returns the integer canvas size holding the run.
func (l *layout) size() (int, int) {
	w := int(math.Ceil(float64(l.maxX))) - int(math.Floor(float64(l.minX)))
	h := int(math.Ceil(float64(l.maxY))) - int(math.Floor(float64(l.minY)))
	return w, h
}

// shape runs HarfBuzz over text and collects glyph outlines scaled to size
// pixels. The pen starts at the origin on the baseline.
func shape(face *font.Face, text []rune, size float64, rtl bool, lang string) (*layout, error) {
	dir := di.DirectionLTR
	if rtl {
		dir = di.DirectionRTL
	}
	var shaper shaping.HarfbuzzShaper
	out := shaper.Shape(shaping.Input{
		Text:      text,
		RunStart:  0,
		RunEnd:    len(text),
		Direction: dir,
		Face:      face,
		Size:      fixed.Int26_6(size * 64),
		Script:    detectScript(text),
		Language:  language.NewLanguage(lang),
	})

	upem := float32(face.Upem())
	if upem == 0 {
		return nil, errorf(CodeMalformedGlyph, "units per em is zero", nil)
	}
	scale := float32(size) / upem

	l := &layout{
		minX: math.MaxFloat32, minY: math.MaxFloat32,
		maxX: -math.MaxFloat32, maxY: -math.MaxFloat32,
	}
	var pen float32
	for _, g := range out.Glyphs {
		ox := pen + fixedToFloat(g.XOffset)
		oy := -fixedToFloat(g.YOffset)
		pen += fixedToFloat(g.Advance)

		segs, ok := glyphSegments(face, g.GlyphID)
		if !ok {
			if g.Width != 0 || g.Height != 0 {
				return nil, errorf(CodeDegenerateOutline, fmt.Sprintf("glyph %d has no outline data", g.GlyphID), nil)
			}
			continue
		}
		if len(l.segments)+len(segs) > maxSegments {
			return nil, errorf(CodeExecutionLimit, fmt.Sprintf("run exceeds %d outline segments", maxSegments), nil)
		}
		for _, s := range segs {
			var seg segment
			seg.op = s.Op
			for i, a := range s.ArgsSlice() {
				p := point{x: ox + a.X*scale, y: oy - a.Y*scale}
				if !finite(p.x) || !finite(p.y) {
					return nil, errorf(CodeExecutionLimit, fmt.Sprintf("glyph %d has non-finite coordinates", g.GlyphID), nil)
				}
				seg.args[i] = p
				l.grow(p)
			}
			l.segments = append(l.segments, seg)
		}
	}
	return l, nil
}

func (l *layout) grow(p point) {
	l.minX = min(l.minX, p.x)
	l.minY = min(l.minY, p.y)
	l.maxX = max(l.maxX, p.x)
	l.maxY = max(l.maxY, p.y)
}

// glyphSegments returns the outline of gid. Bitmap and SVG glyphs only count
// when they embed an outline.
func glyphSegments(face *font.Face, gid font.GID) ([]font.Segment, bool) {
	if gid <= math.MaxUint16 {
		if out, ok := face.GlyphDataOutline(uint16(gid)); ok {
			return out.Segments, true
		}
	}
	switch g := face.GlyphData(gid).(type) {
	case font.GlyphOutline:
		return g.Segments, true
	case font.GlyphBitmap:
		if g.Outline != nil {
			return g.Outline.Segments, true
		}
	case font.GlyphSVG:
		return g.Outline.Segments, true
	}
	return nil, false
}

// rasterize fills the run into an alpha mask of w x h pixels, translated by
// (dx, dy).
func (l *layout) rasterize(w, h int, dx, dy float32) *image.Alpha {
	z := vector.NewRasterizer(w, h)
	open := false
	for _, s := range l.segments {
		a := s.args
		switch s.op {
		case ot.SegmentOpMoveTo:
			if open {
				z.ClosePath()
			}
			z.MoveTo(a[0].x+dx, a[0].y+dy)
			open = true
		case ot.SegmentOpLineTo:
			z.LineTo(a[0].x+dx, a[0].y+dy)
		case ot.SegmentOpQuadTo:
			z.QuadTo(a[0].x+dx, a[0].y+dy, a[1].x+dx, a[1].y+dy)
		case ot.SegmentOpCubeTo:
			z.CubeTo(a[0].x+dx, a[0].y+dy, a[1].x+dx, a[1].y+dy, a[2].x+dx, a[2].y+dy)
		}
	}
	if open {
		z.ClosePath()
	}
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
