// Package fontinfo answers structural questions about a font file: which
// code points it maps, whether a glyph carries real outline data, and which
// glyph tables are present. It never modifies the font file.
package fontinfo

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/go-text/typesetting/font"
	ot "github.com/go-text/typesetting/font/opentype"
	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// Glyph table tags that can carry outlines.
var outlineTables = []ot.Tag{
	ot.MustNewTag("glyf"),
	ot.MustNewTag("CFF "),
	ot.MustNewTag("CFF2"),
}

// ErrNoCmap is returned when a font has no usable character map.
var ErrNoCmap = errors.New("font has no usable cmap")

// ///////////////////////////////////////////////
// Info
// ///////////////////////////////////////////////

// Info is a parsed font. It is not safe for concurrent use; each worker
// owns its own.
type Info struct {
	// Face is the parsed go-text face used for shaping and outlines.
	Face *font.Face
	// Data is the SFNT bytes the face was parsed from.
	Data []byte

	tables map[ot.Tag]bool
	glyphs map[rune]font.GID
}

// Open parses SFNT data. Malformed tables that make the parser panic are
// reported as errors.
func Open(data []byte) (info *Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("parse font: %v", r)
		}
	}()

	ld, err := ot.NewLoader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read table directory: %w", err)
	}
	tables := map[ot.Tag]bool{}
	for _, t := range ld.Tables() {
		tables[t] = true
	}

	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if face.Cmap == nil {
		return nil, ErrNoCmap
	}
	return &Info{Face: face, Data: data, tables: tables}, nil
}

// GlyphMap returns the code point to glyph mapping. The map is built once
// and must not be modified.
func (in *Info) GlyphMap() map[rune]font.GID {
	if in.glyphs != nil {
		return in.glyphs
	}
	m := map[rune]font.GID{}
	it := in.Face.Cmap.Iter()
	for it.Next() {
		r, g := it.Char()
		m[r] = g
	}
	in.glyphs = m
	return m
}

// Lookup returns the glyph mapped to r.
func (in *Info) Lookup(r rune) (font.GID, bool) {
	return in.Face.Cmap.Lookup(r)
}

// Has reports whether r is mapped.
func (in *Info) Has(r rune) bool {
	_, ok := in.Lookup(r)
	return ok
}

// Filter returns text restricted to the code points the font maps.
func (in *Info) Filter(text string) string {
	var b strings.Builder
	for _, r := range text {
		if in.Has(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HasOutlineTable reports whether the font carries a glyf, CFF or CFF2 table.
func (in *Info) HasOutlineTable() bool {
	for _, t := range outlineTables {
		if in.tables[t] {
			return true
		}
	}
	return false
}

// HasNonEmptyOutline reports whether gid has at least one outline segment.
// Bitmap glyphs count when they embed an outline.
func (in *Info) HasNonEmptyOutline(gid font.GID) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if gid <= math.MaxUint16 {
		if out, found := in.Face.GlyphDataOutline(uint16(gid)); found {
			return len(out.Segments) > 0
		}
	}
	switch g := in.Face.GlyphData(gid).(type) {
	case font.GlyphOutline:
		return len(g.Segments) > 0
	case font.GlyphBitmap:
		return g.Outline != nil && len(g.Outline.Segments) > 0
	default:
		return false
	}
}

// ///////////////////////////////////////////////
// Introspector
// ///////////////////////////////////////////////

// Introspector loads and caches parsed fonts by path. Failures are not
// cached, so a transient read error is retried on the next call.
type Introspector struct {
	mu    sync.Mutex
	cache map[string]*Info
	load  func(fontsrc.Font) ([]byte, error)
}

// NewIntrospector returns an Introspector reading fonts with fontsrc.Load.
func NewIntrospector() *Introspector {
	return &Introspector{cache: map[string]*Info{}, load: fontsrc.Load}
}

// Info returns the parsed font for f.
func (s *Introspector) Info(f fontsrc.Font) (*Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.cache[f.Path]; ok {
		return in, nil
	}
	data, err := s.load(f)
	if err != nil {
		return nil, err
	}
	in, err := Open(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.FileName(), err)
	}
	s.cache[f.Path] = in
	return in, nil
}

// GlyphMap returns the code point to glyph mapping of f.
func (s *Introspector) GlyphMap(f fontsrc.Font) (map[rune]font.GID, error) {
	in, err := s.Info(f)
	if err != nil {
		return nil, err
	}
	return in.GlyphMap(), nil
}

// HasNonEmptyOutline reports whether gid in f has outline data.
func (s *Introspector) HasNonEmptyOutline(f fontsrc.Font, gid font.GID) (bool, error) {
	in, err := s.Info(f)
	if err != nil {
		return false, err
	}
	return in.HasNonEmptyOutline(gid), nil
}
