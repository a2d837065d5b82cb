package fontinfo

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// ///////////////////////////////////////////////
// Info
// ///////////////////////////////////////////////

func TestOpen_GoRegular(t *testing.T) {
	in, err := Open(goregular.TTF)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !in.HasOutlineTable() {
		t.Error("Go Regular should have a glyf table")
	}

	m := in.GlyphMap()
	gid, ok := m['a']
	if !ok {
		t.Fatal("glyph map has no entry for 'a'")
	}
	if !in.HasNonEmptyOutline(gid) {
		t.Error("'a' should have a non-empty outline")
	}

	space, ok := in.Lookup(' ')
	if !ok {
		t.Fatal("no glyph for space")
	}
	if in.HasNonEmptyOutline(space) {
		t.Error("space should have an empty outline")
	}

	if in.Has('ب') {
		t.Error("Go Regular should not map ARABIC LETTER BEH")
	}
}

func TestFilter(t *testing.T) {
	in, err := Open(goregular.TTF)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tests := []struct {
		in, want string
	}{
		{"word", "word"},
		{"wبoحrd", "word"},
		{"كلمة", ""},
	}
	for _, tt := range tests {
		if got := in.Filter(tt.in); got != tt.want {
			t.Errorf("Filter(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOpen_Garbage(t *testing.T) {
	if _, err := Open([]byte("definitely not a font")); err == nil {
		t.Error("expected error for garbage data")
	}
	if _, err := Open(goregular.TTF[:64]); err == nil {
		t.Error("expected error for truncated font")
	}
}

// ///////////////////////////////////////////////
// Introspector
// ///////////////////////////////////////////////

func TestIntrospectorCachesSuccessOnly(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "Go-Regular.ttf")
	if err := os.WriteFile(good, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	loads := 0
	s := NewIntrospector()
	s.load = func(f fontsrc.Font) ([]byte, error) {
		loads++
		if f.Base == "missing" {
			return nil, errors.New("no such file")
		}
		return fontsrc.Load(f)
	}

	for range 3 {
		if _, err := s.GlyphMap(fontsrc.New(good)); err != nil {
			t.Fatalf("GlyphMap: %v", err)
		}
	}
	if loads != 1 {
		t.Errorf("loads = %d, want 1 (cached)", loads)
	}

	missing := fontsrc.New(filepath.Join(dir, "missing.ttf"))
	for range 2 {
		if _, err := s.GlyphMap(missing); err == nil {
			t.Fatal("expected error for missing font")
		}
	}
	if loads != 3 {
		t.Errorf("loads = %d, want 3 (failures are not cached)", loads)
	}
}

func TestIntrospectorHasNonEmptyOutline(t *testing.T) {
	p := filepath.Join(t.TempDir(), "Go-Regular.ttf")
	if err := os.WriteFile(p, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewIntrospector()
	f := fontsrc.New(p)

	m, err := s.GlyphMap(f)
	if err != nil {
		t.Fatalf("GlyphMap: %v", err)
	}
	ok, err := s.HasNonEmptyOutline(f, m['Q'])
	if err != nil || !ok {
		t.Errorf("HasNonEmptyOutline('Q') = %v, %v; want true, nil", ok, err)
	}
}
