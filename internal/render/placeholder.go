package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// placeholderMargin is the share of the canvas a shrunk word may fill.
const placeholderMargin = 0.9

// Placeholder draws word in black, centered on a white 2h x h canvas at
// size h/2, shaped like any other render but without random effects. A word
// too wide for the canvas is shrunk to fit. When f cannot draw the word, a
// left-to-right script falls back to the built-in 7x13 bitmap face; a
// right-to-left script fails instead, since that face cannot join or reorder
// its letters.
func (r *Renderer) Placeholder(f fontsrc.Font, word string, height int) (img *image.Gray, err error) {
	if height <= 0 {
		return nil, fmt.Errorf("placeholder height %d", height)
	}
	defer func() {
		if p := recover(); p != nil {
			img, err = nil, fmt.Errorf("placeholder for %s: %v", f.FileName(), p)
		}
	}()

	width := height * 2
	img = image.NewGray(image.Rect(0, 0, width, height))
	fill(img, 0xff)

	run, err := r.placeholderRun(f, word, float64(height/2), width, height)
	if err == nil {
		w, h := run.size()
		dx := float32((width-w)/2) - float32(math.Floor(float64(run.minX)))
		dy := float32((height-h)/2) - float32(math.Floor(float64(run.minY)))
		paint(img, run.rasterize(width, height, dx, dy), color.Gray{Y: 0})
		return img, nil
	}
	if r.script.RTL || !bitmapCovers(word) {
		return nil, fmt.Errorf("placeholder %q in %s: %w", word, f.FileName(), err)
	}
	drawBitmap(img, word)
	return img, nil
}

// placeholderRun shapes word in f, shrinking it until it fits w x h.
func (r *Renderer) placeholderRun(f fontsrc.Font, word string, size float64, w, h int) (*layout, error) {
	if size < 1 {
		return nil, errorf(CodeInvalidArgument, fmt.Sprintf("size %g", size), nil)
	}
	info, err := r.fonts.Info(f)
	if err != nil {
		return nil, errorf(CodeUnreadableFont, f.FileName(), err)
	}
	for _, c := range word {
		if c != ' ' && !info.Has(c) {
			return nil, errorf(CodeEmptyRaster, fmt.Sprintf("no glyph for %q", c), nil)
		}
	}

	text := []rune(word)
	run, err := shape(info.Face, text, size, r.script.RTL, r.script.Language)
	if err != nil {
		return nil, err
	}
	if run.empty() {
		return nil, errorf(CodeEmptyRaster, fmt.Sprintf("%q has no ink", word), nil)
	}
	rw, rh := run.size()
	if rw <= w && rh <= h {
		return run, nil
	}
	k := placeholderMargin * min(float64(w)/float64(rw), float64(h)/float64(rh))
	run, err = shape(info.Face, text, size*k, r.script.RTL, r.script.Language)
	if err != nil {
		return nil, err
	}
	if rw, rh = run.size(); run.empty() || rw > w || rh > h {
		return nil, errorf(CodeInvalidArgument, fmt.Sprintf("%q does not fit %dx%d", word, w, h), nil)
	}
	return run, nil
}

// bitmapCovers reports whether the bitmap face has every rune of word,
// without its replacement-character substitution.
func bitmapCovers(word string) bool {
	if word == "" {
		return false
	}
next:
	for _, c := range word {
		for _, rg := range basicfont.Face7x13.Ranges {
			if rg.Low <= c && c < rg.High && c != '\ufffd' {
				continue next
			}
		}
		return false
	}
	return true
}

// drawBitmap centers word on img with the 7x13 bitmap face.
func drawBitmap(img *image.Gray, word string) {
	face := basicfont.Face7x13
	b := img.Bounds()
	bounds, _ := font.BoundString(face, word)
	textW := (bounds.Max.X - bounds.Min.X).Ceil()
	textH := (bounds.Max.Y - bounds.Min.Y).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P((b.Dx()-textW)/2-bounds.Min.X.Floor(), (b.Dy()-textH)/2-bounds.Min.Y.Floor()),
	}
	d.DrawString(word)
}
