package render

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"

	xdraw "golang.org/x/image/draw"
)

var backgroundExts = []string{".png", ".jpg", ".jpeg"}

// LoadBackgrounds decodes every PNG and JPEG file directly under dir into a
// grayscale image. Files that fail to decode are skipped with a warning. An
// empty dir yields no backgrounds.
func LoadBackgrounds(dir string) ([]*image.Gray, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read backgrounds: %w", err)
	}
	var out []*image.Gray
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(backgroundExts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		img, err := decodeGray(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping background", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, img)
	}
	return out, nil
}

func decodeGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(g, g.Bounds(), img, b.Min, xdraw.Src)
	return g, nil
}

// cropBackground returns a w x h window of a random background. A background
// smaller than the window is stretched to it first. With no backgrounds the
// window is plain white.
func cropBackground(backgrounds []*image.Gray, w, h int, rng *rand.Rand) (*image.Gray, error) {
	if w <= 0 || h <= 0 {
		return nil, errorf(CodeBackground, fmt.Sprintf("window %dx%d", w, h), nil)
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if len(backgrounds) == 0 {
		fill(dst, 0xff)
		return dst, nil
	}
	bg := backgrounds[rng.IntN(len(backgrounds))]
	b := bg.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, errorf(CodeBackground, "empty background image", nil)
	}
	if b.Dx() < w || b.Dy() < h {
		bg = scale(bg, max(w, b.Dx()), max(h, b.Dy()))
		b = bg.Bounds()
	}
	left := b.Min.X + rng.IntN(b.Dx()-w+1)
	top := b.Min.Y + rng.IntN(b.Dy()-h+1)
	xdraw.Copy(dst, image.Point{}, bg, image.Rect(left, top, left+w, top+h), xdraw.Src, nil)
	return dst, nil
}
