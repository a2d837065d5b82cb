package orchestrate

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/paths"
)

// FontShortfall is a font with fewer images on disk than scheduled.
type FontShortfall struct {
	Font     string
	Expected int
	Actual   int
}

// ImageName is a parsed image file name: <base>_<worker>_<index>_<token>.jpg.
type ImageName struct {
	Base   string
	Worker int
	Index  int
	Token  string
}

// ParseImageName splits name from the right, so font bases that contain
// underscores parse correctly.
func ParseImageName(name string) (ImageName, bool) {
	stem, ok := strings.CutSuffix(name, paths.ImageExt)
	if !ok {
		return ImageName{}, false
	}
	parts := strings.Split(stem, "_")
	if len(parts) < 4 {
		return ImageName{}, false
	}
	n := len(parts)
	worker, err := strconv.Atoi(parts[n-3])
	if err != nil || worker < 0 {
		return ImageName{}, false
	}
	index, err := strconv.Atoi(parts[n-2])
	if err != nil || index < 1 {
		return ImageName{}, false
	}
	token := parts[n-1]
	if token == "" || strings.Trim(token, "0123456789abcdef") != "" {
		return ImageName{}, false
	}
	base := strings.Join(parts[:n-3], "_")
	if base == "" {
		return ImageName{}, false
	}
	return ImageName{Base: base, Worker: worker, Index: index, Token: token}, true
}

// Reconcile counts the images in dir per font identity and returns, sorted
// by font file name, every font with fewer than perFont images, plus the
// total number of well-formed images.
func Reconcile(dir string, fonts []fontsrc.Font, perFont int) ([]FontShortfall, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read images dir: %w", err)
	}
	counts := map[string]int{}
	total := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := ParseImageName(e.Name())
		if !ok {
			continue
		}
		counts[n.Base]++
		total++
	}

	var out []FontShortfall
	for _, f := range fonts {
		if got := counts[f.Base]; got < perFont {
			out = append(out, FontShortfall{Font: f.FileName(), Expected: perFont, Actual: got})
		}
	}
	slices.SortFunc(out, func(a, b FontShortfall) int { return strings.Compare(a.Font, b.Font) })
	return out, total, nil
}
