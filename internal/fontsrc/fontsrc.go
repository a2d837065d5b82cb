// Package fontsrc discovers candidate font files on disk, deduplicates them
// by base identity, and loads their bytes as SFNT data.
package fontsrc

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tdewolff/font"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Font is a candidate font file.
type Font struct {
	// Path is the file location on disk.
	Path string
	// Base is the lower-cased file name without extension, the identity
	// shared by the .ttf/.otf/.woff variants of one family member.
	Base string
	// Ext is the lower-cased extension including the dot.
	Ext string
}

// New builds a Font for path.
func New(p string) Font {
	name := filepath.Base(p)
	ext := strings.ToLower(filepath.Ext(name))
	return Font{Path: p, Base: strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name))), Ext: ext}
}

// FileName returns the font's file name, the form used in audit files.
func (f Font) FileName() string { return filepath.Base(f.Path) }

// Options controls discovery.
type Options struct {
	// Include lists doublestar patterns matched against lower-cased paths
	// relative to the root, using forward slashes.
	Include []string
	// Exclude lists patterns removed after inclusion.
	Exclude []string
	// NameFilter keeps only files whose lower-cased name contains it.
	NameFilter string
	// Skip holds file names (any case) to leave out, such as fonts that
	// failed an earlier run.
	Skip map[string]bool
}

// extRank orders variants of one base identity; lower wins.
var extRank = map[string]int{".ttf": 0, ".otf": 1, ".woff2": 2, ".woff": 3}

// ///////////////////////////////////////////////
// Discovery
// ///////////////////////////////////////////////

// Discover walks root and returns one Font per base identity, sorted by path.
func Discover(root string, opts Options) ([]Font, error) {
	for _, p := range append(slices.Clone(opts.Include), opts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid font pattern %q", p)
		}
	}
	filter := strings.ToLower(opts.NameFilter)

	best := map[string]Font{}
	err := fs.WalkDir(os.DirFS(root), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(rel)
		if _, ok := extRank[path.Ext(lower)]; !ok {
			return nil
		}
		if !matchAny(opts.Include, lower) || matchAny(opts.Exclude, lower) {
			return nil
		}
		if filter != "" && !strings.Contains(path.Base(lower), filter) {
			return nil
		}
		if opts.Skip[path.Base(lower)] {
			return nil
		}

		f := New(filepath.Join(root, filepath.FromSlash(rel)))
		if cur, ok := best[f.Base]; !ok || prefer(f, cur) {
			best[f.Base] = f
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk font dir: %w", err)
	}

	out := make([]Font, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b Font) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// prefer reports whether a should replace b for the same base identity.
func prefer(a, b Font) bool {
	if ra, rb := extRank[a.Ext], extRank[b.Ext]; ra != rb {
		return ra < rb
	}
	return a.Path < b.Path
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// ///////////////////////////////////////////////
// Exclusion Lists
// ///////////////////////////////////////////////

// ReadExclusions reads font file names, one per line, from each file.
// Missing files are ignored. Names are lower-cased.
func ReadExclusions(files ...string) (map[string]bool, error) {
	skip := map[string]bool{}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("open exclusion list: %w", err)
		}
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			skip[strings.ToLower(filepath.Base(line))] = true
		}
		err = sc.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read exclusion list %s: %w", name, err)
		}
	}
	return skip, nil
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Load reads the font file, converting WOFF and WOFF2 containers to SFNT.
func Load(f Font) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if !isWOFF(f.Path, data) {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("convert %s to sfnt: %w", f.Ext, err)
	}
	return sfnt, nil
}

// isWOFF checks for a WOFF or WOFF2 container by extension or magic bytes
// ("wOFF" / "wOF2").
func isWOFF(p string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".woff", ".woff2":
		return true
	}
	return len(data) >= 4 && data[0] == 'w' && data[1] == 'O' && data[2] == 'F' && (data[3] == 'F' || data[3] == '2')
}
