// Package export flattens the per-worker result files into one CSV of
// img_path,text rows sorted by label.
package export

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"tools.zach/dev/wordsynth/internal/atomicfile"
	"tools.zach/dev/wordsynth/internal/generate"
)

// Header is the first CSV row.
var Header = []string{"img_path", "text"}

// Options controls how image paths are rewritten.
type Options struct {
	// StripPrefix is removed from the start of each image path when present.
	StripPrefix string
	// BaseDir is joined in front of each path. Empty leaves paths relative.
	BaseDir string
}

// Row is one labeled image.
type Row struct {
	Path string
	Text string
}

// Rows reads every result file in resultsDir and returns the rewritten rows
// sorted by label, then path. Unreadable result files are skipped and
// reported in the returned error alongside the rows that could be read.
func Rows(resultsDir string, opts Options) ([]Row, error) {
	results, err := generate.ReadResults(resultsDir)
	if err != nil {
		slog.Warn("skipping unreadable result files", "error", err)
	}
	var rows []Row
	for _, r := range results {
		for p, label := range r.Entries {
			rows = append(rows, Row{Path: rewrite(p, opts), Text: cleanLabel(label)})
		}
	}
	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Or(strings.Compare(a.Text, b.Text), strings.Compare(a.Path, b.Path))
	})
	return rows, err
}

// Write writes rows as CSV with the header.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Path, r.Text}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the CSV for resultsDir to out atomically and returns the
// number of rows. A partially readable results directory still produces a
// file; the read error is returned with the count.
func Export(resultsDir, out string, opts Options) (int, error) {
	rows, readErr := Rows(resultsDir, opts)
	err := atomicfile.WriteFunc(out, 0o644, func(w io.Writer) error {
		return Write(w, rows)
	})
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", filepath.Base(out), err)
	}
	return len(rows), readErr
}

func rewrite(p string, opts Options) string {
	if opts.StripPrefix != "" {
		p = strings.TrimPrefix(p, filepath.ToSlash(opts.StripPrefix))
	}
	if opts.BaseDir == "" {
		return p
	}
	return path.Join(filepath.ToSlash(opts.BaseDir), p)
}

// cleanLabel drops trailing spaces and underscores.
func cleanLabel(s string) string {
	return strings.TrimRight(s, " _")
}
