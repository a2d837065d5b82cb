package generate

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"tools.zach/dev/wordsynth/internal/atomicfile"
	"tools.zach/dev/wordsynth/internal/migrate"
	"tools.zach/dev/wordsynth/internal/paths"
)

// ResultVersion is the schema version written to shard result files.
const ResultVersion = 2

// Failure is an item that produced no image.
type Failure struct {
	Word   string `json:"word"`
	Font   string `json:"font"`
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Stats summarizes a worker's run.
type Stats struct {
	Items        int `json:"items"`
	Rendered     int `json:"rendered"`
	Placeholders int `json:"placeholders"`
	Failed       int `json:"failed"`
	SaveErrors   int `json:"save_errors"`
	Recovered    int `json:"recovered"`
	Fallbacks    int `json:"fallbacks"`
	Renders      int `json:"renders"`
	// Skipped counts items left unprocessed after cancellation or a crash.
	Skipped int `json:"skipped"`
}

// ShardResult is one worker's private result set, persisted exactly once.
type ShardResult struct {
	Version int   `json:"version"`
	Worker  int   `json:"worker"`
	Seed    int64 `json:"seed"`
	// Entries maps image path to the label drawn in it.
	Entries     map[string]string `json:"entries"`
	Failures    []Failure         `json:"failures,omitempty"`
	FailedFonts []string          `json:"failed_fonts,omitempty"`
	Stats       Stats             `json:"stats"`
	Crashed     bool              `json:"crashed,omitempty"`
	Canceled    bool              `json:"canceled,omitempty"`
	Error       string            `json:"error,omitempty"`

	// Path is where the result was saved or read from.
	Path string `json:"-"`
}

// newToken returns 32 random hex characters.
func newToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Save writes the result to dir under a random name and records the path.
func (r *ShardResult) Save(dir, token string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	path := filepath.Join(dir, token+paths.ResultExt)
	if err := atomicfile.WriteJSON(path, r, 0o644); err != nil {
		return err
	}
	r.Path = path
	return nil
}

// ReadResult loads one result file, upgrading older layouts.
func ReadResult(path string) (*ShardResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	version, err := migrate.PeekShardVersion(data)
	if err != nil {
		return nil, err
	}
	if version > migrate.Shard.CurrentVersion {
		return nil, fmt.Errorf("%s: result version %d is newer than supported %d", filepath.Base(path), version, migrate.Shard.CurrentVersion)
	}
	if migrate.Shard.NeedsMigration(version) {
		if data, version, err = migrate.Shard.Run(data, version); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	var r ShardResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: decode result: %w", filepath.Base(path), err)
	}
	r.Version = version
	if r.Entries == nil {
		r.Entries = map[string]string{}
	}
	r.Path = path
	return &r, nil
}

// ReadResults loads every result file in dir in name order. Unreadable
// files are reported in the joined error while the rest are still returned.
func ReadResults(dir string) ([]*ShardResult, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+paths.ResultExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	var (
		out  []*ShardResult
		errs []error
	)
	for _, m := range matches {
		r, err := ReadResult(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// Merge returns the union of all entries and the sorted, deduplicated list
// of failed fonts.
func Merge(results []*ShardResult) (map[string]string, []string) {
	entries := map[string]string{}
	var failed []string
	for _, r := range results {
		for p, label := range r.Entries {
			entries[p] = label
		}
		failed = append(failed, r.FailedFonts...)
	}
	slices.Sort(failed)
	return entries, slices.Compact(failed)
}
