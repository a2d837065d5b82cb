// Package config provides configuration loading and defaults for the
// wordsynth generator.
//
// Configuration is loaded from a TOML file in the work directory. Every
// tunable the pipeline reads (retry caps, render sizes, probabilities,
// directory names) lives here and is handed to components as plain values.
package config

//go:generate go run ../../cmd/genconfig

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/wordsynth/internal/atomicfile"
	"tools.zach/dev/wordsynth/internal/migrate"
	"tools.zach/dev/wordsynth/internal/paths"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Generation holds seeding and retry settings.
	Generation GenerationConfig `toml:"generation"`
	// Script selects the target alphabet.
	Script ScriptConfig `toml:"script"`
	// Fonts holds font discovery settings.
	Fonts FontsConfig `toml:"fonts"`
	// Words holds word list source settings.
	Words WordsConfig `toml:"words"`
	// Render holds rendering and image settings.
	Render RenderConfig `toml:"render"`
	// Output holds output directory names.
	Output OutputConfig `toml:"output"`
	// Progress holds progress display settings.
	Progress ProgressConfig `toml:"progress"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
	// Export holds CSV label export settings.
	Export ExportConfig `toml:"export"`
}

// GenerationConfig holds seeding and retry settings.
type GenerationConfig struct {
	// Seed is the base seed. Worker i is seeded with Seed+i.
	Seed int64 `toml:"seed"`
	// MaxAttempts caps primary render attempts per item.
	MaxAttempts int `toml:"max_attempts"`
	// MaxFallbackAttempts caps fallback-word render attempts per item.
	MaxFallbackAttempts int `toml:"max_fallback_attempts"`
	// RenderTimeoutSeconds bounds a single render call (0 disables the deadline).
	RenderTimeoutSeconds int `toml:"render_timeout_seconds"`
	// ReplacementProbeWords is the number of words a replacement font must cover.
	ReplacementProbeWords int `toml:"replacement_probe_words"`
}

// ScriptConfig selects the target alphabet.
type ScriptConfig struct {
	// Name is the script: "arabic" or "latin".
	Name string `toml:"name"`
	// PlaceholderWords overrides the script's canned placeholder words.
	PlaceholderWords []string `toml:"placeholder_words,omitempty"`
}

// FontsConfig holds font discovery settings.
type FontsConfig struct {
	// Dir is the root of the font tree.
	Dir string `toml:"dir"`
	// Include lists doublestar patterns matched against lower-cased relative paths.
	Include []string `toml:"include"`
	// Exclude lists doublestar patterns that remove fonts after inclusion.
	Exclude []string `toml:"exclude"`
	// NameFilter, when set, keeps only files whose name contains it.
	NameFilter string `toml:"name_filter,omitempty"`
	// ExcludeFailed drops fonts listed in failed_fonts.txt and the last
	// generation's failure report.
	ExcludeFailed bool `toml:"exclude_failed"`
}

// WordsConfig holds word list source settings.
type WordsConfig struct {
	// Source is "file" or "url".
	Source string `toml:"source"`
	// File is a newline-separated list or a JSON array of words.
	File string `toml:"file"`
	// URL is fetched when Source is "url"; the last good copy is cached.
	URL string `toml:"url,omitempty"`
}

// RenderConfig holds rendering and image settings.
type RenderConfig struct {
	// FontSize is the pixel size used for corpus rendering.
	FontSize int `toml:"font_size"`
	// ImageHeight is the final image height in pixels.
	ImageHeight int `toml:"image_height"`
	// RenderHeightScale multiplies ImageHeight for the intermediate render.
	RenderHeightScale int `toml:"render_height_scale"`
	// MaxWidth caps the final image width in pixels.
	MaxWidth int `toml:"max_width"`
	// DistortChance is the probability of a geometric distortion.
	DistortChance float64 `toml:"distort_chance"`
	// BlurChance is the probability of a gaussian blur.
	BlurChance float64 `toml:"blur_chance"`
	// SmokeFontSize is the font size of the admissibility smoke test.
	SmokeFontSize int `toml:"smoke_font_size"`
	// SmokeHeight is the render height of the admissibility smoke test.
	SmokeHeight int `toml:"smoke_height"`
	// Backgrounds is a directory of PNG/JPEG backgrounds (empty means plain white).
	Backgrounds string `toml:"backgrounds"`
	// JPEGQuality is the output JPEG quality (1-100).
	JPEGQuality int `toml:"jpeg_quality"`
}

// OutputConfig holds output directory names, relative to the work directory.
type OutputConfig struct {
	// ImagesDir is the parent of the per-run image directory.
	ImagesDir string `toml:"images_dir"`
	// ResultsDir holds one result file per worker.
	ResultsDir string `toml:"results_dir"`
}

// ProgressConfig holds progress display settings.
type ProgressConfig struct {
	// IntervalMS is how often the orchestrator samples the progress counter.
	IntervalMS int `toml:"interval_ms"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ExportConfig holds CSV label export settings.
type ExportConfig struct {
	// File is the CSV output path.
	File string `toml:"file"`
	// StripPrefix is removed from image paths before writing.
	StripPrefix string `toml:"strip_prefix"`
	// BaseDir is joined in front of each stripped path.
	BaseDir string `toml:"base_dir,omitempty"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with the production defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: migrate.Config.CurrentVersion,
		Generation: GenerationConfig{
			Seed:                  42,
			MaxAttempts:           3,
			MaxFallbackAttempts:   3,
			RenderTimeoutSeconds:  30,
			ReplacementProbeWords: 2,
		},
		Script: ScriptConfig{
			Name: "arabic",
		},
		Fonts: FontsConfig{
			Dir:           "fonts",
			Include:       []string{"**/*.ttf", "**/*.otf", "**/*.woff", "**/*.woff2"},
			Exclude:       []string{"**/*condensed*"},
			ExcludeFailed: true,
		},
		Words: WordsConfig{
			Source: "file",
			File:   "words.txt",
		},
		Render: RenderConfig{
			FontSize:          80,
			ImageHeight:       64,
			RenderHeightScale: 5,
			MaxWidth:          2304,
			DistortChance:     0.05,
			BlurChance:        0.3,
			SmokeFontSize:     40,
			SmokeHeight:       64,
			Backgrounds:       "images",
			JPEGQuality:       75,
		},
		Output: OutputConfig{
			ImagesDir:  "word_images",
			ResultsDir: "word_dict",
		},
		Progress: ProgressConfig{
			IntervalMS: 500,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Export: ExportConfig{
			File:        "data.csv",
			StripPrefix: "test/dataset/",
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// RenderTimeout returns the per-render deadline, or 0 when disabled.
func (c *Config) RenderTimeout() time.Duration {
	return time.Duration(c.Generation.RenderTimeoutSeconds) * time.Second
}

// ProgressInterval returns the progress sampling interval.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Progress.IntervalMS) * time.Millisecond
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads the configuration from workDir/wordsynth.toml.
func Load(workDir string) (*Config, error) {
	return LoadFile(filepath.Join(workDir, paths.ConfigFile))
}

// LoadFile reads and parses the configuration file at path.
// If the file doesn't exist, returns DefaultConfig.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	shouldMigrate := migrate.Config.NeedsMigration(version)
	if shouldMigrate {
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		var migrateErr error
		data, _, migrateErr = migrate.Config.Run(data, version)
		if migrateErr != nil {
			return nil, fmt.Errorf("migrate config: %w", migrateErr)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = migrate.Config.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if shouldMigrate {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}

	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	g := c.Generation
	if g.MaxAttempts <= 0 {
		return fmt.Errorf("generation.max_attempts must be > 0, got %d", g.MaxAttempts)
	}
	if g.MaxFallbackAttempts < 0 {
		return fmt.Errorf("generation.max_fallback_attempts must be >= 0, got %d", g.MaxFallbackAttempts)
	}
	if g.RenderTimeoutSeconds < 0 {
		return fmt.Errorf("generation.render_timeout_seconds must be >= 0, got %d", g.RenderTimeoutSeconds)
	}
	if g.ReplacementProbeWords <= 0 {
		return fmt.Errorf("generation.replacement_probe_words must be > 0, got %d", g.ReplacementProbeWords)
	}

	switch c.Script.Name {
	case "arabic", "latin":
	default:
		return fmt.Errorf("invalid script.name %q: must be arabic or latin", c.Script.Name)
	}

	if c.Fonts.Dir == "" {
		return fmt.Errorf("fonts.dir must not be empty")
	}
	if len(c.Fonts.Include) == 0 {
		return fmt.Errorf("fonts.include must list at least one pattern")
	}
	for _, p := range append(append([]string{}, c.Fonts.Include...), c.Fonts.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid font glob pattern %q", p)
		}
	}

	switch c.Words.Source {
	case "file":
		if c.Words.File == "" {
			return fmt.Errorf("words.file must be set when words.source is file")
		}
	case "url":
		if c.Words.URL == "" {
			return fmt.Errorf("words.url must be set when words.source is url")
		}
	default:
		return fmt.Errorf("invalid words.source %q: must be file or url", c.Words.Source)
	}

	r := c.Render
	for name, v := range map[string]int{
		"render.font_size":           r.FontSize,
		"render.image_height":        r.ImageHeight,
		"render.render_height_scale": r.RenderHeightScale,
		"render.max_width":           r.MaxWidth,
		"render.smoke_font_size":     r.SmokeFontSize,
		"render.smoke_height":        r.SmokeHeight,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", name, v)
		}
	}
	if r.DistortChance < 0 || r.DistortChance > 1 {
		return fmt.Errorf("render.distort_chance must be within [0, 1], got %g", r.DistortChance)
	}
	if r.BlurChance < 0 || r.BlurChance > 1 {
		return fmt.Errorf("render.blur_chance must be within [0, 1], got %g", r.BlurChance)
	}
	if r.JPEGQuality < 1 || r.JPEGQuality > 100 {
		return fmt.Errorf("render.jpeg_quality must be within [1, 100], got %d", r.JPEGQuality)
	}

	if c.Output.ImagesDir == "" || c.Output.ResultsDir == "" {
		return fmt.Errorf("output.images_dir and output.results_dir must not be empty")
	}
	if filepath.Clean(c.Output.ImagesDir) == filepath.Clean(c.Output.ResultsDir) {
		return fmt.Errorf("output.images_dir and output.results_dir must differ")
	}

	if c.Progress.IntervalMS <= 0 {
		return fmt.Errorf("progress.interval_ms must be > 0, got %d", c.Progress.IntervalMS)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Export.File == "" {
		return fmt.Errorf("export.file must not be empty")
	}

	return nil
}
