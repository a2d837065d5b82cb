// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, migration), validation ([Config.Validate]),
// serialization round-trips ([Config.Save]), and [ConfigDocs] completeness.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/wordsynth/internal/paths"
)

// writeConfig writes content to dir/wordsynth.toml.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 1\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Generation.MaxAttempts != def.Generation.MaxAttempts {
					t.Errorf("MaxAttempts = %d, want %d", cfg.Generation.MaxAttempts, def.Generation.MaxAttempts)
				}
				if cfg.Render.MaxWidth != 2304 {
					t.Errorf("MaxWidth = %d, want 2304", cfg.Render.MaxWidth)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 1

[generation]
seed = 7
max_fallback_attempts = 5

[script]
name = "latin"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Generation.Seed != 7 {
					t.Errorf("Seed = %d, want 7", cfg.Generation.Seed)
				}
				if cfg.Generation.MaxFallbackAttempts != 5 {
					t.Errorf("MaxFallbackAttempts = %d, want 5", cfg.Generation.MaxFallbackAttempts)
				}
				if cfg.Script.Name != "latin" {
					t.Errorf("Script.Name = %q, want latin", cfg.Script.Name)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
version = 1

[render]
blur_chance = 0.0
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Render.BlurChance != 0 {
					t.Errorf("BlurChance = %g, want 0", cfg.Render.BlurChance)
				}
				if cfg.Render.DistortChance != 0.05 {
					t.Errorf("DistortChance = %g, want default 0.05", cfg.Render.DistortChance)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Version != DefaultConfig().Version {
					t.Errorf("Version = %d, want %d", cfg.Version, DefaultConfig().Version)
				}
			},
		},
		{
			name:    "malformed TOML returns error",
			config:  "this is not valid toml [[[",
			wantErr: true,
		},
		{
			name: "invalid value rejected by validation",
			config: `
version = 1

[words]
source = "ftp"
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && cfg != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.RenderTimeout(); got != 30*time.Second {
		t.Errorf("RenderTimeout() = %v, want 30s", got)
	}
	if got := cfg.ProgressInterval(); got != 500*time.Millisecond {
		t.Errorf("ProgressInterval() = %v, want 500ms", got)
	}
	cfg.Generation.RenderTimeoutSeconds = 0
	if got := cfg.RenderTimeout(); got != 0 {
		t.Errorf("RenderTimeout() with 0 seconds = %v, want 0", got)
	}
}

// ///////////////////////////////////////////////
// Migration integration
// ///////////////////////////////////////////////

func TestLoad_Migration(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[generation]\nseed = 9\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Generation.Seed != 9 {
		t.Errorf("Seed = %d, want 9", cfg.Generation.Seed)
	}
}

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"reads version from TOML", "version = 3\n[script]\nname = \"latin\"\n", 3},
		{"missing version returns 1", "[script]\nname = \"latin\"\n", 1},
		{"malformed returns 1", "[[[", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekVersion([]byte(tt.data)); got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ConfigDocs completeness
// ///////////////////////////////////////////////

func TestConfigDocsComplete(t *testing.T) {
	fields := collectTOMLFields(reflect.TypeOf(Config{}), "")
	for _, field := range fields {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
	known := map[string]bool{}
	for _, f := range fields {
		known[f] = true
	}
	for key := range ConfigDocs {
		if !known[key] {
			t.Errorf("ConfigDocs has entry %q for a field that does not exist", key)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), paths.ConfigFile)

	orig := DefaultConfig()
	orig.Generation.Seed = 1234
	orig.Fonts.NameFilter = "naskh"
	orig.Render.Backgrounds = ""

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(orig, loaded) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, orig)
	}
}

func TestExampleConfigEncodes(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(ExampleConfig()); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "version") > strings.Index(out, "[generation]") {
		t.Error("expected version before [generation] in marshaled output")
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{"default config passes", func(cfg *Config) {}, false},
		{"zero max_attempts", func(cfg *Config) { cfg.Generation.MaxAttempts = 0 }, true},
		{"zero fallback attempts allowed", func(cfg *Config) { cfg.Generation.MaxFallbackAttempts = 0 }, false},
		{"negative timeout", func(cfg *Config) { cfg.Generation.RenderTimeoutSeconds = -1 }, true},
		{"zero probe words", func(cfg *Config) { cfg.Generation.ReplacementProbeWords = 0 }, true},
		{"unknown script", func(cfg *Config) { cfg.Script.Name = "cyrillic" }, true},
		{"latin script", func(cfg *Config) { cfg.Script.Name = "latin" }, false},
		{"empty include", func(cfg *Config) { cfg.Fonts.Include = nil }, true},
		{"bad glob", func(cfg *Config) { cfg.Fonts.Exclude = []string{"[unclosed"} }, true},
		{"url source without url", func(cfg *Config) { cfg.Words.Source = "url" }, true},
		{"url source with url", func(cfg *Config) {
			cfg.Words.Source = "url"
			cfg.Words.URL = "https://example.com/words.json"
		}, false},
		{"zero image height", func(cfg *Config) { cfg.Render.ImageHeight = 0 }, true},
		{"blur chance above one", func(cfg *Config) { cfg.Render.BlurChance = 1.5 }, true},
		{"negative distort chance", func(cfg *Config) { cfg.Render.DistortChance = -0.1 }, true},
		{"jpeg quality zero", func(cfg *Config) { cfg.Render.JPEGQuality = 0 }, true},
		{"same output dirs", func(cfg *Config) { cfg.Output.ResultsDir = cfg.Output.ImagesDir }, true},
		{"zero progress interval", func(cfg *Config) { cfg.Progress.IntervalMS = 0 }, true},
		{"invalid log.level", func(cfg *Config) { cfg.Log.Level = "verbose" }, true},
		{"empty export file", func(cfg *Config) { cfg.Export.File = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
