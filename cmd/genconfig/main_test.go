package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/wordsynth/internal/config"
)

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

func TestParseSectionPath(t *testing.T) {
	got := parseSectionPath("render.backgrounds")
	if len(got) != 2 || got[0] != "render" || got[1] != "backgrounds" {
		t.Errorf("parseSectionPath = %q, want [render backgrounds]", got)
	}
}

func TestSectionName(t *testing.T) {
	tests := []struct {
		section string
		want    string
	}{
		{"generation", "Generation"},
		{"render.smoke", "Smoke"},
		{"Log", "Log"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sectionName(tt.section); got != tt.want {
			t.Errorf("sectionName(%q) = %q, want %q", tt.section, got, tt.want)
		}
	}
}

func TestInjectOmittedNoSection(t *testing.T) {
	var out []string
	injectOmitted(&out, nil, map[string]bool{}, config.ConfigDocs)
	if len(out) != 0 {
		t.Errorf("injectOmitted with nil sectionStack produced %d lines, want 0", len(out))
	}
}

// ///////////////////////////////////////////////
// generate
// ///////////////////////////////////////////////

func TestGenerateParsesBackToDefaults(t *testing.T) {
	out, err := generate(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got := config.DefaultConfig()
	got.Render.FontSize = 0
	if _, err := toml.Decode(out, got); err != nil {
		t.Fatalf("generated TOML does not parse: %v\n%s", err, out)
	}
	if got.Render.FontSize != 80 {
		t.Errorf("font_size = %d, want 80", got.Render.FontSize)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("generated config fails validation: %v", err)
	}

	for _, want := range []string{
		"# ///// Generation /////",
		"# Target alphabet.",
		`# url = "https://example.com/words.json"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("generated config missing %q", want)
		}
	}
}

func TestCommittedDefaultIsCurrent(t *testing.T) {
	committed, err := os.ReadFile(filepath.Join("..", "..", "config.default.toml"))
	if err != nil {
		t.Fatalf("read config.default.toml: %v", err)
	}
	var cfg config.Config
	if _, err := toml.Decode(string(committed), &cfg); err != nil {
		t.Fatalf("config.default.toml does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config.default.toml fails validation: %v", err)
	}
}
