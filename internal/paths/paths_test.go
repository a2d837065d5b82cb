package paths

import (
	"path/filepath"
	"testing"
)

// ///////////////////////////////////////////////
// Constant Value Tests
// ///////////////////////////////////////////////

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigFile", ConfigFile, "wordsynth.toml"},
		{"LogFile", LogFile, "wordsynth.log"},
		{"LockFile", LockFile, "wordsynth.lock"},
		{"LogsDir", LogsDir, "logs"},
		{"SelectedWordsFile", SelectedWordsFile, "selected_words.txt"},
		{"SelectedFontsFile", SelectedFontsFile, "selected_fonts.txt"},
		{"FailedFontsFile", FailedFontsFile, "failed_fonts.txt"},
		{"FailedGenerationFile", FailedGenerationFile, "failed_fonts_generation.txt"},
		{"BinaryName", BinaryName, "wordsynth"},
		{"WorkerLogFile", WorkerLogFile(7), "worker_7.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// WorkDir Method Tests
// ///////////////////////////////////////////////

func TestWorkDirMethods(t *testing.T) {
	root := filepath.Join("home", "user", "corpus")
	d := WorkDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Config", d.Config(), filepath.Join(root, "wordsynth.toml")},
		{"Log", d.Log(), filepath.Join(root, "wordsynth.log")},
		{"Lock", d.Lock(), filepath.Join(root, "wordsynth.lock")},
		{"Logs", d.Logs(), filepath.Join(root, "logs")},
		{"WorkerLog", d.WorkerLog(2), filepath.Join(root, "logs", "worker_2.log")},
		{"WordsCache", d.WordsCache(), filepath.Join(root, "words-cache.json")},
		{"SelectedWords", d.SelectedWords(), filepath.Join(root, "selected_words.txt")},
		{"SelectedFonts", d.SelectedFonts(), filepath.Join(root, "selected_fonts.txt")},
		{"FailedFonts", d.FailedFonts(), filepath.Join(root, "failed_fonts.txt")},
		{"FailedGeneration", d.FailedGeneration(), filepath.Join(root, "failed_fonts_generation.txt")},
		{"Images", d.Images("word_images", "train"), filepath.Join(root, "word_images", "train")},
		{"Results", d.Results("word_dict"), filepath.Join(root, "word_dict")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestWorkDirEmptyRoot(t *testing.T) {
	d := WorkDir{Root: ""}

	// With an empty root, methods should return just the filename.
	if got := d.Config(); got != ConfigFile {
		t.Errorf("Config() with empty root = %q, want %q", got, ConfigFile)
	}
	if got := d.Lock(); got != LockFile {
		t.Errorf("Lock() with empty root = %q, want %q", got, LockFile)
	}
}

func TestResolve(t *testing.T) {
	root := filepath.Join("srv", "corpus")
	d := WorkDir{Root: root}
	abs, err := filepath.Abs(filepath.Join("elsewhere", "fonts"))
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"relative", "fonts", filepath.Join(root, "fonts")},
		{"absolute", abs, abs},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Resolve(tt.in); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
