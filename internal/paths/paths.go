// Package paths centralizes file and directory names used across the project.
// All work directory file names are defined here as the single source of truth.
package paths

import (
	"fmt"
	"path/filepath"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Work directory file names.
const (
	ConfigFile           = "wordsynth.toml"
	LogFile              = "wordsynth.log"
	LockFile             = "wordsynth.lock"
	LogsDir              = "logs"
	WordsCacheFile       = "words-cache.json"
	SelectedWordsFile    = "selected_words.txt"
	SelectedFontsFile    = "selected_fonts.txt"
	FailedFontsFile      = "failed_fonts.txt"
	FailedGenerationFile = "failed_fonts_generation.txt"
)

// Generated artifact naming.
const (
	BinaryName      = "wordsynth"
	WorkerLogPrefix = "worker_"
	WorkerLogExt    = ".log"
	ImageExt        = ".jpg"
	ResultExt       = ".json"
)

// WorkerLogFile returns the per-worker log file name.
// For example, WorkerLogFile(3) returns "worker_3.log".
func WorkerLogFile(worker int) string {
	return fmt.Sprintf("%s%d%s", WorkerLogPrefix, worker, WorkerLogExt)
}

// ///////////////////////////////////////////////
// WorkDir
// ///////////////////////////////////////////////

// WorkDir provides path construction methods rooted at a work directory.
type WorkDir struct {
	Root string
}

// Config returns the full path to the config file.
func (d WorkDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the orchestrator log file.
func (d WorkDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Lock returns the full path to the run lock file.
func (d WorkDir) Lock() string { return filepath.Join(d.Root, LockFile) }

// Logs returns the full path to the per-worker log directory.
func (d WorkDir) Logs() string { return filepath.Join(d.Root, LogsDir) }

// WorkerLog returns the full path to a worker's log file.
func (d WorkDir) WorkerLog(worker int) string {
	return filepath.Join(d.Root, LogsDir, WorkerLogFile(worker))
}

// WordsCache returns the full path to the remote word list cache.
func (d WorkDir) WordsCache() string { return filepath.Join(d.Root, WordsCacheFile) }

// SelectedWords returns the full path to the selected words audit file.
func (d WorkDir) SelectedWords() string { return filepath.Join(d.Root, SelectedWordsFile) }

// SelectedFonts returns the full path to the selected fonts audit file.
func (d WorkDir) SelectedFonts() string { return filepath.Join(d.Root, SelectedFontsFile) }

// FailedFonts returns the full path to the manually curated font exclusion list.
func (d WorkDir) FailedFonts() string { return filepath.Join(d.Root, FailedFontsFile) }

// FailedGeneration returns the full path to the fonts-failed-during-generation report.
func (d WorkDir) FailedGeneration() string { return filepath.Join(d.Root, FailedGenerationFile) }

// Images returns the per-run image directory: <root>/<imagesDir>/<dataDir>.
func (d WorkDir) Images(imagesDir, dataDir string) string {
	return filepath.Join(d.Root, imagesDir, dataDir)
}

// Results returns the shard result directory.
func (d WorkDir) Results(resultsDir string) string { return filepath.Join(d.Root, resultsDir) }

// Resolve joins p onto the work directory unless it is already absolute.
func (d WorkDir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Root, p)
}
