// Package main implements the wordsynth command, which generates labeled
// word-image corpora for text recognition training and exports their labels.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	rootpkg "tools.zach/dev/wordsynth"
	"tools.zach/dev/wordsynth/internal/config"
	"tools.zach/dev/wordsynth/internal/export"
	"tools.zach/dev/wordsynth/internal/logger"
	"tools.zach/dev/wordsynth/internal/orchestrate"
	"tools.zach/dev/wordsynth/internal/paths"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitCanceled = 130
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - go build: -ldflags "-X main.version=0.1.0"
//
// Without ldflags resolveVersion falls back to the embedded VCS info.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Run Lock
// ///////////////////////////////////////////////

// lockToken generates a random 16-character hex token proving ownership of
// the lock file, so [releaseLock] only deletes a file this run wrote.
func lockToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// acquireLock opens the lock file, takes an exclusive advisory lock and
// writes "PID:TOKEN". The handle must stay open for the whole run.
func acquireLock(dir WorkPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(dir.Lock(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		pid := "unknown"
		if data, readErr := os.ReadFile(dir.Lock()); readErr == nil {
			if p, _, ok := strings.Cut(string(data), ":"); ok {
				pid = p
			}
		}
		return nil, fmt.Errorf("another run is using %s (pid %s): %w", dir.Root, pid, err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d:%s", os.Getpid(), token); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return f, nil
}

// releaseLock unlocks and closes f, then removes the lock file if it still
// carries token.
func releaseLock(dir WorkPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(dir.Lock())
	if err != nil {
		return
	}
	if _, tok, ok := strings.Cut(string(data), ":"); ok && tok == token {
		os.Remove(dir.Lock())
	}
}

// ///////////////////////////////////////////////
// Setup
// ///////////////////////////////////////////////

// commonFlags are shared by the generate and export subcommands.
type commonFlags struct {
	workDir    string
	configPath string
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.workDir, "work-dir", ".", "Work directory holding fonts, words, outputs and logs")
	fs.StringVar(&c.configPath, "config", "", "Config file (default <work-dir>/"+paths.ConfigFile+")")
}

// loadConfig seeds the default config on first use and loads it, or loads
// the explicit --config file.
func (c *commonFlags) loadConfig(stderr io.Writer) (WorkPaths, *config.Config, error) {
	dir := WorkPaths{Root: c.workDir}
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		return dir, nil, fmt.Errorf("create work dir: %w", err)
	}
	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); err != nil {
			return dir, nil, err
		}
		cfg, err := config.LoadFile(c.configPath)
		return dir, cfg, err
	}
	if _, err := os.Stat(dir.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dir.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}
	cfg, err := config.Load(dir.Root)
	return dir, cfg, err
}

// setupLogger points the default slog logger at the rotating run log.
func setupLogger(dir WorkPaths, cfg *config.Config) (io.Closer, error) {
	log, closer, err := logger.NewLogger(dir.Log(), logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(log)
	return closer, nil
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

const usage = `Usage:
  wordsynth generate [--work-dir D] [--config F] <dataset-size> <workers> <data-dir>
  wordsynth export [--work-dir D] [--config F] [--out FILE] [base-dir]
  wordsynth version
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "generate":
		return runGenerate(args[1:], stdout, stderr)
	case "export":
		return runExport(args[1:], stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "%s %s\n", paths.BinaryName, resolveVersion())
		return exitOK
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// parseGenerateArgs converts the three positional arguments.
func parseGenerateArgs(pos []string) (orchestrate.Args, error) {
	if len(pos) != 3 {
		return orchestrate.Args{}, fmt.Errorf("%w: expected <dataset-size> <workers> <data-dir>, got %d arguments", orchestrate.ErrInvalidArgs, len(pos))
	}
	size, err := strconv.Atoi(pos[0])
	if err != nil {
		return orchestrate.Args{}, fmt.Errorf("%w: dataset size %q is not an integer", orchestrate.ErrInvalidArgs, pos[0])
	}
	workers, err := strconv.Atoi(pos[1])
	if err != nil {
		return orchestrate.Args{}, fmt.Errorf("%w: worker count %q is not an integer", orchestrate.ErrInvalidArgs, pos[1])
	}
	args := orchestrate.Args{DatasetSize: size, Workers: workers, DataDir: pos[2]}
	return args, args.Validate()
}

func runGenerate(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(argv); err != nil {
		return exitUsage
	}
	args, err := parseGenerateArgs(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
		return exitUsage
	}

	dir, cfg, err := common.loadConfig(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return exitError
	}
	logCloser, err := setupLogger(dir, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: init logger: %v\n", err)
		return exitError
	}
	defer logCloser.Close()

	token := lockToken()
	lock, err := acquireLock(dir, token)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return exitError
	}
	defer releaseLock(dir, token, lock)

	slog.Info("wordsynth starting",
		"version", resolveVersion(),
		"work_dir", dir.Root,
		"dataset_size", args.DatasetSize,
		"workers", args.Workers,
		"data_dir", args.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-signalChannel():
			slog.Info("received shutdown signal")
			fmt.Fprintln(stderr, "\ninterrupted, waiting for workers to save their results")
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, err := orchestrate.Run(ctx, cfg, dir, args, stderr)
	if rep != nil {
		rep.WriteSummary(stdout)
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		return exitCanceled
	case errors.Is(err, orchestrate.ErrInvalidArgs):
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	default:
		slog.Error("generation failed", "error", err)
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return exitError
	}
}

func runExport(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	common.register(fs)
	out := fs.String("out", "", "CSV file (default export.file from the config)")
	if err := fs.Parse(argv); err != nil {
		return exitUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	dir, cfg, err := common.loadConfig(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: load config: %v\n", err)
		return exitError
	}
	logCloser, err := setupLogger(dir, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "fatal: init logger: %v\n", err)
		return exitError
	}
	defer logCloser.Close()

	opts := export.Options{StripPrefix: cfg.Export.StripPrefix, BaseDir: cfg.Export.BaseDir}
	if fs.NArg() == 1 {
		opts.BaseDir = fs.Arg(0)
	}
	target := cfg.Export.File
	if *out != "" {
		target = *out
	}

	n, err := export.Export(dir.Results(cfg.Output.ResultsDir), dir.Resolve(target), opts)
	if err != nil {
		slog.Warn("export incomplete", "error", err)
		fmt.Fprintf(stderr, "warning: %v\n", err)
		if n == 0 {
			return exitError
		}
	}
	fmt.Fprintf(stdout, "Total files: %d\n", n)
	return exitOK
}
