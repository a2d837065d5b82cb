// Package orchestrate runs one corpus generation: it validates the request,
// samples fonts and words, partitions the work, runs the workers, and
// reconciles what landed on disk against what was scheduled.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/wordsynth/internal/admit"
	"tools.zach/dev/wordsynth/internal/alphabet"
	"tools.zach/dev/wordsynth/internal/atomicfile"
	"tools.zach/dev/wordsynth/internal/config"
	"tools.zach/dev/wordsynth/internal/fontinfo"
	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/generate"
	"tools.zach/dev/wordsynth/internal/logger"
	"tools.zach/dev/wordsynth/internal/paths"
	"tools.zach/dev/wordsynth/internal/render"
	"tools.zach/dev/wordsynth/internal/sample"
	"tools.zach/dev/wordsynth/internal/shard"
	"tools.zach/dev/wordsynth/internal/watch"
	"tools.zach/dev/wordsynth/internal/wordsrc"
)

// ErrInvalidArgs is returned for a non-positive size or worker count or an
// empty data directory name.
var ErrInvalidArgs = errors.New("invalid arguments")

// crashTailLines is how much of a crashed worker's log the report carries.
const crashTailLines = 20

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Args are the per-run command line values.
type Args struct {
	// DatasetSize is K: K fonts and K words, K*K images.
	DatasetSize int
	Workers     int
	// DataDir names the image subdirectory of this run.
	DataDir string
}

// Validate checks the arguments before anything touches the disk.
func (a Args) Validate() error {
	switch {
	case a.DatasetSize < 1:
		return fmt.Errorf("%w: dataset size must be positive, got %d", ErrInvalidArgs, a.DatasetSize)
	case a.Workers < 1:
		return fmt.Errorf("%w: worker count must be positive, got %d", ErrInvalidArgs, a.Workers)
	case a.DataDir == "" || a.DataDir != filepath.Base(a.DataDir) || a.DataDir == "." || a.DataDir == "..":
		return fmt.Errorf("%w: data dir must be a plain directory name, got %q", ErrInvalidArgs, a.DataDir)
	}
	return nil
}

// WorkerCrash describes a worker that panicked.
type WorkerCrash struct {
	Worker int
	Error  string
	// LogTail is the end of the worker's log file, when readable.
	LogTail string
}

// Report summarizes a run. Shortfalls and crashes are reported here and
// never turn into a Run error.
type Report struct {
	Expected  int
	Generated int
	// Images counts well-formed image files found on disk.
	Images       int
	Shortfalls   []FontShortfall
	FailedFonts  []string
	Crashed      []WorkerCrash
	Rejected     []sample.Rejection
	Replacements []fontsrc.Font
	// MissingResults lists workers whose result file could not be read.
	MissingResults []int
	Stats          generate.Stats
	Canceled       bool
	Duration       time.Duration
}

// ///////////////////////////////////////////////
// Run
// ///////////////////////////////////////////////

// Run executes one generation into the work directory. Progress is drawn on
// out. Pool-size errors wrap [sample.ErrInsufficientWords] or
// [sample.ErrInsufficientFonts]. When ctx is canceled the workers stop
// between items and the partial report is returned with ctx's error.
func Run(ctx context.Context, cfg *config.Config, dir paths.WorkDir, args Args, out io.Writer) (*Report, error) {
	start := time.Now()
	if err := args.Validate(); err != nil {
		return nil, err
	}
	script, err := alphabet.Lookup(cfg.Script.Name)
	if err != nil {
		return nil, err
	}
	if len(cfg.Script.PlaceholderWords) > 0 {
		script = script.WithPlaceholders(cfg.Script.PlaceholderWords)
	}
	k := args.DatasetSize

	imagesDir := dir.Images(cfg.Output.ImagesDir, args.DataDir)
	resultsDir := dir.Results(cfg.Output.ResultsDir)
	if err := clean(imagesDir, resultsDir, dir.Logs()); err != nil {
		return nil, err
	}

	words, err := loadWords(ctx, cfg, dir, script)
	if err != nil {
		return nil, err
	}
	if len(words) < k {
		return nil, fmt.Errorf("%w: required %d, found %d", sample.ErrInsufficientWords, k, len(words))
	}
	fonts, err := discoverFonts(cfg, dir)
	if err != nil {
		return nil, err
	}
	if len(fonts) < k {
		return nil, fmt.Errorf("%w: required %d, found %d", sample.ErrInsufficientFonts, k, len(fonts))
	}
	slog.Info("pools loaded", "words", len(words), "fonts", len(fonts), "dataset_size", k, "workers", args.Workers)

	backgrounds, err := render.LoadBackgrounds(dir.Resolve(cfg.Render.Backgrounds))
	if err != nil {
		slog.Warn("backgrounds unavailable, using plain white", "error", err)
	}

	fontsInfo := fontinfo.NewIntrospector()
	checker := &admit.Checker{
		Script:   script,
		Fonts:    fontsInfo,
		Renderer: render.New(fontsInfo, script, backgrounds),
		Options: admit.Options{
			SmokeSize:   float64(cfg.Render.SmokeFontSize),
			SmokeHeight: cfg.Render.SmokeHeight,
		},
	}
	seed := uint64(cfg.Generation.Seed)
	sel, err := sample.Sample(ctx, sample.Pools{Fonts: fonts, Words: words}, k, rand.New(rand.NewPCG(seed, seed)),
		checker, sample.Options{ProbeWords: cfg.Generation.ReplacementProbeWords})
	if err != nil {
		return nil, fmt.Errorf("sample: %w", err)
	}
	if err := writeSelection(dir, sel); err != nil {
		return nil, err
	}

	shards, err := shard.Split(shard.Build(sel.Fonts, sel.Words), args.Workers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	rep := &Report{Expected: k * k, Rejected: sel.Rejected, Replacements: sel.Replacements}
	run := &runner{
		cfg:         cfg,
		dir:         dir,
		script:      script,
		words:       sel.Words,
		backgrounds: backgrounds,
		imagesDir:   imagesDir,
		resultsDir:  resultsDir,
		entryDir:    path.Join(filepath.ToSlash(cfg.Output.ImagesDir), args.DataDir),
		progress:    &generate.Progress{},
	}
	results := run.spawn(ctx, shards, rep.Expected, out)

	rep.collect(dir, results)
	persisted, readErr := generate.ReadResults(resultsDir)
	if readErr != nil {
		slog.Warn("some result files are unreadable", "error", readErr)
	}
	rep.merge(persisted, len(shards))

	shortfalls, images, err := Reconcile(imagesDir, sel.Fonts, len(sel.Words))
	if err != nil {
		slog.Warn("cannot reconcile images", "error", err)
	}
	rep.Shortfalls, rep.Images = shortfalls, images

	if len(rep.FailedFonts) > 0 {
		if err := atomicfile.WriteLines(dir.FailedGeneration(), rep.FailedFonts, 0o644); err != nil {
			slog.Error("cannot write failed font report", "error", err)
		}
	}
	rep.Duration = time.Since(start)
	slog.Info("generation finished",
		"expected", rep.Expected,
		"generated", rep.Generated,
		"shortfalls", len(rep.Shortfalls),
		"failed_fonts", len(rep.FailedFonts),
		"crashed", len(rep.Crashed),
		"duration", rep.Duration.Round(time.Millisecond))

	if err := ctx.Err(); err != nil {
		rep.Canceled = true
		return rep, err
	}
	return rep, nil
}

// clean removes the previous run's images, results and worker logs.
func clean(imagesDir, resultsDir, logsDir string) error {
	for _, d := range []string{imagesDir, resultsDir} {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("clean %s: %w", d, err)
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	stale, err := doublestar.FilepathGlob(filepath.Join(logsDir, paths.WorkerLogPrefix+"*"))
	if err != nil {
		return fmt.Errorf("glob worker logs: %w", err)
	}
	for _, f := range stale {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("cannot remove stale worker log", "file", f, "error", err)
		}
	}
	return nil
}

func loadWords(ctx context.Context, cfg *config.Config, dir paths.WorkDir, script alphabet.Script) ([]string, error) {
	src := wordsrc.Source{Kind: cfg.Words.Source, File: dir.Resolve(cfg.Words.File), URL: cfg.Words.URL}
	raw, err := wordsrc.Fetch(ctx, src, dir.WordsCache())
	if err != nil {
		if raw == nil {
			return nil, fmt.Errorf("load words: %w", err)
		}
		slog.Warn("word list came from cache", "error", err)
	}
	words := script.Filter(raw)
	slog.Debug("words filtered", "raw", len(raw), "kept", len(words), "script", script.Name)
	return words, nil
}

func discoverFonts(cfg *config.Config, dir paths.WorkDir) ([]fontsrc.Font, error) {
	opts := fontsrc.Options{
		Include:    cfg.Fonts.Include,
		Exclude:    cfg.Fonts.Exclude,
		NameFilter: cfg.Fonts.NameFilter,
	}
	if cfg.Fonts.ExcludeFailed {
		skip, err := fontsrc.ReadExclusions(dir.FailedFonts(), dir.FailedGeneration())
		if err != nil {
			return nil, err
		}
		opts.Skip = skip
	}
	fonts, err := fontsrc.Discover(dir.Resolve(cfg.Fonts.Dir), opts)
	if err != nil {
		return nil, fmt.Errorf("discover fonts: %w", err)
	}
	return fonts, nil
}

func writeSelection(dir paths.WorkDir, sel *sample.Selection) error {
	if err := atomicfile.WriteLines(dir.SelectedWords(), sel.Words, 0o644); err != nil {
		return fmt.Errorf("write selected words: %w", err)
	}
	names := make([]string, len(sel.Fonts))
	for i, f := range sel.Fonts {
		names[i] = f.FileName()
	}
	if err := atomicfile.WriteLines(dir.SelectedFonts(), names, 0o644); err != nil {
		return fmt.Errorf("write selected fonts: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Workers
// ///////////////////////////////////////////////

// runner holds what every worker is built from.
type runner struct {
	cfg         *config.Config
	dir         paths.WorkDir
	script      alphabet.Script
	words       []string
	backgrounds []*image.Gray
	imagesDir   string
	resultsDir  string
	entryDir    string
	progress    *generate.Progress
}

// spawn runs one goroutine per shard and monitors them until all return.
// results[i] is nil only if worker i could not start.
func (r *runner) spawn(ctx context.Context, shards [][]shard.Item, total int, out io.Writer) []*generate.ShardResult {
	w, err := watch.New(r.resultsDir, watch.Suffix(paths.ResultExt), r.cfg.ProgressInterval())
	if err != nil {
		slog.Warn("result watcher unavailable", "error", err)
		w = nil
	} else {
		defer w.Close()
	}
	mon := newMonitor(r.progress, total, len(shards), r.cfg.ProgressInterval(), out, w)
	done := make(chan struct{})
	monitored := make(chan struct{})
	go func() {
		mon.run(done)
		close(monitored)
	}()

	results := make([]*generate.ShardResult, len(shards))
	var wg sync.WaitGroup
	for i, items := range shards {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.work(ctx, i, items)
		}()
	}
	wg.Wait()
	close(done)
	<-monitored
	return results
}

// work builds a private machine and renderer for worker id and runs it.
func (r *runner) work(ctx context.Context, id int, items []shard.Item) *generate.ShardResult {
	log, closer, err := logger.NewWorkerLogger(r.dir.WorkerLog(id), id, logger.ParseLevel(r.cfg.Log.Level), r.cfg.Log.MaxSizeMB)
	if err != nil {
		slog.Warn("worker log unavailable, using main log", "worker", id, "error", err)
		log = slog.Default().With("worker", id)
	} else {
		defer closer.Close()
	}

	fonts := fontinfo.NewIntrospector()
	g := r.cfg.Generation
	rc := r.cfg.Render
	worker := &generate.Worker{
		ID:   id,
		Seed: g.Seed + int64(id),
		Machine: &generate.Machine{
			Renderer:         render.New(fonts, r.script, r.backgrounds),
			Fonts:            fonts,
			Words:            r.words,
			PlaceholderWords: r.script.PlaceholderWords,
			Options: generate.Options{
				MaxAttempts:         g.MaxAttempts,
				MaxFallbackAttempts: g.MaxFallbackAttempts,
				FontSize:            float64(rc.FontSize),
				RenderHeight:        rc.ImageHeight * rc.RenderHeightScale,
				PlaceholderHeight:   rc.ImageHeight,
				DistortChance:       rc.DistortChance,
				BlurChance:          rc.BlurChance,
				RenderTimeout:       r.cfg.RenderTimeout(),
			},
			Log: log,
		},
		ImagesDir:   r.imagesDir,
		EntryDir:    r.entryDir,
		ResultsDir:  r.resultsDir,
		ImageHeight: rc.ImageHeight,
		MaxWidth:    rc.MaxWidth,
		JPEGQuality: rc.JPEGQuality,
		Progress:    r.progress,
		Log:         log,
	}
	log.Info("worker starting", "items", len(items), "seed", worker.Seed)
	return worker.Run(ctx, items)
}

// ///////////////////////////////////////////////
// Report assembly
// ///////////////////////////////////////////////

// collect records crashes and sums stats from the in-memory results.
func (rep *Report) collect(dir paths.WorkDir, results []*generate.ShardResult) {
	for i, res := range results {
		if res == nil {
			continue
		}
		addStats(&rep.Stats, res.Stats)
		if !res.Crashed {
			continue
		}
		crash := WorkerCrash{Worker: i, Error: res.Error}
		if tail, err := logger.ReadTail(dir.WorkerLog(i), crashTailLines); err == nil {
			crash.LogTail = tail
		}
		rep.Crashed = append(rep.Crashed, crash)
	}
}

// merge folds the persisted result files into the report. Workers with no
// readable file are listed in MissingResults.
func (rep *Report) merge(persisted []*generate.ShardResult, workers int) {
	entries, failed := generate.Merge(persisted)
	rep.Generated = len(entries)
	rep.FailedFonts = failed
	seen := make([]bool, workers)
	for _, r := range persisted {
		if r.Worker >= 0 && r.Worker < workers {
			seen[r.Worker] = true
		}
	}
	for i, ok := range seen {
		if !ok {
			rep.MissingResults = append(rep.MissingResults, i)
		}
	}
}

func addStats(dst *generate.Stats, s generate.Stats) {
	dst.Items += s.Items
	dst.Rendered += s.Rendered
	dst.Placeholders += s.Placeholders
	dst.Failed += s.Failed
	dst.SaveErrors += s.SaveErrors
	dst.Recovered += s.Recovered
	dst.Fallbacks += s.Fallbacks
	dst.Renders += s.Renders
	dst.Skipped += s.Skipped
}
