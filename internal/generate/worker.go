package generate

import (
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"slices"

	"tools.zach/dev/wordsynth/internal/atomicfile"
	"tools.zach/dev/wordsynth/internal/logger"
	"tools.zach/dev/wordsynth/internal/paths"
	"tools.zach/dev/wordsynth/internal/render"
	"tools.zach/dev/wordsynth/internal/shard"
)

// Worker owns one shard. Workers share nothing but the progress counter.
type Worker struct {
	ID   int
	Seed int64
	// Machine must be private to this worker.
	Machine *Machine
	// ImagesDir is where images are written.
	ImagesDir string
	// EntryDir is the slash-separated prefix recorded in result entries.
	EntryDir string
	// ResultsDir receives the worker's result file.
	ResultsDir  string
	ImageHeight int
	MaxWidth    int
	JPEGQuality int
	Progress    *Progress
	Log         *slog.Logger

	// token returns 32 random hex characters; tests replace it.
	token func() string
}

// Run processes items in order and persists the result exactly once,
// including after a panic, which is recovered and marks the result crashed.
// Cancellation stops before the next item; an item interrupted mid-render is
// left unrecorded and counted as skipped.
func (w *Worker) Run(ctx context.Context, items []shard.Item) (res *ShardResult) {
	log := w.logger()
	res = &ShardResult{Version: ResultVersion, Worker: w.ID, Seed: w.Seed, Entries: map[string]string{}}
	res.Stats.Items = len(items)
	failedFonts := map[string]bool{}
	done := 0

	defer func() {
		if p := recover(); p != nil {
			res.Crashed = true
			res.Error = fmt.Sprint(p)
			logger.Fail(log, "worker crashed", "panic", p, "stack", string(debug.Stack()))
		}
		res.Stats.Skipped = len(items) - done
		res.FailedFonts = slices.Sorted(maps.Keys(failedFonts))
		if err := res.Save(w.ResultsDir, w.newToken()); err != nil {
			logger.Fail(log, "cannot persist result", "error", err, "entries", len(res.Entries))
			return
		}
		log.Info("worker finished",
			"seed", w.Seed,
			"images", len(res.Entries),
			"failures", len(res.Failures),
			"result", res.Path)
	}()

	if err := os.MkdirAll(w.ImagesDir, 0o755); err != nil {
		log.Error("cannot create images dir", "error", err)
	}
	rng := rand.New(rand.NewPCG(uint64(w.Seed), uint64(w.Seed)))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.Canceled = true
			log.Warn("worker canceled", "remaining", len(items)-done)
			break
		}
		if !w.process(ctx, item, rng, res, failedFonts) {
			res.Canceled = true
			log.Warn("worker canceled mid-item", "font", item.Font.FileName(), "word", item.Word, "remaining", len(items)-done)
			break
		}
		done++
		w.Progress.Inc()
	}
	return res
}

// process runs one item and records exactly one entry or one failure. It
// returns false, recording nothing, when the item was canceled.
func (w *Worker) process(ctx context.Context, item shard.Item, rng *rand.Rand, res *ShardResult, failedFonts map[string]bool) bool {
	out := w.Machine.Process(ctx, item, rng)
	res.Stats.Renders += out.Renders
	if out.Kind == KindCanceled {
		return false
	}
	if out.FontFailed {
		failedFonts[item.Font.FileName()] = true
	}
	fail := func(reason string) {
		res.Failures = append(res.Failures, Failure{Word: item.Word, Font: item.Font.FileName(), Index: item.Index, Reason: reason})
	}

	if out.Kind == KindFailed {
		res.Stats.Failed++
		fail(out.Reason)
		return true
	}

	img := render.Fit(out.Image, w.ImageHeight, w.MaxWidth)
	name := fmt.Sprintf("%s_%d_%d_%s%s", item.Font.Base, w.ID, item.Index, w.newToken()[:8], paths.ImageExt)
	err := atomicfile.WriteFunc(filepath.Join(w.ImagesDir, name), 0o644, func(wr io.Writer) error {
		return jpeg.Encode(wr, img, &jpeg.Options{Quality: w.JPEGQuality})
	})
	if err != nil {
		w.logger().Error("cannot save image", "font", item.Font.FileName(), "word", item.Word, "error", err)
		res.Stats.SaveErrors++
		fail("save: " + err.Error())
		return true
	}

	res.Entries[path.Join(w.EntryDir, name)] = out.Text
	switch out.Kind {
	case KindPlaceholder:
		res.Stats.Placeholders++
	default:
		res.Stats.Rendered++
		if out.Recovered {
			res.Stats.Recovered++
		}
		if out.Fallback {
			res.Stats.Fallbacks++
		}
	}
	return true
}

func (w *Worker) newToken() string {
	if w.token != nil {
		return w.token()
	}
	return newToken()
}

func (w *Worker) logger() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}
