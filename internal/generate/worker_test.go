package generate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/render"
	"tools.zach/dev/wordsynth/internal/shard"
)

func newWorker(t *testing.T, id int, m *Machine) (*Worker, *Progress) {
	t.Helper()
	root := t.TempDir()
	p := &Progress{}
	n := 0
	return &Worker{
		ID:          id,
		Seed:        42 + int64(id),
		Machine:     m,
		ImagesDir:   filepath.Join(root, "word_images", "train"),
		EntryDir:    "word_images/train",
		ResultsDir:  filepath.Join(root, "word_dict"),
		ImageHeight: 64,
		MaxWidth:    2304,
		JPEGQuality: 75,
		Progress:    p,
		token: func() string {
			n++
			return fmt.Sprintf("%08x%024d", n, id)
		},
	}, p
}

func resultFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

// ///////////////////////////////////////////////
// Run
// ///////////////////////////////////////////////

func TestRun_DrawableAndUndrawableFonts(t *testing.T) {
	glyphs := fakeGlyphs{cover: map[string]string{"a": "abcd", "b": "xyz"}}
	m := newMachine(&fakeRenderer{}, glyphs, []string{"ab", "cd"})
	items := shard.Build([]fontsrc.Font{font("a"), font("b")}, []string{"ab", "cd"})

	w, progress := newWorker(t, 0, m)
	res := w.Run(context.Background(), items)

	if len(res.Entries) != 4 {
		t.Fatalf("entries = %d, want 4: %v", len(res.Entries), res.Entries)
	}
	if res.Stats.Rendered != 2 || res.Stats.Placeholders != 2 || res.Stats.Failed != 0 {
		t.Errorf("stats = %+v, want 2 rendered and 2 placeholders", res.Stats)
	}
	if got := progress.Load(); got != 4 {
		t.Errorf("progress = %d, want 4", got)
	}
	labels := map[string]int{}
	for p, label := range res.Entries {
		labels[label]++
		if !strings.HasPrefix(p, "word_images/train/") {
			t.Errorf("entry %q lacks the entry dir", p)
		}
	}
	if labels["ab"] != 1 || labels["cd"] != 1 {
		t.Errorf("labels = %v, want ab and cd once each from font a", labels)
	}
	if len(res.FailedFonts) != 0 {
		t.Errorf("FailedFonts = %v, want none (placeholders from exhausted attempts)", res.FailedFonts)
	}
}

func TestRun_ImagesAndNames(t *testing.T) {
	m := newMachine(&fakeRenderer{}, fakeGlyphs{cover: map[string]string{"naskh_bold": "abcd"}}, nil)
	items := shard.Build([]fontsrc.Font{font("naskh_bold")}, []string{"ab", "cd", "abcd"})

	w, _ := newWorker(t, 3, m)
	res := w.Run(context.Background(), items)

	grammar := regexp.MustCompile(`^naskh_bold_3_(\d+)_[0-9a-f]{8}\.jpg$`)
	seen := map[string]bool{}
	for p := range res.Entries {
		name := path.Base(p)
		if !grammar.MatchString(name) {
			t.Errorf("file name %q does not match the naming grammar", name)
		}
		if seen[name] {
			t.Errorf("duplicate file name %q", name)
		}
		seen[name] = true

		f, err := os.Open(filepath.Join(w.ImagesDir, name))
		if err != nil {
			t.Fatalf("image missing: %v", err)
		}
		img, err := jpeg.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if img.Bounds().Dy() != 64 {
			t.Errorf("%s height = %d, want 64", name, img.Bounds().Dy())
		}
	}
	if len(seen) != 3 {
		t.Errorf("images = %d, want 3", len(seen))
	}
}

func TestRun_PersistsExactlyOnce(t *testing.T) {
	m := newMachine(&fakeRenderer{}, fakeGlyphs{cover: map[string]string{"a": "ab"}}, nil)
	w, _ := newWorker(t, 1, m)
	res := w.Run(context.Background(), shard.Build([]fontsrc.Font{font("a")}, []string{"ab", "ba"}))

	files := resultFiles(t, w.ResultsDir)
	if len(files) != 1 || files[0] != res.Path {
		t.Fatalf("result files = %v, want exactly %s", files, res.Path)
	}
	back, err := ReadResult(res.Path)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if back.Worker != 1 || back.Seed != 43 || len(back.Entries) != 2 || back.Version != ResultVersion {
		t.Errorf("persisted result = %+v", back)
	}
}

func TestRun_EmptyShardStillPersists(t *testing.T) {
	m := newMachine(&fakeRenderer{}, fakeGlyphs{}, nil)
	w, _ := newWorker(t, 5, m)
	res := w.Run(context.Background(), nil)
	if len(res.Entries) != 0 || len(resultFiles(t, w.ResultsDir)) != 1 {
		t.Errorf("empty shard: entries %d, files %v", len(res.Entries), resultFiles(t, w.ResultsDir))
	}
}

func TestRun_FailureHasNoEntry(t *testing.T) {
	r := &fakeRenderer{
		render: func(render.Request) render.Result { return fatal() },
		placeholder: func(fontsrc.Font, string, int) (*image.Gray, error) {
			return nil, errors.New("out of memory")
		},
	}
	m := newMachine(r, fakeGlyphs{cover: map[string]string{"a": "ab", "b": "ab"}}, nil)
	items := []shard.Item{
		{Word: "ab", Font: font("a"), Index: 1},
		{Word: "ab", Font: font("b"), Index: 1},
	}

	w, progress := newWorker(t, 0, m)
	res := w.Run(context.Background(), items)

	if len(res.Entries) != 0 || len(res.Failures) != 2 || res.Stats.Failed != 2 {
		t.Fatalf("entries %d, failures %d, stats %+v; want 0 entries and 2 failures", len(res.Entries), len(res.Failures), res.Stats)
	}
	if progress.Load() != 2 {
		t.Errorf("progress = %d, want 2", progress.Load())
	}
	if diff := cmp.Diff([]string{"a.ttf", "b.ttf"}, res.FailedFonts); diff != "" {
		t.Errorf("FailedFonts mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_SaveErrorCountsProgress(t *testing.T) {
	m := newMachine(&fakeRenderer{}, fakeGlyphs{cover: map[string]string{"a": "ab"}}, nil)
	w, progress := newWorker(t, 0, m)

	// A regular file where the images directory should be.
	if err := os.MkdirAll(filepath.Dir(w.ImagesDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(w.ImagesDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res := w.Run(context.Background(), shard.Build([]fontsrc.Font{font("a")}, []string{"ab"}))
	if len(res.Entries) != 0 || res.Stats.SaveErrors != 1 || len(res.Failures) != 1 {
		t.Errorf("entries %d, stats %+v, failures %v", len(res.Entries), res.Stats, res.Failures)
	}
	if progress.Load() != 1 {
		t.Errorf("progress = %d, want 1", progress.Load())
	}
}

func TestRun_CrashPersistsPartialResult(t *testing.T) {
	r := &fakeRenderer{render: func(req render.Request) render.Result {
		if req.Text == "cd" {
			panic("segfault in shaper")
		}
		return rendered(req.Text)
	}}
	m := newMachine(r, fakeGlyphs{cover: map[string]string{"a": "abcd"}}, nil)
	items := shard.Build([]fontsrc.Font{font("a")}, []string{"ab", "cd", "da"})

	w, progress := newWorker(t, 2, m)
	res := w.Run(context.Background(), items)

	if !res.Crashed || !strings.Contains(res.Error, "segfault") {
		t.Errorf("Crashed = %v, Error = %q", res.Crashed, res.Error)
	}
	if len(res.Entries) != 1 || res.Stats.Skipped != 2 {
		t.Errorf("entries %d, skipped %d; want 1 and 2", len(res.Entries), res.Stats.Skipped)
	}
	if progress.Load() != 1 {
		t.Errorf("progress = %d, want 1", progress.Load())
	}
	back, err := ReadResult(res.Path)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if !back.Crashed || len(back.Entries) != 1 {
		t.Errorf("persisted crash result = %+v", back)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newMachine(&fakeRenderer{}, fakeGlyphs{cover: map[string]string{"a": "ab"}}, nil)
	w, progress := newWorker(t, 0, m)

	res := w.Run(ctx, shard.Build([]fontsrc.Font{font("a")}, []string{"ab", "ba"}))
	if !res.Canceled || res.Stats.Skipped != 2 || progress.Load() != 0 {
		t.Errorf("Canceled %v, skipped %d, progress %d", res.Canceled, res.Stats.Skipped, progress.Load())
	}
	if len(resultFiles(t, w.ResultsDir)) != 1 {
		t.Error("canceled worker did not persist its result")
	}
}

func TestRun_CanceledMidRenderLeavesFontHealthy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &blockingRenderer{started: make(chan struct{}, 1)}
	m := newMachine(r, fakeGlyphs{cover: map[string]string{"a": "ab"}}, []string{"ab"})
	m.Options.RenderTimeout = 30 * time.Second
	w, progress := newWorker(t, 0, m)
	go func() {
		<-r.started
		cancel()
	}()

	res := w.Run(ctx, shard.Build([]fontsrc.Font{font("a")}, []string{"ab", "ba"}))
	if !res.Canceled || res.Stats.Skipped != 2 || progress.Load() != 0 {
		t.Errorf("Canceled %v, skipped %d, progress %d", res.Canceled, res.Stats.Skipped, progress.Load())
	}
	if len(res.FailedFonts) != 0 || len(res.Failures) != 0 || len(res.Entries) != 0 {
		t.Errorf("failed fonts %v, failures %v, entries %v; want none", res.FailedFonts, res.Failures, res.Entries)
	}
	if res.Stats.Placeholders != 0 {
		t.Errorf("Placeholders = %d, want 0", res.Stats.Placeholders)
	}
}

func TestRun_SameSeedSameLabels(t *testing.T) {
	labels := func() []string {
		r := &fakeRenderer{render: failWhen("z", recoverable())}
		m := newMachine(r, fakeGlyphs{cover: map[string]string{"a": "abcdz"}}, []string{"ab", "cd", "bd", "da"})
		w, _ := newWorker(t, 4, m)
		res := w.Run(context.Background(), shard.Build([]fontsrc.Font{font("a")}, []string{"zz", "zzz", "ab"}))
		var out []string
		for _, item := range []int{1, 2, 3} {
			for p, label := range res.Entries {
				if strings.Contains(p, fmt.Sprintf("_4_%d_", item)) {
					out = append(out, label)
				}
			}
		}
		return out
	}
	if diff := cmp.Diff(labels(), labels()); diff != "" {
		t.Errorf("same seed produced different labels:\n%s", diff)
	}
}
