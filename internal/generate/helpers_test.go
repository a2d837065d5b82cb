package generate

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"strings"
	"sync"

	gtfont "github.com/go-text/typesetting/font"
	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/render"
)

// fakeGlyphs maps fonts by base name to the runes they cover. Fonts listed
// in broken fail to load.
type fakeGlyphs struct {
	cover  map[string]string
	broken map[string]bool
}

func (g fakeGlyphs) GlyphMap(f fontsrc.Font) (map[rune]gtfont.GID, error) {
	if g.broken[f.Base] {
		return nil, errors.New("cmap table truncated")
	}
	m := map[rune]gtfont.GID{}
	for i, r := range g.cover[f.Base] {
		m[r] = gtfont.GID(i + 1)
	}
	return m, nil
}

// fakeRenderer delegates to render and placeholder and records calls.
type fakeRenderer struct {
	mu          sync.Mutex
	render      func(req render.Request) render.Result
	placeholder func(f fontsrc.Font, word string, height int) (*image.Gray, error)
	texts       []string
	holders     int
}

func (r *fakeRenderer) Render(_ context.Context, req render.Request, _ *rand.Rand) render.Result {
	r.mu.Lock()
	r.texts = append(r.texts, req.Text)
	r.mu.Unlock()
	if r.render == nil {
		return rendered(req.Text)
	}
	return r.render(req)
}

func (r *fakeRenderer) Placeholder(f fontsrc.Font, word string, height int) (*image.Gray, error) {
	r.mu.Lock()
	r.holders++
	r.mu.Unlock()
	if r.placeholder != nil {
		return r.placeholder(f, word, height)
	}
	return image.NewGray(image.Rect(0, 0, 2*height, height)), nil
}

func (r *fakeRenderer) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

// blockingRenderer blocks every render until its context ends.
type blockingRenderer struct {
	started chan struct{}
	holders int
}

func (r *blockingRenderer) Render(ctx context.Context, _ render.Request, _ *rand.Rand) render.Result {
	select {
	case r.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return render.Failed(ctx.Err())
}

func (r *blockingRenderer) Placeholder(_ fontsrc.Font, _ string, height int) (*image.Gray, error) {
	r.holders++
	return image.NewGray(image.Rect(0, 0, 2*height, height)), nil
}

func rendered(text string) render.Result {
	return render.Result{Status: render.Rendered, Image: image.NewGray(image.Rect(0, 0, 10*len([]rune(text)), 40))}
}

func recoverable() render.Result {
	return render.Result{Status: render.Recoverable, Code: render.CodeUnknown, Err: errors.New("odd failure")}
}

func fatal() render.Result {
	return render.Result{Status: render.Fatal, Code: render.CodeDegenerateOutline, Err: errors.New("degenerate outline")}
}

// failWhen renders unless the text contains any rune of bad.
func failWhen(bad string, res render.Result) func(render.Request) render.Result {
	return func(req render.Request) render.Result {
		if strings.ContainsAny(req.Text, bad) {
			return res
		}
		return rendered(req.Text)
	}
}

func testOptions() Options {
	return Options{
		MaxAttempts:         3,
		MaxFallbackAttempts: 3,
		FontSize:            80,
		RenderHeight:        320,
		PlaceholderHeight:   64,
	}
}

func newMachine(r Renderer, g GlyphMapper, words []string) *Machine {
	return &Machine{
		Renderer:         r,
		Fonts:            g,
		Words:            words,
		PlaceholderWords: []string{"word", "test"},
		Options:          testOptions(),
	}
}

func font(base string) fontsrc.Font { return fontsrc.New("fonts/" + base + ".ttf") }

func newRNG(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }
