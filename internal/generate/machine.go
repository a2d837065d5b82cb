// Package generate runs the per-item render state machine and the worker
// that drives it over one shard.
//
// For each item the machine resolves the font's glyph map, makes up to
// MaxAttempts primary attempts with the scheduled word, then up to
// MaxFallbackAttempts with random words from the sampled pool, and finally
// draws a placeholder. A renderer-fatal result or an unreadable font skips
// straight to the placeholder. Cancellation during a render ends the item as
// [KindCanceled] without blaming the font. Every item ends in exactly one
// [Outcome].
package generate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	gtfont "github.com/go-text/typesetting/font"
	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/logger"
	"tools.zach/dev/wordsynth/internal/render"
	"tools.zach/dev/wordsynth/internal/shard"
)

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// Renderer draws words and placeholders.
type Renderer interface {
	Render(ctx context.Context, req render.Request, rng *rand.Rand) render.Result
	Placeholder(f fontsrc.Font, word string, height int) (*image.Gray, error)
}

// GlyphMapper returns a font's code point to glyph mapping.
type GlyphMapper interface {
	GlyphMap(f fontsrc.Font) (map[rune]gtfont.GID, error)
}

// ///////////////////////////////////////////////
// Outcome
// ///////////////////////////////////////////////

// Kind is the terminal state of an item.
type Kind int

const (
	// KindRendered is a successful render of the item's word, a substituted
	// variant of it, or a fallback word.
	KindRendered Kind = iota
	// KindPlaceholder is the canned placeholder image.
	KindPlaceholder
	// KindFailed means even the placeholder failed; the item has no image.
	KindFailed
	// KindCanceled means the run was canceled mid-item; nothing is recorded.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindRendered:
		return "rendered"
	case KindPlaceholder:
		return "placeholder"
	case KindFailed:
		return "failed"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reasons recorded when an item does not render normally.
const (
	ReasonUnreadableFont     = "unreadable font"
	ReasonRendererFatal      = "renderer-fatal"
	ReasonAttemptsExhausted  = "attempts exhausted"
	ReasonFontHung           = "font timed out earlier"
	ReasonPlaceholderFailure = "placeholder failure"
	ReasonCanceled           = "canceled"
)

// Outcome is the result of processing one item. Text is the label, which
// is always the string that was actually drawn.
type Outcome struct {
	Kind   Kind
	Text   string
	Image  *image.Gray
	Reason string
	// Renders counts render calls, including substitutions.
	Renders int
	// Recovered is set when a character substitution rendered.
	Recovered bool
	// Fallback is set when the drawn text came from a fallback word.
	Fallback bool
	// FontFailed is set when the font should be reported as failed.
	FontFailed bool
}

// ///////////////////////////////////////////////
// Machine
// ///////////////////////////////////////////////

// Options are the fixed parameters of a machine.
type Options struct {
	MaxAttempts         int
	MaxFallbackAttempts int
	FontSize            float64
	// RenderHeight is the intermediate height handed to the renderer.
	RenderHeight int
	// PlaceholderHeight is the height of placeholder images.
	PlaceholderHeight int
	DistortChance     float64
	BlurChance        float64
	// RenderTimeout bounds each render call; zero disables it.
	RenderTimeout time.Duration
}

// Machine processes items for one worker. It is not safe for concurrent use.
type Machine struct {
	Renderer Renderer
	Fonts    GlyphMapper
	// Words is the full sampled word pool used for fallback attempts.
	Words []string
	// PlaceholderWords are drawn on placeholder images.
	PlaceholderWords []string
	Options          Options
	Log              *slog.Logger

	// hung holds fonts whose render exceeded the timeout. The abandoned
	// call may still be using the font, so it is not rendered again.
	hung map[string]bool
}

// Process runs the state machine for item. It always returns an outcome;
// per-item errors never escape.
func (m *Machine) Process(ctx context.Context, item shard.Item, rng *rand.Rand) Outcome {
	var o Outcome
	log := m.logger().With("font", item.Font.FileName(), "word", item.Word, "index", item.Index)

	cmap, err := m.Fonts.GlyphMap(item.Font)
	if err != nil {
		log.Error("cannot read font", "error", err)
		return m.placeholder(item, rng, o, ReasonUnreadableFont, true)
	}
	if m.hung[item.Font.Path] {
		return m.placeholder(item, rng, o, ReasonFontHung, true)
	}

	for attempt := 1; attempt <= m.Options.MaxAttempts; attempt++ {
		text := filterText(item.Word, cmap)
		if text == "" {
			log.Warn("rendered text empty", "phase", "primary", "attempt", attempt)
			continue
		}
		switch m.attempt(ctx, log, item.Font, text, rng, &o) {
		case stepRendered:
			return o
		case stepFatal:
			return m.placeholder(item, rng, o, ReasonRendererFatal, true)
		case stepCanceled:
			return canceled(o)
		}
	}

	for attempt := 1; attempt <= m.Options.MaxFallbackAttempts && len(m.Words) > 0; attempt++ {
		word := m.Words[rng.IntN(len(m.Words))]
		text := filterText(word, cmap)
		if text == "" {
			log.Warn("rendered text empty", "phase", "fallback", "attempt", attempt, "fallback_word", word)
			continue
		}
		switch m.attempt(ctx, log, item.Font, text, rng, &o) {
		case stepRendered:
			o.Fallback = true
			log.Info("fallback word rendered", "text", o.Text)
			return o
		case stepFatal:
			return m.placeholder(item, rng, o, ReasonRendererFatal, true)
		case stepCanceled:
			return canceled(o)
		}
	}

	return m.placeholder(item, rng, o, ReasonAttemptsExhausted, false)
}

type step int

const (
	stepRetry step = iota
	stepRendered
	stepFatal
	stepCanceled
)

func canceled(o Outcome) Outcome {
	o.Kind, o.Reason, o.Image, o.Text = KindCanceled, ReasonCanceled, nil, ""
	return o
}

// attempt renders text once and, on a recoverable failure, retries with
// every occurrence of one character replaced by a blank, for each distinct
// character in order. A fatal result at any point ends the attempt.
func (m *Machine) attempt(ctx context.Context, log *slog.Logger, f fontsrc.Font, text string, rng *rand.Rand, o *Outcome) step {
	res := m.render(ctx, log, f, text, rng, o)
	if ctx.Err() != nil {
		return stepCanceled
	}
	switch res.Status {
	case render.Rendered:
		o.Kind, o.Text, o.Image = KindRendered, text, res.Image
		return stepRendered
	case render.Fatal:
		log.Error("renderer-fatal error", "text", text, "code", string(res.Code), "error", res.Err)
		return stepFatal
	}
	log.Warn("render failed, trying substitutions", "text", text, "code", string(res.Code), "error", res.Err)

	tried := map[rune]bool{' ': true}
	for _, r := range text {
		if tried[r] {
			continue
		}
		tried[r] = true
		modified := strings.ReplaceAll(text, string(r), " ")

		res := m.render(ctx, log, f, modified, rng, o)
		if ctx.Err() != nil {
			return stepCanceled
		}
		switch res.Status {
		case render.Rendered:
			o.Kind, o.Text, o.Image, o.Recovered = KindRendered, modified, res.Image, true
			log.Info("substitution rendered", "text", modified)
			return stepRendered
		case render.Fatal:
			log.Error("renderer-fatal error during substitution", "text", modified, "code", string(res.Code), "error", res.Err)
			return stepFatal
		}
	}
	return stepRetry
}

// renderCall carries a render result, or a panic to re-raise on the
// worker's goroutine.
type renderCall struct {
	res      render.Result
	panicked any
}

// render makes one bounded render call with its own random stream, so an
// abandoned call never shares state with the worker.
func (m *Machine) render(ctx context.Context, log *slog.Logger, f fontsrc.Font, text string, rng *rand.Rand, o *Outcome) (res render.Result) {
	o.Renders++
	start := time.Now()
	defer func() {
		logger.Timed(log, start, "render finished", "text", text, "status", res.Status, "code", string(res.Code))
	}()
	req := render.Request{
		Text:          text,
		Font:          f,
		Size:          m.Options.FontSize,
		Height:        m.Options.RenderHeight,
		DistortChance: m.Options.DistortChance,
		BlurChance:    m.Options.BlurChance,
	}
	sub := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))
	logger.Trace(log, "render", "text", text)

	if timeout := m.Options.RenderTimeout; timeout <= 0 {
		res = m.Renderer.Render(ctx, req, sub)
	} else {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		done := make(chan renderCall, 1)
		go func() {
			defer func() {
				if p := recover(); p != nil {
					done <- renderCall{panicked: p}
				}
			}()
			done <- renderCall{res: m.Renderer.Render(rctx, req, sub)}
		}()
		select {
		case c := <-done:
			if c.panicked != nil {
				panic(c.panicked)
			}
			res = c.res
		case <-rctx.Done():
			// The run was canceled; the font did nothing wrong.
			if err := ctx.Err(); err != nil {
				return render.Result{Status: render.Recoverable, Code: render.CodeCanceled, Err: err}
			}
			if m.hung == nil {
				m.hung = map[string]bool{}
			}
			m.hung[f.Path] = true
			return render.Result{
				Status: render.Fatal,
				Code:   render.CodeTimeout,
				Err:    fmt.Errorf("render of %q abandoned after %s: %w", text, timeout, rctx.Err()),
			}
		}
	}

	if res.Status != render.Rendered {
		if _, _, byMessage := render.Classify(res.Err); byMessage {
			log.Warn("render error classified by message text", "error", res.Err)
		}
	}
	return res
}

// placeholder finishes an item with the canned image, or KindFailed when
// the placeholder itself fails.
func (m *Machine) placeholder(item shard.Item, rng *rand.Rand, o Outcome, reason string, fontFailed bool) Outcome {
	o.Reason, o.FontFailed = reason, fontFailed
	log := m.logger().With("font", item.Font.FileName(), "word", item.Word, "index", item.Index)
	log.Error("using placeholder", "reason", reason)

	if len(m.PlaceholderWords) == 0 {
		o.Kind = KindFailed
		o.Reason = ReasonPlaceholderFailure + ": no placeholder words"
		logger.Fail(log, "placeholder failed", "error", "no placeholder words")
		return o
	}
	word := m.PlaceholderWords[rng.IntN(len(m.PlaceholderWords))]
	img, err := m.Renderer.Placeholder(item.Font, word, m.Options.PlaceholderHeight)
	if err != nil {
		o.Kind = KindFailed
		o.Reason = fmt.Sprintf("%s: %v", ReasonPlaceholderFailure, err)
		logger.Fail(log, "placeholder failed", "error", err)
		return o
	}
	o.Kind, o.Text, o.Image = KindPlaceholder, word, img
	return o
}

func (m *Machine) logger() *slog.Logger {
	if m.Log != nil {
		return m.Log
	}
	return slog.Default()
}

// filterText keeps the runes of word that the font maps.
func filterText(word string, cmap map[rune]gtfont.GID) string {
	var b strings.Builder
	for _, r := range word {
		if _, ok := cmap[r]; ok {
			b.WriteRune(r)
		}
	}
	return b.String()
}
