// Package admit decides whether a font can draw the full base-letter set of
// a script. Cheap structural checks on the glyph tables run first; only fonts
// that pass them pay for a smoke render.
package admit

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"tools.zach/dev/wordsynth/internal/alphabet"
	"tools.zach/dev/wordsynth/internal/fontinfo"
	"tools.zach/dev/wordsynth/internal/fontsrc"
	"tools.zach/dev/wordsynth/internal/render"
)

// Reason explains a rejection. Values are stable and appear in logs.
type Reason string

const (
	ReasonUnreadable        Reason = "unreadable font"
	ReasonMissingGlyphTable Reason = "missing glyph table"
	ReasonMissingGlyph      Reason = "missing glyph"
	ReasonEmptyGlyph        Reason = "empty glyph"
	ReasonRendererFatal     Reason = "renderer-fatal"
	ReasonUnknownFailure    Reason = "unknown test failure"
)

// Verdict is the outcome of a check. Reason and Detail are empty when the
// font is admissible.
type Verdict struct {
	Admissible bool
	Reason     Reason
	Detail     string
}

func admissible() Verdict { return Verdict{Admissible: true} }

func rejected(reason Reason, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Fonts provides parsed fonts.
type Fonts interface {
	Info(f fontsrc.Font) (*fontinfo.Info, error)
}

// Renderer draws the smoke-test word.
type Renderer interface {
	Render(ctx context.Context, req render.Request, rng *rand.Rand) render.Result
}

// Options tunes the smoke render.
type Options struct {
	SmokeSize   float64
	SmokeHeight int
}

// Checker runs admissibility checks for one script.
type Checker struct {
	Script   alphabet.Script
	Fonts    Fonts
	Renderer Renderer
	Options  Options
}

// smokeSeed fixes background selection so repeated checks agree.
const smokeSeed = 0x5eed

// Check runs, in order: font parsing, glyph table presence, per-letter
// coverage, per-letter outline non-emptiness, and a smoke render of sample
// with blur and distortion disabled. The first failing step decides the
// verdict. Check does not modify the font file and keeps no state between
// calls beyond the parse cache of Fonts.
func (c *Checker) Check(ctx context.Context, f fontsrc.Font, sample string) Verdict {
	v := c.check(ctx, f, sample)
	switch {
	case v.Admissible:
		slog.Debug("font admissible", "font", f.FileName())
	case v.Reason == ReasonUnknownFailure:
		slog.Warn("font failed smoke test for an unknown reason", "font", f.FileName(), "detail", v.Detail)
	default:
		slog.Info("font rejected", "font", f.FileName(), "reason", string(v.Reason), "detail", v.Detail)
	}
	return v
}

func (c *Checker) check(ctx context.Context, f fontsrc.Font, sample string) Verdict {
	info, err := c.Fonts.Info(f)
	if err != nil {
		return rejected(ReasonUnreadable, "%v", err)
	}
	if !info.HasOutlineTable() {
		return rejected(ReasonMissingGlyphTable, "no glyf, CFF or CFF2 table")
	}

	for _, r := range c.Script.Letters {
		gid, ok := info.Lookup(r)
		if !ok {
			return rejected(ReasonMissingGlyph, "U+%04X %q", r, r)
		}
		if !info.HasNonEmptyOutline(gid) {
			return rejected(ReasonEmptyGlyph, "U+%04X %q (glyph %d)", r, r, gid)
		}
	}

	text := info.Filter(sample)
	if text == "" {
		return rejected(ReasonUnknownFailure, "sample %q has no drawable characters", sample)
	}
	res := c.Renderer.Render(ctx, render.Request{
		Text:   text,
		Font:   f,
		Size:   c.Options.SmokeSize,
		Height: c.Options.SmokeHeight,
	}, rand.New(rand.NewPCG(smokeSeed, smokeSeed)))

	switch res.Status {
	case render.Rendered:
		return admissible()
	case render.Fatal:
		return rejected(ReasonRendererFatal, "%s: %v", res.Code, res.Err)
	default:
		return rejected(ReasonUnknownFailure, "%s: %v", res.Code, res.Err)
	}
}

// Probe is the cheap replacement test: the font must parse and each word
// must keep at least one character after filtering to the font's glyph map.
func (c *Checker) Probe(f fontsrc.Font, words []string) Verdict {
	info, err := c.Fonts.Info(f)
	if err != nil {
		return rejected(ReasonUnreadable, "%v", err)
	}
	for _, w := range words {
		if info.Filter(w) == "" {
			return rejected(ReasonMissingGlyph, "cannot draw any character of %q", w)
		}
	}
	return admissible()
}
