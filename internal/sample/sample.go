// Package sample draws the fonts and words of one corpus run and replaces
// inadmissible fonts from the undrawn remainder of the pool.
package sample

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"tools.zach/dev/wordsynth/internal/admit"
	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// Pool-insufficiency errors. Both abort a run before any worker starts.
var (
	ErrInsufficientFonts = errors.New("not enough admissible fonts")
	ErrInsufficientWords = errors.New("not enough words")
)

// Pools are the candidates to draw from. Fonts are already deduplicated by
// base identity and Words already filtered to the script.
type Pools struct {
	Fonts []fontsrc.Font
	Words []string
}

// Checker is the admissibility collaborator.
type Checker interface {
	Check(ctx context.Context, f fontsrc.Font, sample string) admit.Verdict
	Probe(f fontsrc.Font, words []string) admit.Verdict
}

// Options tunes replacement.
type Options struct {
	// ProbeWords is how many selected words a replacement font must draw.
	ProbeWords int
}

// Rejection records a font that did not make the selection.
type Rejection struct {
	Font    fontsrc.Font
	Verdict admit.Verdict
}

// Selection is the outcome of a successful draw: exactly K fonts and K
// words, all unique.
type Selection struct {
	Fonts []fontsrc.Font
	Words []string
	// Rejected lists every font that was tested and turned down.
	Rejected []Rejection
	// Replacements lists the fonts admitted through the cheap probe.
	Replacements []fontsrc.Font
}

// Sample draws k fonts and k words uniformly without replacement, checks
// the drawn fonts, and replaces rejected ones from the undrawn fonts in
// random order until k are admitted. The same rng state yields the same
// selection.
func Sample(ctx context.Context, pools Pools, k int, rng *rand.Rand, checker Checker, opts Options) (*Selection, error) {
	if k < 1 {
		return nil, fmt.Errorf("dataset size must be positive, got %d", k)
	}
	if len(pools.Fonts) < k {
		return nil, fmt.Errorf("%w: required %d, found %d", ErrInsufficientFonts, k, len(pools.Fonts))
	}
	if len(pools.Words) < k {
		return nil, fmt.Errorf("%w: required %d, found %d", ErrInsufficientWords, k, len(pools.Words))
	}

	fontOrder := rng.Perm(len(pools.Fonts))
	sel := &Selection{Words: make([]string, 0, k)}
	for _, i := range rng.Perm(len(pools.Words))[:k] {
		sel.Words = append(sel.Words, pools.Words[i])
	}

	for _, i := range fontOrder[:k] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := pools.Fonts[i]
		v := checker.Check(ctx, f, sel.Words[rng.IntN(k)])
		if !v.Admissible {
			sel.Rejected = append(sel.Rejected, Rejection{Font: f, Verdict: v})
			continue
		}
		sel.Fonts = append(sel.Fonts, f)
	}

	probeN := min(max(opts.ProbeWords, 1), k)
	for _, i := range fontOrder[k:] {
		if len(sel.Fonts) == k {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := pools.Fonts[i]
		probe := make([]string, 0, probeN)
		for _, j := range rng.Perm(k)[:probeN] {
			probe = append(probe, sel.Words[j])
		}
		v := checker.Probe(f, probe)
		if !v.Admissible {
			sel.Rejected = append(sel.Rejected, Rejection{Font: f, Verdict: v})
			continue
		}
		slog.Info("added replacement font", "font", f.FileName())
		sel.Fonts = append(sel.Fonts, f)
		sel.Replacements = append(sel.Replacements, f)
	}

	if len(sel.Fonts) < k {
		return nil, fmt.Errorf("%w: only %d valid fonts found, required %d", ErrInsufficientFonts, len(sel.Fonts), k)
	}
	return sel, nil
}
