// Package render rasterizes a word in a given font onto a background and
// reports the outcome as a tagged [Result] instead of a bare error, so
// callers can branch on [Status] without inspecting messages.
//
// Text is shaped with go-text's HarfBuzz port, glyph outlines are filled with
// x/image/vector, and the optional blur and distortion run on grayscale
// images.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"tools.zach/dev/wordsynth/internal/alphabet"
	"tools.zach/dev/wordsynth/internal/fontinfo"
	"tools.zach/dev/wordsynth/internal/fontsrc"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Request describes one render call.
type Request struct {
	Text string
	Font fontsrc.Font
	// Size is the font size in pixels.
	Size float64
	// Height is the height the rendered crop is resized to.
	Height int
	// DistortChance and BlurChance are independent probabilities in [0, 1].
	DistortChance float64
	BlurChance    float64
	// Flip mirrors the final image horizontally.
	Flip bool
}

// Meta records which random effects were applied.
type Meta struct {
	Blurred    bool
	BlurRadius float64
	Distorted  bool
	Distortion string
}

// Result is the tagged outcome of a render call. Image is set only when
// Status is [Rendered]; Code and Err only otherwise.
type Result struct {
	Status Status
	Image  *image.Gray
	Code   Code
	Err    error
	Meta   Meta
}

// Failed builds a non-rendered result from err using [Classify].
func Failed(err error) Result {
	status, code, _ := Classify(err)
	if status == Rendered {
		status, code = Recoverable, CodeUnknown
	}
	return Result{Status: status, Code: code, Err: err}
}

// FontSource provides parsed fonts.
type FontSource interface {
	Info(f fontsrc.Font) (*fontinfo.Info, error)
}

// ///////////////////////////////////////////////
// Renderer
// ///////////////////////////////////////////////

// Renderer draws words for one script. A Renderer is owned by a single
// worker; it is not safe for concurrent use with the same font.
type Renderer struct {
	fonts       FontSource
	script      alphabet.Script
	backgrounds []*image.Gray
}

// New returns a Renderer. backgrounds may be empty, in which case text is
// drawn on white.
func New(fonts FontSource, script alphabet.Script, backgrounds []*image.Gray) *Renderer {
	return &Renderer{fonts: fonts, script: script, backgrounds: backgrounds}
}

// Render draws req.Text and applies the random effects. It never panics; a
// panic in the shaper or rasterizer is reported as a fatal malformed glyph.
func (r *Renderer) Render(ctx context.Context, req Request, rng *rand.Rand) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Status: Fatal, Code: CodeMalformedGlyph, Err: errorf(CodeMalformedGlyph, fmt.Sprint(p), nil)}
		}
	}()

	img, meta, err := r.render(ctx, req, rng)
	if err != nil {
		return Failed(err)
	}
	return Result{Status: Rendered, Image: img, Meta: meta}
}

func (r *Renderer) render(ctx context.Context, req Request, rng *rand.Rand) (*image.Gray, Meta, error) {
	var meta Meta
	if req.Size <= 0 || math.IsNaN(req.Size) || req.Height <= 0 {
		return nil, meta, errorf(CodeInvalidArgument, fmt.Sprintf("size %g height %d", req.Size, req.Height), nil)
	}
	if req.Text == "" {
		return nil, meta, errorf(CodeEmptyRaster, "empty text", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, meta, err
	}

	info, err := r.fonts.Info(req.Font)
	if err != nil {
		return nil, meta, errorf(CodeUnreadableFont, req.Font.FileName(), err)
	}

	run, err := shape(info.Face, []rune(req.Text), req.Size, r.script.RTL, r.script.Language)
	if err != nil {
		return nil, meta, err
	}
	if run.empty() {
		return nil, meta, errorf(CodeEmptyRaster, fmt.Sprintf("%q has no ink", req.Text), nil)
	}
	w, h := run.size()
	if w > maxCanvasSide || h > maxCanvasSide {
		return nil, meta, errorf(CodeInvalidArgument, fmt.Sprintf("canvas %dx%d too large", w, h), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, meta, err
	}

	canvas, err := cropBackground(r.backgrounds, w, h, rng)
	if err != nil {
		return nil, meta, err
	}
	mask := run.rasterize(w, h, -float32(math.Floor(float64(run.minX))), -float32(math.Floor(float64(run.minY))))
	paint(canvas, mask, inkColor(rng))

	width := max(1, int(float64(w)/float64(h)*float64(req.Height)))
	if width > maxCanvasSide {
		return nil, meta, errorf(CodeInvalidArgument, fmt.Sprintf("resized width %d too large", width), nil)
	}
	img := scale(canvas, width, req.Height)

	if rng.Float64() < req.BlurChance {
		meta.Blurred = true
		meta.BlurRadius = 0.5 + rng.Float64()*1.5
		img = Blur(img, meta.BlurRadius)
	}
	meta.Distortion = DistortNone
	if rng.Float64() < req.DistortChance {
		meta.Distorted = true
		img, meta.Distortion = Distort(img, rng)
	}
	if req.Flip {
		img = Mirror(img)
	}
	return img, meta, nil
}

// inkColor is black 80% of the time and a medium-dark gray otherwise.
func inkColor(rng *rand.Rand) color.Gray {
	if rng.Float64() < 0.8 {
		return color.Gray{Y: 0}
	}
	return color.Gray{Y: uint8(50 + rng.IntN(100))}
}

// paint blends ink into dst through mask.
func paint(dst *image.Gray, mask *image.Alpha, ink color.Gray) {
	for i, a := range mask.Pix {
		if a == 0 {
			continue
		}
		bg := uint32(dst.Pix[i])
		dst.Pix[i] = uint8((uint32(ink.Y)*uint32(a) + bg*(255-uint32(a)) + 127) / 255)
	}
}
