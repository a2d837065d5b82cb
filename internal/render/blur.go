package render

import (
	"image"
	"math"
)

// gaussianKernel returns a normalized 1D kernel of size 2*ceil(3*sigma)+1.
// A non-positive sigma yields the identity kernel.
func gaussianKernel(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}
	half := int(math.Ceil(sigma * 3))
	kernel := make([]float32, 2*half+1)
	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	inv := float32(1 / sum)
	for i := range kernel {
		kernel[i] *= inv
	}
	return kernel
}

// Blur applies a separable gaussian blur with the given radius, clamping
// samples at the image edges. The source is not modified.
func Blur(src *image.Gray, radius float64) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	kernel := gaussianKernel(radius)
	half := len(kernel) / 2

	// Horizontal pass into a float buffer.
	tmp := make([]float32, w*h)
	for y := range h {
		row := src.Pix[(b.Min.Y+y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
		for x := range w {
			var acc float32
			for k, weight := range kernel {
				kx := clampInt(x+k-half, 0, w-1)
				acc += float32(row[kx]) * weight
			}
			tmp[y*w+x] = acc
		}
	}

	// Vertical pass into dst.
	for y := range h {
		for x := range w {
			var acc float32
			for k, weight := range kernel {
				ky := clampInt(y+k-half, 0, h-1)
				acc += tmp[ky*w+x] * weight
			}
			dst.Pix[y*dst.Stride+x] = clampUint8(acc)
		}
	}
	return dst
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUint8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
