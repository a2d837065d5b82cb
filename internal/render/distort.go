package render

import (
	"image"
	"math"
	"math/rand/v2"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Distortion names recorded in [Meta].
const (
	DistortNone    = "none"
	DistortRotate  = "rotate"
	DistortShear   = "shear"
	DistortStretch = "stretch"
)

var distortions = []string{DistortRotate, DistortShear, DistortStretch}

// Distort applies one random geometric transform chosen from rotate, shear
// and stretch. The output canvas grows to hold the transformed image and
// uncovered pixels are white.
func Distort(src *image.Gray, rng *rand.Rand) (*image.Gray, string) {
	kind := distortions[rng.IntN(len(distortions))]
	var m f64.Aff3
	switch kind {
	case DistortRotate:
		theta := (rng.Float64()*8 - 4) * math.Pi / 180
		sin, cos := math.Sincos(theta)
		m = f64.Aff3{cos, -sin, 0, sin, cos, 0}
	case DistortShear:
		k := rng.Float64()*0.6 - 0.3
		m = f64.Aff3{1, k, 0, 0, 1, 0}
	case DistortStretch:
		s := 0.7 + rng.Float64()*0.6
		m = f64.Aff3{s, 0, 0, 0, 1, 0}
	}
	return transform(src, m), kind
}

// transform maps src through m, translating the result so it starts at the
// origin.
func transform(src *image.Gray, m f64.Aff3) *image.Gray {
	b := src.Bounds()
	corners := [4][2]float64{
		{float64(b.Min.X), float64(b.Min.Y)},
		{float64(b.Max.X), float64(b.Min.Y)},
		{float64(b.Min.X), float64(b.Max.Y)},
		{float64(b.Max.X), float64(b.Max.Y)},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x := m[0]*c[0] + m[1]*c[1] + m[2]
		y := m[3]*c[0] + m[4]*c[1] + m[5]
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	m[2] -= minX
	m[5] -= minY

	w := max(1, int(math.Ceil(maxX-minX)))
	h := max(1, int(math.Ceil(maxY-minY)))
	dst := image.NewGray(image.Rect(0, 0, w, h))
	fill(dst, 0xff)
	xdraw.BiLinear.Transform(dst, m, src, b, xdraw.Src, nil)
	return dst
}

// Mirror flips img horizontally.
func Mirror(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			out.Pix[y*out.Stride+x] = img.GrayAt(b.Max.X-1-x, b.Min.Y+y).Y
		}
	}
	return out
}

func fill(img *image.Gray, v uint8) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}
