package render

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Fit resizes img to exactly height pixels tall. The width follows the
// aspect ratio and is clamped to maxWidth; a non-positive maxWidth disables
// the clamp.
func Fit(img image.Image, height, maxWidth int) *image.Gray {
	b := img.Bounds()
	width := 1
	if b.Dy() > 0 {
		width = int(float64(b.Dx()) / float64(b.Dy()) * float64(height))
	}
	if maxWidth > 0 && width > maxWidth {
		width = maxWidth
	}
	width = max(width, 1)
	return scale(img, width, height)
}

// scale resamples img into a new w x h gray image.
func scale(img image.Image, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		xdraw.Copy(dst, image.Point{}, img, b, xdraw.Src, nil)
		return dst
	}
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}
