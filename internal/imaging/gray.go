// Package imaging holds the pure raster algorithms of the pipeline: quality
// assessment and the preprocessing steps (denoise, contrast, deskew, binarize).
// Every function takes its input by value semantics and returns a new buffer.
package imaging

import (
	"image"
	"image/color"
	"image/draw"
)

// IsMultiChannel reports whether img carries colour channels that need a
// luminance conversion before the grayscale steps.
func IsMultiChannel(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return false
	}
	return true
}

// ToGray converts img to 8-bit luminance (BT.601 weights) with origin at (0,0).
// A *image.Gray input is copied, never aliased.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			so := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], src.Pix[so:so+b.Dx()])
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			so := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := out.Pix[y*out.Stride:]
			for x := 0; x < b.Dx(); x++ {
				p := src.Pix[so+4*x : so+4*x+3 : so+4*x+3]
				row[x] = luma8(p[0], p[1], p[2])
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			so := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := out.Pix[y*out.Stride:]
			for x := 0; x < b.Dx(); x++ {
				p := src.Pix[so+4*x : so+4*x+3 : so+4*x+3]
				row[x] = luma8(p[0], p[1], p[2])
			}
		}
	case *image.YCbCr:
		for y := 0; y < b.Dy(); y++ {
			row := out.Pix[y*out.Stride:]
			for x := 0; x < b.Dx(); x++ {
				row[x] = src.Y[src.YOffset(b.Min.X+x, b.Min.Y+y)]
			}
		}
	default:
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	}
	return out
}

// ToRGB flattens img onto a white background as a 3-channel RGBA buffer.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}

func luma8(r, g, b uint8) uint8 {
	// same fixed-point weights as color.GrayModel
	y := (19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16
	return uint8(y)
}

// reflect101 maps i into [0,n) mirroring around the edge pixel (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
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

func saturate8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
