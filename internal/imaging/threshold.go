package imaging

import (
	"image"
	"math"
)

// ThresholdParams configures Gaussian adaptive binarization.
type ThresholdParams struct {
	BlockSize int // odd window size
	C         int // subtracted from the local weighted mean
}

var DefaultThreshold = ThresholdParams{BlockSize: 11, C: 2}

// AdaptiveThreshold sets a pixel to 255 when it is brighter than the
// Gaussian-weighted mean of its BlockSize neighbourhood minus C, else 0.
// Sigma follows the usual kernel-size rule 0.3*((k-1)/2-1)+0.8 and borders
// replicate the edge pixel.
func AdaptiveThreshold(src *image.Gray, p ThresholdParams) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	kernel := gaussianKernel(p.BlockSize)
	r := len(kernel) / 2

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var s float64
			for k, kv := range kernel {
				s += kv * float64(row[clampInt(x+k-r, 0, w-1)])
			}
			tmp[y*w+x] = s
		}
	}
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride:]
		orow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			var s float64
			for k, kv := range kernel {
				s += kv * tmp[clampInt(y+k-r, 0, h-1)*w+x]
			}
			mean := int(saturate8(s))
			if int(srow[x])-mean > -p.C {
				orow[x] = 255
			}
		}
	}
	return out
}

func gaussianKernel(size int) []float64 {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	r := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - r)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}
