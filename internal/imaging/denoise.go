package imaging

import (
	"image"
	"math"
)

// NLMParams configures non-local means denoising.
type NLMParams struct {
	H              float64 // filter strength
	TemplateWindow int     // odd patch size compared around each pixel
	SearchWindow   int     // odd neighbourhood searched for similar patches
}

var DefaultNLM = NLMParams{H: 10, TemplateWindow: 7, SearchWindow: 21}

// nlmWeightCutoff drops weights below exp(-7) (about 0.001).
const nlmWeightCutoff = 7.0

// DenoiseNLM applies non-local means to a grayscale image. Each output pixel
// is the weighted mean of the pixels in its search window, weighted by
// exp(-d/h^2) where d is the mean squared difference of the two patches.
//
// Patch distances are computed per search offset over the whole image with a
// sliding box sum, so the cost is O(pixels * searchWindow^2).
func DenoiseNLM(src *image.Gray, p NLMParams) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	tr := p.TemplateWindow / 2
	sr := p.SearchWindow / 2
	pad := tr + sr

	// reflect-101 padded copy
	pw, ph := w+2*pad, h+2*pad
	padded := make([]int32, pw*ph)
	for y := 0; y < ph; y++ {
		sy := reflect101(y-pad, h)
		for x := 0; x < pw; x++ {
			padded[y*pw+x] = int32(src.Pix[sy*src.Stride+reflect101(x-pad, w)])
		}
	}

	// weight lookup indexed by the integer patch sum of squared differences
	area := float64(p.TemplateWindow * p.TemplateWindow)
	hh := p.H * p.H
	maxSum := int(nlmWeightCutoff * hh * area)
	weights := make([]float32, maxSum+1)
	for i := range weights {
		weights[i] = float32(math.Exp(-float64(i) / area / hh))
	}

	num := make([]float32, w*h)
	den := make([]float32, w*h)

	// diff2 covers template centres over the image plus the template radius
	dw, dh := w+2*tr, h+2*tr
	diff2 := make([]int32, dw*dh)
	colSum := make([]int32, dw*h)

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			for y := 0; y < dh; y++ {
				py := y + pad - tr
				a := padded[py*pw+sr : py*pw+sr+dw]
				b := padded[(py+dy)*pw+sr+dx : (py+dy)*pw+sr+dx+dw]
				row := diff2[y*dw : y*dw+dw]
				for x := range row {
					d := a[x] - b[x]
					row[x] = d * d
				}
			}
			// vertical box sums
			for x := 0; x < dw; x++ {
				var s int32
				for k := 0; k < 2*tr+1; k++ {
					s += diff2[k*dw+x]
				}
				colSum[x] = s
				for y := 1; y < h; y++ {
					s += diff2[(y+2*tr)*dw+x] - diff2[(y-1)*dw+x]
					colSum[y*dw+x] = s
				}
			}
			// horizontal box sums, then accumulate
			for y := 0; y < h; y++ {
				cs := colSum[y*dw : y*dw+dw]
				var s int32
				for k := 0; k < 2*tr+1; k++ {
					s += cs[k]
				}
				nb := padded[(y+pad+dy)*pw+pad+dx:]
				for x := 0; x < w; x++ {
					if x > 0 {
						s += cs[x+2*tr] - cs[x-1]
					}
					if int(s) <= maxSum {
						wt := weights[s]
						num[y*w+x] += wt * float32(nb[x])
						den[y*w+x] += wt
					}
				}
			}
		}
	}

	for y := 0; y < h; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			row[x] = saturate8(float64(num[i] / den[i]))
		}
	}
	return out
}
