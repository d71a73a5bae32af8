package imaging

import (
	"image"
	"math"
)

const LowQualityThreshold = 40.0

// QualityMetrics summarises how readable a page raster is.
type QualityMetrics struct {
	Sharpness    float64 `json:"sharpness"`
	Contrast     float64 `json:"contrast"`
	Brightness   float64 `json:"brightness"`
	NoiseLevel   float64 `json:"noise_level"`
	QualityScore float64 `json:"quality_score"`
	IsLowQuality bool    `json:"is_low_quality"`
}

// Assess computes quality metrics on the luminance of img. It is pure and
// deterministic; an empty image scores on brightness 0 and no noise.
func Assess(img image.Image) QualityMetrics {
	g := img
	if IsMultiChannel(img) {
		g = ToGray(img)
	}
	gray, ok := g.(*image.Gray)
	if !ok {
		gray = ToGray(g)
	}

	mean, std := meanStd(gray)
	m := QualityMetrics{
		Sharpness:  laplacianVariance(gray),
		Contrast:   std,
		Brightness: mean,
		NoiseLevel: estimateNoise(gray),
	}
	m.QualityScore = qualityScore(m.Sharpness, m.Contrast, m.Brightness, m.NoiseLevel)
	m.IsLowQuality = m.QualityScore < LowQualityThreshold
	return m
}

// qualityScore weights sharpness 30, contrast 30, brightness 20 and noise 20.
// Each term is clamped to its weight before summing.
func qualityScore(sharpness, contrast, brightness, noise float64) float64 {
	sharp := 30 * math.Min(1, sharpness/500)
	cont := 30 * math.Min(1, contrast/80)
	bright := 20 * clamp01(1-math.Abs(brightness-128)/128)
	noisy := 20 * (1 - math.Min(1, math.Max(0, noise)/50))
	return math.Max(0, math.Min(100, sharp+cont+bright+noisy))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func meanStd(g *image.Gray) (float64, float64) {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := float64(w * h)
	if n == 0 {
		return 0, 0
	}
	var sum, sq float64
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, p := range row {
			v := float64(p)
			sum += v
			sq += v * v
		}
	}
	mean := sum / n
	variance := sq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// laplacianVariance is the variance of the 4-neighbour Laplacian response,
// computed with a reflect-101 border.
func laplacianVariance(g *image.Gray) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}
	at := func(x, y int) float64 {
		return float64(g.Pix[reflect101(y, h)*g.Stride+reflect101(x, w)])
	}
	var sum, sq float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := at(x, y-1) + at(x-1, y) + at(x+1, y) + at(x, y+1) - 4*at(x, y)
			sum += v
			sq += v * v
		}
	}
	n := float64(w * h)
	mean := sum / n
	return math.Max(0, sq/n-mean*mean)
}

// estimateNoise is Immerkaer's fast noise variance estimator over interior pixels.
func estimateNoise(g *image.Gray) float64 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w < 3 || h < 3 {
		return 0
	}
	var sum float64
	for y := 1; y < h-1; y++ {
		up := g.Pix[(y-1)*g.Stride:]
		mid := g.Pix[y*g.Stride:]
		dn := g.Pix[(y+1)*g.Stride:]
		for x := 1; x < w-1; x++ {
			v := int(up[x-1]) - 2*int(up[x]) + int(up[x+1]) +
				-2*int(mid[x-1]) + 4*int(mid[x]) - 2*int(mid[x+1]) +
				int(dn[x-1]) - 2*int(dn[x]) + int(dn[x+1])
			if v < 0 {
				v = -v
			}
			sum += float64(v)
		}
	}
	return sum * math.Sqrt(0.5*math.Pi) / (6 * float64(w-2) * float64(h-2))
}
