package imaging

import (
	"image"
	"math"
)

// CLAHEParams configures contrast-limited adaptive histogram equalisation.
type CLAHEParams struct {
	ClipLimit float64
	TilesX    int
	TilesY    int
}

var DefaultCLAHE = CLAHEParams{ClipLimit: 2.0, TilesX: 8, TilesY: 8}

// EqualizeCLAHE equalises each tile's histogram with clipping, then blends the
// four nearest tile mappings bilinearly per pixel. Tiles that overhang the
// image edge read reflect-101 mirrored pixels.
func EqualizeCLAHE(src *image.Gray, p CLAHEParams) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	tx, ty := max(1, p.TilesX), max(1, p.TilesY)
	tileW := (w + tx - 1) / tx
	tileH := (h + ty - 1) / ty
	tileArea := tileW * tileH

	clip := 0
	if p.ClipLimit > 0 {
		clip = max(1, int(p.ClipLimit*float64(tileArea)/256))
	}
	lutScale := 255.0 / float64(tileArea)

	luts := make([][256]uint8, tx*ty)
	var hist [256]int
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			clear(hist[:])
			for y := j * tileH; y < (j+1)*tileH; y++ {
				row := src.Pix[reflect101(y, h)*src.Stride:]
				for x := i * tileW; x < (i+1)*tileW; x++ {
					hist[row[reflect101(x, w)]]++
				}
			}
			if clip > 0 {
				clipHistogram(&hist, clip)
			}
			lut := &luts[j*tx+i]
			sum := 0
			for k := 0; k < 256; k++ {
				sum += hist[k]
				lut[k] = saturate8(float64(sum) * lutScale)
			}
		}
	}

	invTW := 1.0 / float64(tileW)
	invTH := 1.0 / float64(tileH)
	for y := 0; y < h; y++ {
		tyf := float64(y)*invTH - 0.5
		ty1 := int(math.Floor(tyf))
		ty2 := ty1 + 1
		ya := tyf - float64(ty1)
		ty1 = max(ty1, 0)
		ty2 = min(ty2, ty-1)

		srow := src.Pix[y*src.Stride:]
		orow := out.Pix[y*out.Stride:]
		for x := 0; x < w; x++ {
			txf := float64(x)*invTW - 0.5
			tx1 := int(math.Floor(txf))
			tx2 := tx1 + 1
			xa := txf - float64(tx1)
			tx1 = max(tx1, 0)
			tx2 = min(tx2, tx-1)

			v := srow[x]
			top := float64(luts[ty1*tx+tx1][v])*(1-xa) + float64(luts[ty1*tx+tx2][v])*xa
			bot := float64(luts[ty2*tx+tx1][v])*(1-xa) + float64(luts[ty2*tx+tx2][v])*xa
			orow[x] = saturate8(top*(1-ya) + bot*ya)
		}
	}
	return out
}

// clipHistogram caps every bin at limit and spreads the excess evenly.
func clipHistogram(hist *[256]int, limit int) {
	clipped := 0
	for k := range hist {
		if hist[k] > limit {
			clipped += hist[k] - limit
			hist[k] = limit
		}
	}
	batch := clipped / 256
	residual := clipped - batch*256
	for k := range hist {
		hist[k] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for k := 0; k < 256 && residual > 0; k += step {
			hist[k]++
			residual--
		}
	}
}
