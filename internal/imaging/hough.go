package imaging

import (
	"image"
	"math"
	"math/rand/v2"
)

// HoughParams configures the progressive probabilistic Hough transform.
type HoughParams struct {
	Rho           float64 // distance resolution in pixels
	Theta         float64 // angle resolution in radians
	Threshold     int     // accumulator votes needed before a line is traced
	MinLineLength int
	MaxLineGap    int
}

var DefaultHough = HoughParams{
	Rho:           1,
	Theta:         math.Pi / 180,
	Threshold:     100,
	MinLineLength: 100,
	MaxLineGap:    10,
}

// Segment is a detected line segment in pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// houghSeed keeps segment detection reproducible for identical inputs.
const houghSeed = 0x5eed_d0c5

// HoughLinesP finds line segments among the non-zero pixels of edges.
// Points are visited in a pseudo-random order; each visited point votes, and
// once its strongest bin reaches Threshold the line through it is walked in
// both directions (bridging gaps up to MaxLineGap). Pixels on an accepted
// segment are removed from the accumulator.
func HoughLinesP(edges *image.Gray, p HoughParams) []Segment {
	w, h := edges.Rect.Dx(), edges.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	numAngle := int(math.Round(math.Pi / p.Theta))
	numRho := int(math.Round(float64((w+h)*2+1) / p.Rho))
	irho := 1 / p.Rho

	cosT := make([]float64, numAngle)
	sinT := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		a := float64(n) * p.Theta
		cosT[n] = math.Cos(a) * irho
		sinT[n] = math.Sin(a) * irho
	}

	mask := make([]bool, w*h)
	var points []image.Point
	for y := 0; y < h; y++ {
		row := edges.Pix[y*edges.Stride:]
		for x := 0; x < w; x++ {
			if row[x] != 0 {
				mask[y*w+x] = true
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}

	acc := make([]int32, numAngle*numRho)
	rhoIndex := func(n, x, y int) int {
		return int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + (numRho-1)/2
	}

	rng := rand.New(rand.NewPCG(houghSeed, uint64(w)<<32|uint64(h)))
	const shift = 16
	var lines []Segment

	for count := len(points); count > 0; count-- {
		idx := rng.IntN(count)
		pt := points[idx]
		points[idx] = points[count-1]

		if !mask[pt.Y*w+pt.X] {
			continue
		}

		maxVal, maxN := int32(p.Threshold-1), 0
		for n := 0; n < numAngle; n++ {
			r := rhoIndex(n, pt.X, pt.Y)
			acc[n*numRho+r]++
			if v := acc[n*numRho+r]; v > maxVal {
				maxVal, maxN = v, n
			}
		}
		if maxVal < int32(p.Threshold) {
			continue
		}

		// walk direction is perpendicular to the bin's normal
		a := -sinT[maxN]
		b := cosT[maxN]
		x0, y0 := pt.X, pt.Y
		var dx0, dy0 int
		xflag := math.Abs(a) > math.Abs(b)
		if xflag {
			dx0 = 1
			if a <= 0 {
				dx0 = -1
			}
			dy0 = int(math.Round(b * (1 << shift) / math.Abs(a)))
			y0 = (y0 << shift) + (1 << (shift - 1))
		} else {
			dy0 = 1
			if b <= 0 {
				dy0 = -1
			}
			dx0 = int(math.Round(a * (1 << shift) / math.Abs(b)))
			x0 = (x0 << shift) + (1 << (shift - 1))
		}
		pixel := func(x, y int) (int, int) {
			if xflag {
				return x, y >> shift
			}
			return x >> shift, y
		}

		var ends [2]image.Point
		for k := 0; k < 2; k++ {
			gap := 0
			x, y, dx, dy := x0, y0, dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for ; ; x, y = x+dx, y+dy {
				j1, i1 := pixel(x, y)
				if j1 < 0 || j1 >= w || i1 < 0 || i1 >= h {
					break
				}
				if mask[i1*w+j1] {
					gap = 0
					ends[k] = image.Point{X: j1, Y: i1}
				} else {
					gap++
					if gap > p.MaxLineGap {
						break
					}
				}
			}
		}

		good := abs(ends[1].X-ends[0].X) >= p.MinLineLength ||
			abs(ends[1].Y-ends[0].Y) >= p.MinLineLength

		for k := 0; k < 2; k++ {
			x, y, dx, dy := x0, y0, dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for ; ; x, y = x+dx, y+dy {
				j1, i1 := pixel(x, y)
				if mask[i1*w+j1] {
					if good {
						for n := 0; n < numAngle; n++ {
							acc[n*numRho+rhoIndex(n, j1, i1)]--
						}
					}
					mask[i1*w+j1] = false
				}
				if i1 == ends[k].Y && j1 == ends[k].X {
					break
				}
			}
		}

		if good {
			lines = append(lines, Segment{X1: ends[0].X, Y1: ends[0].Y, X2: ends[1].X, Y2: ends[1].Y})
		}
	}
	return lines
}
