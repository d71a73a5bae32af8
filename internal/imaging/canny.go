package imaging

import (
	"image"
)

// CannyParams configures the edge detector. Only a 3x3 Sobel aperture is supported.
type CannyParams struct {
	Low  int
	High int
}

var DefaultCanny = CannyParams{Low: 50, High: 150}

// Canny returns a binary edge map (255 = edge) using L1 gradient magnitude,
// non-maximum suppression and hysteresis between Low and High.
func Canny(src *image.Gray, p CannyParams) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w < 3 || h < 3 {
		return out
	}

	at := func(x, y int) int {
		return int(src.Pix[reflect101(y, h)*src.Stride+reflect101(x, w)])
	}
	gx := make([]int, w*h)
	gy := make([]int, w*h)
	mag := make([]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			dy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			i := y*w + x
			gx[i], gy[i] = dx, dy
			mag[i] = abs(dx) + abs(dy)
		}
	}

	const (
		weak   = 1 // candidate between Low and High
		strong = 2
	)
	state := make([]uint8, w*h)
	var stack []int

	// tan(22.5) and tan(67.5) in 15-bit fixed point
	const (
		tg22  = 13573
		shift = 15
	)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= p.Low {
				continue
			}
			ax, ay := abs(gx[i]), abs(gy[i])
			tg22x := ax * tg22
			ay15 := ay << shift
			var n1, n2 int
			switch {
			case ay15 < tg22x:
				// horizontal gradient, compare left and right
				n1, n2 = mag[i-1], mag[i+1]
			case ay15 > tg22x+(ax<<(shift+1)):
				// vertical gradient
				n1, n2 = mag[i-w], mag[i+w]
			default:
				if (gx[i] < 0) != (gy[i] < 0) {
					n1, n2 = mag[i-w+1], mag[i+w-1]
				} else {
					n1, n2 = mag[i-w-1], mag[i+w+1]
				}
			}
			if m > n1 && m >= n2 {
				if m > p.High {
					state[i] = strong
					stack = append(stack, i)
				} else {
					state[i] = weak
				}
			}
		}
	}

	// hysteresis: promote weak pixels 8-connected to strong ones
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out.Pix[(i/w)*out.Stride+i%w] = 255
		for _, d := range [8]int{-w - 1, -w, -w + 1, -1, 1, w - 1, w, w + 1} {
			j := i + d
			if j < 0 || j >= len(state) {
				continue
			}
			if state[j] == weak {
				state[j] = strong
				stack = append(stack, j)
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
