package imaging

import (
	"image"
	"image/draw"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const (
	// MinSkewDegrees is the smallest median angle worth correcting.
	MinSkewDegrees = 0.5
	// maxSkewDegrees excludes near-vertical segments from the estimate.
	maxSkewDegrees = 45.0
)

// DetectSkew estimates page tilt in degrees from the median angle of long
// near-horizontal edge segments. It returns 0 when there is no evidence or
// when the median is below MinSkewDegrees.
func DetectSkew(src *image.Gray) float64 {
	edges := Canny(src, DefaultCanny)
	segments := HoughLinesP(edges, DefaultHough)

	angles := make([]float64, 0, len(segments))
	for _, s := range segments {
		if s.X2 == s.X1 {
			continue
		}
		deg := math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1)) * 180 / math.Pi
		if math.Abs(deg) < maxSkewDegrees {
			angles = append(angles, deg)
		}
	}
	if len(angles) == 0 {
		return 0
	}
	angle := median(angles)
	if math.Abs(angle) < MinSkewDegrees {
		return 0
	}
	return angle
}

// Deskew rotates src so the detected tilt becomes horizontal and reports the
// tilt it corrected. When no correction is needed the input is returned as is.
func Deskew(src *image.Gray) (*image.Gray, float64) {
	angle := DetectSkew(src)
	if angle == 0 {
		return src, 0
	}
	return Rotate(src, -angle), angle
}

// Rotate turns src by degrees about its centre keeping the original size.
// Angles follow the image frame (y grows downward), so positive turns
// clockwise as displayed, the same sign DetectSkew reports for a line falling
// to the right. Catmull-Rom cubic interpolation is used and pixels sampled
// outside the source replicate the nearest edge.
func Rotate(src *image.Gray, degrees float64) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	theta := degrees * math.Pi / 180
	sin, cos := math.Sincos(theta)

	margin := int(math.Ceil(float64(max(w, h))/2*math.Abs(sin))) + 4
	padded := replicatePad(src, margin)

	cx := float64(w/2) + 0.5
	cy := float64(h/2) + 0.5
	pcx, pcy := cx+float64(margin), cy+float64(margin)

	// dst = R(theta) * (p - padded centre) + centre
	s2d := f64.Aff3{
		cos, -sin, cx - (cos*pcx - sin*pcy),
		sin, cos, cy - (sin*pcx + cos*pcy),
	}
	xdraw.CatmullRom.Transform(dst, s2d, padded, padded.Bounds(), xdraw.Src, nil)
	return dst
}

func replicatePad(src *image.Gray, m int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w+2*m, h+2*m))
	draw.Draw(out, image.Rect(m, m, m+w, m+h), src, src.Rect.Min, draw.Src)
	for y := 0; y < h+2*m; y++ {
		sy := clampInt(y-m, 0, h-1) + m
		row := out.Pix[y*out.Stride : y*out.Stride+w+2*m]
		if sy != y {
			copy(row[m:m+w], out.Pix[sy*out.Stride+m:sy*out.Stride+m+w])
		}
		left, right := row[m], row[m+w-1]
		for x := 0; x < m; x++ {
			row[x] = left
			row[m+w+x] = right
		}
	}
	return out
}

func median(vs []float64) float64 {
	s := append([]float64(nil), vs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
