package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
)

// EncodeImageBase64 encodes img as base64 PNG.
func EncodeImageBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeImageBase64 decodes a base64 string holding any registered image
// format. A data URL prefix is accepted.
func DecodeImageBase64(s string) (image.Image, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// encodeForUpload returns PNG bytes no larger than maxBytes, downscaling the
// image when needed. maxBytes <= 0 disables the limit.
func encodeForUpload(img image.Image, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	for attempt := 0; maxBytes > 0 && buf.Len() > maxBytes && attempt < 5; attempt++ {
		scale := math.Sqrt(float64(maxBytes)/float64(buf.Len())) * 0.9
		b := img.Bounds()
		w := max(1, int(float64(b.Dx())*scale))
		h := max(1, int(float64(b.Dy())*scale))
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		img = dst

		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	}
	if maxBytes > 0 && buf.Len() > maxBytes {
		return nil, fmt.Errorf("image still %d bytes after downscaling (limit %d)", buf.Len(), maxBytes)
	}
	return buf.Bytes(), nil
}

func dataURL(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
