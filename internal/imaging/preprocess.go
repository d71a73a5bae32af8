package imaging

import (
	"fmt"
	"image"
	"math"
)

// Labels recorded in ProcessedPage.PreprocessingApplied.
const (
	OpGrayscale      = "grayscale_conversion"
	OpNoiseReduction = "noise_reduction"
	OpContrast       = "contrast_enhancement"
	OpBinarization   = "adaptive_binarization"
)

// DeskewLabel formats the label recorded for an applied rotation.
func DeskewLabel(angle float64) string {
	return fmt.Sprintf("deskew_%.1f_degrees", angle)
}

// Preprocessor runs the fixed enhancement chain on page rasters.
type Preprocessor struct {
	NLM       NLMParams
	CLAHE     CLAHEParams
	Threshold ThresholdParams
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		NLM:       DefaultNLM,
		CLAHE:     DefaultCLAHE,
		Threshold: DefaultThreshold,
	}
}

// Preprocess produces the OCR-ready raster and the ordered list of steps
// applied: grayscale (multi-channel input only), denoise, CLAHE, deskew when
// the tilt exceeds MinSkewDegrees, and binarization when aggressive is set.
// It never fails and never mutates img.
func (p *Preprocessor) Preprocess(img image.Image, aggressive bool) (*image.Gray, []string) {
	var applied []string

	gray, ok := img.(*image.Gray)
	if IsMultiChannel(img) {
		gray = ToGray(img)
		applied = append(applied, OpGrayscale)
	} else if !ok {
		// 16-bit gray: narrowing is not a channel conversion
		gray = ToGray(img)
	}

	gray = DenoiseNLM(gray, p.NLM)
	applied = append(applied, OpNoiseReduction)

	gray = EqualizeCLAHE(gray, p.CLAHE)
	applied = append(applied, OpContrast)

	if rotated, angle := Deskew(gray); math.Abs(angle) > MinSkewDegrees {
		gray = rotated
		applied = append(applied, DeskewLabel(angle))
	}

	if aggressive {
		gray = AdaptiveThreshold(gray, p.Threshold)
		applied = append(applied, OpBinarization)
	}
	return gray, applied
}
