package extract

import (
	"context"
	"image"
	"strings"
)

// Extractor turns a page image into text. Vision models and OCR engines both
// implement it; the pipeline decides which image each one receives.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (Result, error)
}

type Result struct {
	Text       string
	Confidence float64 // 0..1
}

// Func adapts a plain function to Extractor.
type Func func(ctx context.Context, img image.Image) (Result, error)

func (f Func) Extract(ctx context.Context, img image.Image) (Result, error) {
	return f(ctx, img)
}

// Token is one recognised word with its engine confidence on a 0..100 scale.
// Engines report -1 when they have no confidence for a token.
type Token struct {
	Text       string
	Confidence float64
}

// NoConfidence is the sentinel engines use for tokens without a score.
const NoConfidence = -1

// FromTokens joins non-blank tokens with single spaces in reading order and
// averages the positive confidences, scaled to 0..1. Sentinel and zero scores
// are left out of the mean; no scored tokens yields 0.
func FromTokens(tokens []Token) Result {
	words := make([]string, 0, len(tokens))
	var sum float64
	var n int
	for _, tok := range tokens {
		if strings.TrimSpace(tok.Text) != "" {
			words = append(words, strings.TrimSpace(tok.Text))
		}
		if tok.Confidence > 0 {
			sum += tok.Confidence
			n++
		}
	}
	res := Result{Text: strings.Join(words, " ")}
	if n > 0 {
		res.Confidence = sum / float64(n) / 100
	}
	return res
}
