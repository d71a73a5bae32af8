package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/extract"
	"github.com/joseph-ayodele/docproc/internal/render"
)

// MinPrintableRatio is the share of printable runes a text layer needs
// before it is trusted over the image tiers.
const MinPrintableRatio = 0.85

type pageState int

const (
	stateNotExtracted pageState = iota
	stateDirectText
	stateVision
	stateOCR
	stateDone
)

// extractPage walks the tiers for one page. Each tier runs at most once and
// the first acceptable result ends the walk.
func (p *Processor) extractPage(ctx context.Context, pageNumber int, original image.Image, processed *image.Gray, direct *string, log *slog.Logger) (string, float64, constants.ExtractionMethod) {
	log = log.With("page", pageNumber)

	var (
		text   = document.ExtractionFailedText
		conf   float64
		method = constants.OCR
	)

	state := stateNotExtracted
	for state != stateDone {
		switch state {
		case stateNotExtracted:
			state = stateDirectText

		case stateDirectText:
			state = stateVision
			if direct == nil {
				continue
			}
			t := strings.TrimSpace(*direct)
			ratio := render.PrintableRatio(t)
			if t != "" && ratio >= MinPrintableRatio {
				text, conf, method = t, ratio, constants.DirectText
				state = stateDone
				continue
			}
			log.Debug("pipeline.direct_text.rejected", "chars", len(t), "printable_ratio", ratio)

		case stateVision:
			state = stateOCR
			if p.vision == nil {
				continue
			}
			res, err := p.callExtractor(ctx, "vision", p.vision, original)
			if err != nil {
				log.Warn("pipeline.vision.failed", "error", err)
				continue
			}
			if strings.TrimSpace(res.Text) == "" {
				log.Debug("pipeline.vision.blank")
				continue
			}
			text, conf, method = res.Text, clamp01(res.Confidence), constants.VisionModel
			state = stateDone

		case stateOCR:
			state = stateDone
			if p.ocr == nil {
				log.Warn("pipeline.page.no_extractor_left")
				continue
			}
			res, err := p.callExtractor(ctx, "ocr", p.ocr, processed)
			if err != nil {
				log.Warn("pipeline.ocr.failed", "error", err)
				continue
			}
			text, conf, method = strings.TrimSpace(res.Text), clamp01(res.Confidence), constants.OCR
			if text == "" {
				conf = 0
			}
		}
	}
	return text, conf, method
}

type outcome struct {
	res extract.Result
	err error
}

// callExtractor time-boxes one extractor call. A timeout, a panic and a
// returned error are all failures.
func (p *Processor) callExtractor(ctx context.Context, name string, e extract.Extractor, img image.Image) (extract.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ExtractorTimeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := e.Extract(ctx, img)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return extract.Result{}, common.ExtractorFailureError(name, o.err)
		}
		return o.res, nil
	case <-ctx.Done():
		return extract.Result{}, common.ExtractorFailureError(name, ctx.Err())
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
