// Package bootstrap builds a ready pipeline.Processor from configuration,
// detecting which external tools and model backends are usable.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/extract"
	"github.com/joseph-ayodele/docproc/internal/ocr"
	"github.com/joseph-ayodele/docproc/internal/pipeline"
	"github.com/joseph-ayodele/docproc/internal/render"
	"github.com/joseph-ayodele/docproc/internal/vision"
)

// NewProcessor wires every configured capability. Missing binaries disable
// their tier with a warning; an unknown vision provider is an error.
func NewProcessor(cfg *common.Config, logger *slog.Logger) (*pipeline.Processor, error) {
	return newProcessor(cfg, logger, ocr.NewExecRunner(logger), ocr.Available)
}

func newProcessor(cfg *common.Config, logger *slog.Logger, runner ocr.Runner, available func(string) bool) (*pipeline.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ocrCfg := OCRConfig(cfg.OCR)

	var rzOpts []render.Option
	rzOpts = append(rzOpts, render.WithLogger(logger))
	if pdf := pdfRenderer(cfg.Pipeline.PDFRenderer, ocrCfg, runner, available, logger); pdf != nil {
		rzOpts = append(rzOpts, render.WithPDFRenderer(pdf))
	}
	if cfg.OCR.HeicConverter != "" && available(cfg.OCR.HeicConverter) {
		rzOpts = append(rzOpts, render.WithHEICConverter(ocr.NewHEICConverter(ocrCfg, runner, logger)))
	}
	rasterizer := render.NewRasterizer(render.Config{
		DPI:      cfg.Pipeline.DPI,
		MaxPages: cfg.Pipeline.MaxPages,
	}, rzOpts...)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTextLayer(render.NewTextLayer(logger)),
	}

	if cfg.OCR.Enabled {
		if available(cfg.OCR.Tesseract) {
			opts = append(opts, pipeline.WithOCR(ocr.NewTesseractExtractor(ocrCfg, runner, logger)))
		} else {
			logger.Warn("tesseract not found; OCR tier disabled", "bin", cfg.OCR.Tesseract)
		}
	}

	vis, err := visionExtractor(cfg.Vision, logger)
	if err != nil {
		return nil, err
	}
	if vis != nil {
		opts = append(opts, pipeline.WithVision(vis))
	}

	p := pipeline.NewProcessor(rasterizer, pipeline.Config{
		Workers:          cfg.Pipeline.Workers,
		ExtractorTimeout: cfg.Pipeline.ExtractorTimeout,
		DirectText:       cfg.Pipeline.DirectText,
		StrictEmpty:      cfg.Pipeline.StrictEmpty,
	}, opts...)

	logger.Info("processor ready",
		"capabilities", p.Capabilities(),
		"pdf_renderer", cfg.Pipeline.PDFRenderer,
		"pdf_enabled", rasterizer.HasPDFRenderer(),
		"workers", cfg.Pipeline.Workers,
	)
	return p, nil
}

// OCRConfig maps the OCR config section onto the ocr package settings.
func OCRConfig(c common.OCRConfig) ocr.Config {
	return ocr.Config{
		Pdftoppm:         c.Pdftoppm,
		Tesseract:        c.Tesseract,
		TesseractLang:    c.TesseractLang,
		TessdataDir:      c.TessdataDir,
		PSM:              c.PSM,
		OEM:              c.OEM,
		HeicConverter:    c.HeicConverter,
		ArtifactCacheDir: c.ArtifactCacheDir,
	}
}

func pdfRenderer(mode string, ocrCfg ocr.Config, runner ocr.Runner, available func(string) bool, logger *slog.Logger) render.PDFRenderer {
	poppler := ocr.NewPopplerRenderer(ocrCfg, runner, logger)
	popplerOK := available(pdftoppmBin(ocrCfg))
	embedded := render.NewEmbeddedImageRenderer(logger)

	switch mode {
	case "none":
		return nil
	case "embedded":
		return embedded
	case "poppler":
		if !popplerOK {
			logger.Warn("pdftoppm not found; PDF rendering disabled", "bin", pdftoppmBin(ocrCfg))
			return nil
		}
		return poppler
	default:
		if popplerOK {
			return render.NewChainRenderer(logger, poppler, embedded)
		}
		logger.Warn("pdftoppm not found; scanned PDFs only", "bin", pdftoppmBin(ocrCfg))
		return embedded
	}
}

func pdftoppmBin(c ocr.Config) string {
	if c.Pdftoppm == "" {
		return "pdftoppm"
	}
	return c.Pdftoppm
}

func visionExtractor(c common.VisionConfig, logger *slog.Logger) (extract.Extractor, error) {
	vc := vision.Config{
		APIKey:            c.APIKey,
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		Temperature:       c.Temperature,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxImageMB:        c.MaxImageMB,
	}
	switch c.Provider {
	case "":
		logger.Info("no vision provider configured; vision tier disabled")
		return nil, nil
	case "openai":
		return vision.NewClient(vc, logger), nil
	case "langchain":
		model, err := vision.NewOpenAIModel(vc)
		if err != nil {
			return nil, err
		}
		return vision.NewLangChainExtractor(model, vc, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown vision provider %q", common.ErrValidation, c.Provider)
	}
}
