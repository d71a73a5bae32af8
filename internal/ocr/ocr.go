package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/docproc/internal/extract"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	HeicConverter    string // heif-convert | magick | sips
	ArtifactCacheDir string
}

func (c Config) withDefaults() Config {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	return c
}

// TesseractExtractor is the OCR tier: it runs tesseract in TSV mode on a page
// image and reports the recognised words with their mean confidence.
type TesseractExtractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

var _ extract.Extractor = (*TesseractExtractor)(nil)

func NewTesseractExtractor(cfg Config, runner Runner, logger *slog.Logger) *TesseractExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &TesseractExtractor{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Available reports whether the configured tesseract binary can be found.
func (e *TesseractExtractor) Available() bool {
	return Available(e.cfg.Tesseract)
}

func (e *TesseractExtractor) Extract(ctx context.Context, img image.Image) (extract.Result, error) {
	start := time.Now()

	f, err := os.CreateTemp("", "docproc-page-*.png")
	if err != nil {
		return extract.Result{}, err
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			e.logger.Warn("failed to remove page image", "path", path, "error", err)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return extract.Result{}, fmt.Errorf("encode page png: %w", err)
	}
	if err := f.Close(); err != nil {
		return extract.Result{}, err
	}

	tokens, err := e.recognize(ctx, path)
	if err != nil {
		return extract.Result{}, err
	}
	res := extract.FromTokens(tokens)
	e.logger.Debug("ocr.page.done",
		"tokens", len(tokens),
		"chars", len(res.Text),
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// recognize runs: tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] tsv
func (e *TesseractExtractor) recognize(ctx context.Context, path string) ([]extract.Token, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return parseTSV(out), nil
}
