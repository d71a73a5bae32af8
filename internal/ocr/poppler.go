package ocr

import (
	"context"
	"fmt"
	"image"
	_ "image/png" // pdftoppm output
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// PopplerRenderer rasterizes PDF pages with pdftoppm.
type PopplerRenderer struct {
	bin    string
	runner Runner
	logger *slog.Logger
}

func NewPopplerRenderer(cfg Config, runner Runner, logger *slog.Logger) *PopplerRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &PopplerRenderer{bin: cfg.withDefaults().Pdftoppm, runner: runner, logger: logger}
}

func (r *PopplerRenderer) Name() string { return "pdftoppm" }

// Available reports whether the pdftoppm binary can be found.
func (r *PopplerRenderer) Available() bool {
	return Available(r.bin)
}

// RenderPages writes data to a temp dir, runs pdftoppm -r <dpi> -png and
// decodes the numbered outputs in page order.
func (r *PopplerRenderer) RenderPages(ctx context.Context, data []byte, dpi int) ([]image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "docproc-pp-*")
	if err != nil {
		return nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 200 -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.bin, "-r", strconv.Itoa(dpi), "-png", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads page numbers to a common width, so lexical order is page order
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)

	pages := make([]image.Image, 0, len(matches))
	for _, path := range matches {
		img, err := decodeFile(path)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		pages = append(pages, img)
	}
	r.logger.Debug("pdftoppm rendered pages", "pages", len(pages), "dpi", dpi)
	return pages, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
