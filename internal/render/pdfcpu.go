package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/docproc/internal/imaging"
)

func readPDF(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	ctx, err := readPDF(data)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

// EmbeddedImageRenderer rasterizes scanned PDFs without external tools by
// decoding the largest image XObject placed on each page. It cannot draw
// vector content, so pages without an image fail the render.
type EmbeddedImageRenderer struct {
	logger *slog.Logger
}

func NewEmbeddedImageRenderer(logger *slog.Logger) *EmbeddedImageRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddedImageRenderer{logger: logger}
}

func (r *EmbeddedImageRenderer) Name() string { return "pdfcpu-embedded" }

// RenderPages ignores dpi: embedded rasters are returned at native resolution.
func (r *EmbeddedImageRenderer) RenderPages(ctx context.Context, data []byte, _ int) ([]image.Image, error) {
	pdf, err := readPDF(data)
	if err != nil {
		return nil, err
	}

	pages := make([]image.Image, 0, pdf.PageCount)
	for pageNr := 1; pageNr <= pdf.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := largestPageImage(pdf, pageNr)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, imaging.ToRGB(img))
	}
	r.logger.Debug("embedded images extracted", "pages", len(pages))
	return pages, nil
}

func largestPageImage(pdf *model.Context, pageNr int) (image.Image, error) {
	imgs, err := pdfcpu.ExtractPageImages(pdf, pageNr, false)
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	var (
		best     image.Image
		bestArea int
		lastErr  error
	)
	for _, im := range imgs {
		if im.Reader == nil {
			continue
		}
		decoded, _, err := image.Decode(im.Reader)
		if err != nil {
			lastErr = fmt.Errorf("decode %s image %s: %w", im.FileType, im.Name, err)
			continue
		}
		b := decoded.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = decoded, area
		}
	}
	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("no embedded image")
	}
	return best, nil
}

// TextLayer reads the text already present in a PDF's content streams.
type TextLayer struct {
	logger *slog.Logger
}

func NewTextLayer(logger *slog.Logger) *TextLayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextLayer{logger: logger}
}

// PageTexts returns one cleaned string per page. Pages whose content cannot
// be read yield "".
func (t *TextLayer) PageTexts(ctx context.Context, data []byte) ([]string, error) {
	pdf, err := readPDF(data)
	if err != nil {
		return nil, err
	}
	texts := make([]string, pdf.PageCount)
	for pageNr := 1; pageNr <= pdf.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		texts[pageNr-1] = pageText(pdf, pageNr)
	}
	return texts, nil
}

func pageText(pdf *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pdf, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}
