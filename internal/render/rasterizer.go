package render

import (
	"context"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
)

const DefaultDPI = 200

// PDFRenderer turns PDF bytes into one raster per page, in page order.
type PDFRenderer interface {
	RenderPages(ctx context.Context, data []byte, dpi int) ([]image.Image, error)
}

// ImageConverter turns bytes of an undecodable format into PNG bytes.
type ImageConverter interface {
	ConvertToPNG(ctx context.Context, data []byte) ([]byte, error)
}

type Config struct {
	DPI      int // default 200
	MaxPages int // 0 = no limit
}

// Rasterizer converts a classified document into page images.
type Rasterizer struct {
	cfg    Config
	pdf    PDFRenderer
	heic   ImageConverter
	logger *slog.Logger
}

type Option func(*Rasterizer)

// WithPDFRenderer enables PDF input. Without it PDFs are unsupported.
func WithPDFRenderer(r PDFRenderer) Option {
	return func(rz *Rasterizer) { rz.pdf = r }
}

// WithHEICConverter enables HEIC/HEIF photos for otherwise unknown inputs.
func WithHEICConverter(c ImageConverter) Option {
	return func(rz *Rasterizer) { rz.heic = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(rz *Rasterizer) {
		if l != nil {
			rz.logger = l
		}
	}
}

func NewRasterizer(cfg Config, opts ...Option) *Rasterizer {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	rz := &Rasterizer{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(rz)
	}
	return rz
}

// HasPDFRenderer reports whether PDFs can be rasterized.
func (r *Rasterizer) HasPDFRenderer() bool { return r.pdf != nil }

// Rasterize renders every page of data. PDFs go through the PDF renderer,
// images are decoded and normalized to RGB, and unknown inputs get one
// decode attempt (plus HEIC conversion when configured).
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, filename string, docType constants.DocumentType) ([]image.Image, error) {
	var pages []image.Image
	switch docType {
	case constants.NativePDF, constants.ScannedPDF:
		if r.pdf == nil {
			return nil, common.UnsupportedFormatError("no PDF renderer available for %q", filename)
		}
		rendered, err := r.pdf.RenderPages(ctx, data, r.cfg.DPI)
		if err != nil {
			r.logger.Error("rasterize.pdf.failed", "filename", filename, "renderer", rendererName(r.pdf), "error", err)
			return nil, common.ConversionFailedError("render pdf pages", err)
		}
		pages = rendered

	case constants.Image:
		img, err := decodeRGB(data)
		if err != nil {
			return nil, common.ConversionFailedError("decode image", err)
		}
		pages = []image.Image{img}

	default:
		img, err := decodeRGB(data)
		if err != nil && r.heic != nil && constants.IsHEICExt(filepath.Ext(filename)) {
			img, err = r.convertHEIC(ctx, data)
			if err != nil {
				return nil, common.ConversionFailedError("convert heic", err)
			}
		}
		if err != nil {
			return nil, common.UnsupportedFormatError("cannot decode %q as an image", filename)
		}
		pages = []image.Image{img}
	}

	if r.cfg.MaxPages > 0 && len(pages) > r.cfg.MaxPages {
		r.logger.Warn("rasterize.truncated", "filename", filename, "pages", len(pages), "max_pages", r.cfg.MaxPages)
		pages = pages[:r.cfg.MaxPages]
	}
	r.logger.Debug("rasterize.done", "filename", filename, "document_type", docType, "pages", len(pages))
	return pages, nil
}

func (r *Rasterizer) convertHEIC(ctx context.Context, data []byte) (image.Image, error) {
	png, err := r.heic.ConvertToPNG(ctx, data)
	if err != nil {
		return nil, err
	}
	return decodeRGB(png)
}

func rendererName(r PDFRenderer) string {
	if n, ok := r.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
