package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/extract"
	"github.com/joseph-ayodele/docproc/internal/imaging"
	"github.com/joseph-ayodele/docproc/internal/ocr"
)

const DefaultExtractorTimeout = 60 * time.Second

// Rasterizer turns classified document bytes into page images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, filename string, docType constants.DocumentType) ([]image.Image, error)
}

// TextLayer reads embedded page text from native PDFs.
type TextLayer interface {
	PageTexts(ctx context.Context, data []byte) ([]string, error)
}

type Config struct {
	Workers          int           // default runtime.NumCPU()
	ExtractorTimeout time.Duration // per extractor call; default 60s
	DirectText       bool          // try the PDF text layer before the image tiers
	StrictEmpty      bool          // zero pages is ErrEmptyDocument instead of an empty result
}

// Processor runs the document pipeline: classify, rasterize, then per page
// assess, preprocess and extract, and finally aggregate.
type Processor struct {
	cfg        Config
	rasterizer Rasterizer
	pre        *imaging.Preprocessor
	vision     extract.Extractor
	ocr        extract.Extractor
	textLayer  TextLayer
	logger     *slog.Logger
}

type Option func(*Processor)

// WithVision sets the primary extractor. It receives the original page image.
func WithVision(e extract.Extractor) Option {
	return func(p *Processor) { p.vision = e }
}

// WithOCR sets the fallback extractor. It receives the preprocessed page image.
func WithOCR(e extract.Extractor) Option {
	return func(p *Processor) { p.ocr = e }
}

// WithTextLayer enables the direct text tier for native PDFs when
// Config.DirectText is set.
func WithTextLayer(t TextLayer) Option {
	return func(p *Processor) { p.textLayer = t }
}

func WithPreprocessor(pre *imaging.Preprocessor) Option {
	return func(p *Processor) {
		if pre != nil {
			p.pre = pre
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProcessor(rasterizer Rasterizer, cfg Config, opts ...Option) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ExtractorTimeout <= 0 {
		cfg.ExtractorTimeout = DefaultExtractorTimeout
	}
	p := &Processor{
		cfg:        cfg,
		rasterizer: rasterizer,
		pre:        imaging.NewPreprocessor(),
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Capabilities reports which extraction tiers are configured.
type Capabilities struct {
	Vision     bool `json:"vision"`
	OCR        bool `json:"ocr"`
	DirectText bool `json:"direct_text"`
}

func (p *Processor) Capabilities() Capabilities {
	return Capabilities{
		Vision:     p.vision != nil,
		OCR:        p.ocr != nil,
		DirectText: p.cfg.DirectText && p.textLayer != nil,
	}
}

// Process runs the whole pipeline over one document. filename is used for
// its extension and echoed in the result. Per-page extraction failures are
// recorded in the pages; only invalid input, conversion problems and
// cancellation are returned as errors.
func (p *Processor) Process(ctx context.Context, data []byte, filename string) (*document.ProcessedDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no document bytes for %q", common.ErrInvalidInput, filename)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	sum := sha256.Sum256(data)
	ctx = ocr.WithContentHash(ctx, hex.EncodeToString(sum[:]))

	docType := document.Classify(data, filename)
	log := p.logger.With("filename", filename, "document_type", docType)
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		log = log.With("request_id", rid)
	}
	log.Info("pipeline.start", "bytes", len(data))

	images, err := p.rasterizer.Rasterize(ctx, data, filename, docType)
	if err != nil {
		log.Error("pipeline.rasterize.failed", "error", err)
		return nil, err
	}
	if len(images) == 0 {
		if p.cfg.StrictEmpty {
			return nil, fmt.Errorf("%w: %q rendered no pages", common.ErrEmptyDocument, filename)
		}
		log.Warn("pipeline.empty_document")
		return document.Assemble(filename, docType, nil), nil
	}

	direct := p.directTexts(ctx, data, docType, len(images), log)

	pages := make([]document.ProcessedPage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, img := range images {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[i] = p.processPage(gctx, i+1, img, direct[i], log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := document.Assemble(filename, docType, pages)
	log.Info("pipeline.done",
		"pages", doc.TotalPages,
		"average_confidence", doc.AverageConfidence,
		"notes", len(doc.ProcessingNotes),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// ProcessFile reads path and processes its contents under the file's base name.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*document.ProcessedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Process(ctx, data, filepath.Base(path))
}

// directTexts returns one entry per page; nil entries mean "no text layer".
func (p *Processor) directTexts(ctx context.Context, data []byte, docType constants.DocumentType, n int, log *slog.Logger) []*string {
	out := make([]*string, n)
	if !p.cfg.DirectText || p.textLayer == nil || docType != constants.NativePDF {
		return out
	}
	texts, err := p.textLayer.PageTexts(ctx, data)
	if err != nil {
		log.Warn("pipeline.text_layer.failed", "error", err)
		return out
	}
	for i := 0; i < n && i < len(texts); i++ {
		out[i] = &texts[i]
	}
	return out
}

func (p *Processor) processPage(ctx context.Context, pageNumber int, img image.Image, direct *string, log *slog.Logger) document.ProcessedPage {
	quality := imaging.Assess(img)
	processed, applied := p.pre.Preprocess(img, quality.IsLowQuality)

	page := document.ProcessedPage{
		PageNumber:           pageNumber,
		OriginalImage:        img,
		ProcessedImage:       processed,
		PreprocessingApplied: applied,
		Quality:              quality,
	}
	page.ExtractedText, page.Confidence, page.ExtractionMethod = p.extractPage(ctx, pageNumber, img, processed, direct, log)

	log.Debug("pipeline.page.done",
		"page", pageNumber,
		"method", page.ExtractionMethod,
		"confidence", page.Confidence,
		"quality_score", quality.QualityScore,
		"preprocessing", applied,
	)
	return page
}
