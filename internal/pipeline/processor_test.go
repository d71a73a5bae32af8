package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/common"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/extract"
	"github.com/joseph-ayodele/docproc/internal/imaging"
)

type stubRasterizer struct {
	pages   []image.Image
	err     error
	gotType constants.DocumentType
}

func (s *stubRasterizer) Rasterize(_ context.Context, _ []byte, _ string, docType constants.DocumentType) ([]image.Image, error) {
	s.gotType = docType
	return s.pages, s.err
}

type stubTextLayer []string

func (s stubTextLayer) PageTexts(context.Context, []byte) ([]string, error) { return s, nil }

// barsPage is a sharp high-contrast page: horizontal black and white bars.
func barsPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		c := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		if (y/8)%2 == 1 {
			c = color.RGBA{A: 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// darkPage is flat and dark, which scores as low quality.
func darkPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 30
		}
	}
	return img
}

func newProcessor(pages []image.Image, cfg Config, opts ...Option) *Processor {
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	return NewProcessor(&stubRasterizer{pages: pages}, cfg, opts...)
}

func TestProcessVisionThenOCRFallback(t *testing.T) {
	vision := extract.Func(func(ctx context.Context, img image.Image) (extract.Result, error) {
		if img.Bounds().Dx() == 320 {
			return extract.Result{Text: "LEASE AGREEMENT page one", Confidence: 0.9}, nil
		}
		return extract.Result{}, errors.New("vision quota exceeded")
	})
	var ocrImage image.Image
	ocrTier := extract.Func(func(ctx context.Context, img image.Image) (extract.Result, error) {
		ocrImage = img
		return extract.FromTokens([]extract.Token{{Text: "Signed", Confidence: 40}, {Text: "Tenant", Confidence: 44}}), nil
	})

	p := newProcessor([]image.Image{barsPage(320, 240), darkPage(300, 200)}, Config{}, WithVision(vision), WithOCR(ocrTier))
	doc, err := p.Process(context.Background(), []byte("fake image bytes"), "lease.png")
	require.NoError(t, err)

	assert.Equal(t, "lease.png", doc.Filename)
	assert.Equal(t, constants.Image, doc.DocumentType)
	require.Equal(t, 2, doc.TotalPages)
	require.Len(t, doc.Pages, 2)

	p1, p2 := doc.Pages[0], doc.Pages[1]
	assert.Equal(t, 1, p1.PageNumber)
	assert.Equal(t, constants.VisionModel, p1.ExtractionMethod)
	assert.Equal(t, 0.9, p1.Confidence)
	assert.False(t, p1.Quality.IsLowQuality)
	assert.NotContains(t, p1.PreprocessingApplied, imaging.OpBinarization)
	assert.Equal(t, imaging.OpGrayscale, p1.PreprocessingApplied[0])

	assert.Equal(t, 2, p2.PageNumber)
	assert.Equal(t, constants.OCR, p2.ExtractionMethod)
	assert.Equal(t, "Signed Tenant", p2.ExtractedText)
	assert.InDelta(t, 0.42, p2.Confidence, 1e-9)
	assert.True(t, p2.Quality.IsLowQuality)
	assert.Contains(t, p2.PreprocessingApplied, imaging.OpBinarization)

	// OCR sees the preprocessed raster, not the original
	require.NotNil(t, ocrImage)
	assert.Same(t, p2.ProcessedImage, ocrImage)

	assert.InDelta(t, 0.66, doc.AverageConfidence, 1e-9)
	assert.Equal(t, "LEASE AGREEMENT page one"+document.PageBreak+"Signed Tenant", doc.FullText)
	assert.Equal(t, []string{"Page 2: Low confidence extraction (0.42)"}, doc.ProcessingNotes)
}

func TestProcessNoExtractors(t *testing.T) {
	p := newProcessor([]image.Image{darkPage(16, 16), darkPage(16, 16)}, Config{})
	doc, err := p.Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	for _, pg := range doc.Pages {
		assert.Equal(t, document.ExtractionFailedText, pg.ExtractedText)
		assert.Equal(t, 0.0, pg.Confidence)
		assert.Equal(t, constants.OCR, pg.ExtractionMethod)
	}
	assert.Len(t, doc.ProcessingNotes, 2)
	assert.Equal(t, 0.0, doc.AverageConfidence)
}

func TestProcessOCRErrorRecordsFailure(t *testing.T) {
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{}, errors.New("tesseract crashed")
	})
	doc, err := newProcessor([]image.Image{darkPage(16, 16)}, Config{}, WithOCR(ocrTier)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, document.ExtractionFailedText, doc.Pages[0].ExtractedText)
	assert.Equal(t, constants.OCR, doc.Pages[0].ExtractionMethod)
}

func TestProcessVisionBlankFallsThrough(t *testing.T) {
	vision := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "  \n ", Confidence: 0.99}, nil
	})
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "  \t\n", Confidence: 0.8}, nil
	})
	doc, err := newProcessor([]image.Image{darkPage(16, 16)}, Config{}, WithVision(vision), WithOCR(ocrTier)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	pg := doc.Pages[0]
	assert.Equal(t, constants.OCR, pg.ExtractionMethod)
	assert.Equal(t, "", pg.ExtractedText)
	assert.Equal(t, 0.0, pg.Confidence)
}

func TestProcessVisionConfidenceClamped(t *testing.T) {
	vision := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "ok", Confidence: 1.7}, nil
	})
	doc, err := newProcessor([]image.Image{darkPage(16, 16)}, Config{}, WithVision(vision)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Pages[0].Confidence)
}

func TestProcessExtractorTimeout(t *testing.T) {
	slow := extract.Func(func(ctx context.Context, _ image.Image) (extract.Result, error) {
		select {
		case <-time.After(5 * time.Second):
			return extract.Result{Text: "too late", Confidence: 1}, nil
		case <-ctx.Done():
			return extract.Result{}, ctx.Err()
		}
	})
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "from ocr", Confidence: 0.7}, nil
	})

	cfg := Config{ExtractorTimeout: 50 * time.Millisecond}
	doc, err := newProcessor([]image.Image{darkPage(16, 16)}, cfg, WithVision(slow), WithOCR(ocrTier)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "from ocr", doc.Pages[0].ExtractedText)

	doc, err = newProcessor([]image.Image{darkPage(16, 16)}, cfg, WithOCR(slow)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, document.ExtractionFailedText, doc.Pages[0].ExtractedText)
}

func TestProcessExtractorPanicIsFailure(t *testing.T) {
	vision := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		panic("nil model")
	})
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "fallback", Confidence: 0.6}, nil
	})
	doc, err := newProcessor([]image.Image{darkPage(16, 16)}, Config{}, WithVision(vision), WithOCR(ocrTier)).
		Process(context.Background(), []byte("x"), "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "fallback", doc.Pages[0].ExtractedText)
}

func TestProcessKeepsPageOrder(t *testing.T) {
	const n = 12
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = darkPage(10+i, 10)
	}
	var mu sync.Mutex
	seen := map[int]bool{}
	ocrTier := extract.Func(func(_ context.Context, img image.Image) (extract.Result, error) {
		w := img.Bounds().Dx()
		// later pages finish first
		time.Sleep(time.Duration(n-(w-10)) * 2 * time.Millisecond)
		mu.Lock()
		seen[w] = true
		mu.Unlock()
		return extract.Result{Text: fmt.Sprintf("w%d", w), Confidence: 0.9}, nil
	})

	doc, err := newProcessor(pages, Config{Workers: 4}, WithOCR(ocrTier)).
		Process(context.Background(), []byte("x"), "scan.tiff")
	require.NoError(t, err)
	require.Len(t, doc.Pages, n)
	for i, pg := range doc.Pages {
		assert.Equal(t, i+1, pg.PageNumber)
		assert.Equal(t, fmt.Sprintf("w%d", 10+i), pg.ExtractedText)
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n-1, strings.Count(doc.FullText, "---PAGE BREAK---"))
}

func TestProcessCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newProcessor([]image.Image{darkPage(8, 8)}, Config{}).Process(ctx, []byte("x"), "a.png")
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	var calls int
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		calls++
		cancel()
		return extract.Result{Text: "one", Confidence: 1}, nil
	})
	pages := []image.Image{darkPage(8, 8), darkPage(8, 8), darkPage(8, 8)}
	_, err = newProcessor(pages, Config{Workers: 1}, WithOCR(ocrTier)).Process(ctx, []byte("x"), "a.png")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestProcessEmptyInput(t *testing.T) {
	_, err := newProcessor(nil, Config{}).Process(context.Background(), nil, "a.pdf")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProcessZeroPages(t *testing.T) {
	doc, err := newProcessor(nil, Config{}).Process(context.Background(), []byte("%PDF"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.TotalPages)
	assert.Empty(t, doc.FullText)
	assert.Equal(t, 0.0, doc.AverageConfidence)
	assert.Empty(t, doc.ProcessingNotes)

	_, err = newProcessor(nil, Config{StrictEmpty: true}).Process(context.Background(), []byte("%PDF"), "a.pdf")
	assert.ErrorIs(t, err, common.ErrEmptyDocument)
}

func TestProcessRasterizeError(t *testing.T) {
	rz := &stubRasterizer{err: common.UnsupportedFormatError("cannot decode %q as an image", "a.txt")}
	_, err := NewProcessor(rz, Config{}).Process(context.Background(), []byte("hello"), "a.txt")
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.Equal(t, constants.Unknown, rz.gotType)
}

func TestProcessDirectText(t *testing.T) {
	vision := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "from vision", Confidence: 0.8}, nil
	})
	layer := stubTextLayer{"  Residential Lease  ", "\uE000\uE001\uE002 x"}
	pages := []image.Image{darkPage(8, 8), darkPage(8, 8)}
	pdf := []byte("%PDF-1.4 /Type /Page BT (x) Tj ET")

	doc, err := newProcessor(pages, Config{DirectText: true}, WithVision(vision), WithTextLayer(layer)).
		Process(context.Background(), pdf, "lease.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.NativePDF, doc.DocumentType)
	assert.Equal(t, constants.DirectText, doc.Pages[0].ExtractionMethod)
	assert.Equal(t, "Residential Lease", doc.Pages[0].ExtractedText)
	assert.Equal(t, 1.0, doc.Pages[0].Confidence)
	// garbage text layer falls through to vision
	assert.Equal(t, constants.VisionModel, doc.Pages[1].ExtractionMethod)

	// disabled by config
	doc, err = newProcessor(pages, Config{}, WithVision(vision), WithTextLayer(layer)).
		Process(context.Background(), pdf, "lease.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.VisionModel, doc.Pages[0].ExtractionMethod)
}

func TestProcessFile(t *testing.T) {
	ocrTier := extract.Func(func(context.Context, image.Image) (extract.Result, error) {
		return extract.Result{Text: "ok", Confidence: 0.9}, nil
	})
	p := newProcessor([]image.Image{darkPage(8, 8)}, Config{}, WithOCR(ocrTier))

	path := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))
	doc, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "receipt.jpg", doc.Filename)

	_, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCapabilities(t *testing.T) {
	p := newProcessor(nil, Config{DirectText: true}, WithOCR(extract.Func(nil)), WithTextLayer(stubTextLayer{}))
	assert.Equal(t, Capabilities{OCR: true, DirectText: true}, p.Capabilities())
}
