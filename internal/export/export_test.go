package export

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/document"
	"github.com/joseph-ayodele/docproc/internal/imaging"
	"github.com/joseph-ayodele/docproc/internal/repository"
)

func sampleDoc() *document.ProcessedDocument {
	return document.Assemble("lease.pdf", constants.ScannedPDF, []document.ProcessedPage{
		{PageNumber: 1, ExtractedText: "Residential Lease", Confidence: 0.9, ExtractionMethod: constants.VisionModel},
		{
			PageNumber:           2,
			ExtractedText:        "Signature",
			Confidence:           0.25,
			ExtractionMethod:     constants.OCR,
			PreprocessingApplied: []string{"noise_reduction", "adaptive_binarization"},
			Quality:              imaging.QualityMetrics{QualityScore: 22, IsLowQuality: true},
		},
	})
}

func openXLSX(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWriteXLSX(t *testing.T) {
	b, err := WriteXLSX([]Entry{
		{ID: "doc-1", ContentHash: "abc", SourcePath: "/in/lease.pdf", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Document: sampleDoc()},
		{ID: "skipped"},
	})
	require.NoError(t, err)
	f := openXLSX(t, b)

	assert.Equal(t, []string{DocumentsSheet, PagesSheet}, f.GetSheetList())

	docs, err := f.GetRows(DocumentsSheet)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, documentHeaders, docs[0])
	assert.Equal(t, "doc-1", docs[1][0])
	assert.Equal(t, "lease.pdf", docs[1][1])
	assert.Equal(t, "scanned_pdf", docs[1][2])
	assert.Equal(t, "2", docs[1][3])
	assert.Equal(t, "Page 2: Low confidence extraction (0.25)", docs[1][5])
	assert.Equal(t, "/in/lease.pdf", docs[1][7])
	assert.Equal(t, "2025-01-02T03:04:05Z", docs[1][8])

	pages, err := f.GetRows(PagesSheet)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, pageHeaders, pages[0])
	assert.Equal(t, []string{"doc-1", "lease.pdf", "1", "vision_llm"}, pages[1][:4])
	assert.Equal(t, "ocr", pages[2][3])
	assert.Equal(t, "TRUE", pages[2][6])
	assert.Equal(t, "noise_reduction, adaptive_binarization", pages[2][7])
	assert.Equal(t, "Signature", pages[2][8])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	got := truncate(strings.Repeat("\u00e9", 10), 4)
	assert.Equal(t, "\u00e9\u00e9\u00e9\u2026", got)
}

func TestServiceExport(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	repo := repository.NewDocumentRepository(db)

	rec, err := repo.Save(ctx, sampleDoc(), "hash-1")
	require.NoError(t, err)

	b, err := NewService(repo, nil).ExportDocumentsXLSX(ctx, 10)
	require.NoError(t, err)
	f := openXLSX(t, b)

	docs, err := f.GetRows(DocumentsSheet)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, rec.ID.String(), docs[1][0])
	assert.Equal(t, "hash-1", docs[1][6])

	pages, err := f.GetRows(PagesSheet)
	require.NoError(t, err)
	assert.Len(t, pages, 3)
}
