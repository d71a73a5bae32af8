package export

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docproc/internal/document"
)

const (
	DocumentsSheet = "Documents"
	PagesSheet     = "Pages"

	// excelize rejects cells longer than 32767 characters
	maxCellChars = 32000
)

// Entry is one document row. ID, ContentHash and SourcePath are optional.
type Entry struct {
	ID          string
	ContentHash string
	SourcePath  string
	CreatedAt   time.Time
	Document    *document.ProcessedDocument
}

var documentHeaders = []string{
	"Document ID",
	"Filename",
	"Document Type",
	"Pages",
	"Average Confidence",
	"Processing Notes",
	"Content Hash",
	"Source Path",
	"Processed At",
}

var pageHeaders = []string{
	"Document ID",
	"Filename",
	"Page",
	"Extraction Method",
	"Confidence",
	"Quality Score",
	"Low Quality",
	"Preprocessing",
	"Text",
}

// Workbook builds a two-sheet report: one row per document and one per page.
func Workbook(entries []Entry) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", DocumentsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(PagesSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, DocumentsSheet, 1, toAny(documentHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, PagesSheet, 1, toAny(pageHeaders)); err != nil {
		return nil, err
	}

	docRow, pageRow := 2, 2
	for _, e := range entries {
		d := e.Document
		if d == nil {
			continue
		}
		processedAt := ""
		if !e.CreatedAt.IsZero() {
			processedAt = e.CreatedAt.UTC().Format(time.RFC3339)
		}
		err := writeRow(f, DocumentsSheet, docRow, []any{
			e.ID,
			d.Filename,
			string(d.DocumentType),
			d.TotalPages,
			d.AverageConfidence,
			strings.Join(d.ProcessingNotes, "\n"),
			e.ContentHash,
			e.SourcePath,
			processedAt,
		})
		if err != nil {
			return nil, err
		}
		docRow++

		for _, p := range d.Pages {
			err := writeRow(f, PagesSheet, pageRow, []any{
				e.ID,
				d.Filename,
				p.PageNumber,
				string(p.ExtractionMethod),
				p.Confidence,
				p.Quality.QualityScore,
				p.Quality.IsLowQuality,
				strings.Join(p.PreprocessingApplied, ", "),
				truncate(p.ExtractedText, maxCellChars),
			})
			if err != nil {
				return nil, err
			}
			pageRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(DocumentsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(DocumentsSheet, "B", "B", 32) // filename
	_ = f.SetColWidth(DocumentsSheet, "C", "E", 16)
	_ = f.SetColWidth(DocumentsSheet, "F", "F", 48) // notes
	_ = f.SetColWidth(DocumentsSheet, "G", "H", 60)
	_ = f.SetColWidth(PagesSheet, "A", "B", 32)
	_ = f.SetColWidth(PagesSheet, "H", "H", 40)
	_ = f.SetColWidth(PagesSheet, "I", "I", 80) // text

	idx, err := f.GetSheetIndex(DocumentsSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// WriteXLSX returns the Workbook as XLSX bytes.
func WriteXLSX(entries []Entry) ([]byte, error) {
	f, err := Workbook(entries)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "\u2026"
}
