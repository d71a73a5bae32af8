package document

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docproc/constants"
)

// Assemble builds the document from its pages. Pages are sorted by number;
// an empty slice yields a valid document with zero pages and confidence 0.
func Assemble(filename string, docType constants.DocumentType, pages []ProcessedPage) *ProcessedDocument {
	sorted := make([]ProcessedPage, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	texts := make([]string, len(sorted))
	var sum float64
	notes := []string{}
	for i, p := range sorted {
		texts[i] = p.ExtractedText
		sum += p.Confidence
		if p.Confidence < LowConfidenceThreshold {
			notes = append(notes, LowConfidenceNote(p.PageNumber, p.Confidence))
		}
	}

	var avg float64
	if len(sorted) > 0 {
		avg = sum / float64(len(sorted))
	}

	return &ProcessedDocument{
		Filename:          filename,
		DocumentType:      docType,
		TotalPages:        len(sorted),
		Pages:             sorted,
		FullText:          strings.Join(texts, PageBreak),
		AverageConfidence: avg,
		ProcessingNotes:   notes,
	}
}

func LowConfidenceNote(page int, confidence float64) string {
	return fmt.Sprintf("Page %d: Low confidence extraction (%.2f)", page, confidence)
}
