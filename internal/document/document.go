package document

import (
	"image"

	"github.com/joseph-ayodele/docproc/constants"
	"github.com/joseph-ayodele/docproc/internal/imaging"
)

const (
	// PageBreak separates page texts in ProcessedDocument.FullText.
	PageBreak = "\n\n---PAGE BREAK---\n\n"
	// ExtractionFailedText is recorded when no extraction tier produced a result.
	ExtractionFailedText = "[Extraction failed]"
	// LowConfidenceThreshold marks pages that get a processing note.
	LowConfidenceThreshold = 0.5
)

// ProcessedPage is the outcome of one rendered page.
type ProcessedPage struct {
	PageNumber           int                        `json:"page_number"`
	OriginalImage        image.Image                `json:"-"`
	ProcessedImage       *image.Gray                `json:"-"`
	ExtractedText        string                     `json:"extracted_text"`
	Confidence           float64                    `json:"confidence"`
	ExtractionMethod     constants.ExtractionMethod `json:"extraction_method"`
	PreprocessingApplied []string                   `json:"preprocessing_applied"`
	Quality              imaging.QualityMetrics     `json:"quality"`
}

// ProcessedDocument is the aggregated result of one Process call.
type ProcessedDocument struct {
	Filename          string                 `json:"filename"`
	DocumentType      constants.DocumentType `json:"document_type"`
	TotalPages        int                    `json:"total_pages"`
	Pages             []ProcessedPage        `json:"pages"`
	FullText          string                 `json:"full_text"`
	AverageConfidence float64                `json:"average_confidence"`
	ProcessingNotes   []string               `json:"processing_notes"`
}
