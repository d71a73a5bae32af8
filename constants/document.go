package constants

import (
	"strings"
)

// DocumentType is decided once per document at classification time.
type DocumentType string

const (
	NativePDF  DocumentType = "native_pdf"
	ScannedPDF DocumentType = "scanned_pdf"
	Image      DocumentType = "image"
	Unknown    DocumentType = "unknown"
)

var allDocumentTypes = []DocumentType{
	NativePDF,
	ScannedPDF,
	Image,
	Unknown,
}

// IsPDF reports whether pages come from a PDF renderer.
func (t DocumentType) IsPDF() bool {
	return t == NativePDF || t == ScannedPDF
}

// ParseDocumentType maps a stored string back to a DocumentType.
// Unrecognized values fall back to Unknown with ok=false.
func ParseDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, t := range allDocumentTypes {
		if normalized == string(t) {
			return t, true
		}
	}
	return Unknown, false
}

// ExtractionMethod records which tier produced a page's text.
type ExtractionMethod string

const (
	DirectText  ExtractionMethod = "direct_text"
	VisionModel ExtractionMethod = "vision_llm"
	OCR         ExtractionMethod = "ocr"
	// Hybrid is reserved for mixed-source pages; no tier emits it today.
	Hybrid ExtractionMethod = "hybrid"
)

var allExtractionMethods = []ExtractionMethod{
	DirectText,
	VisionModel,
	OCR,
	Hybrid,
}

func ExtractionMethodStrings() []string {
	result := make([]string, len(allExtractionMethods))
	for i, m := range allExtractionMethods {
		result[i] = string(m)
	}
	return result
}

// ParseExtractionMethod maps a stored string back to an ExtractionMethod.
// Unrecognized values fall back to OCR with ok=false.
func ParseExtractionMethod(input string) (ExtractionMethod, bool) {
	if input == "" {
		return OCR, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// names used by older exports and the vision tier's provider labels
	synonyms := map[string]ExtractionMethod{
		"vision":       VisionModel,
		"vision_model": VisionModel,
		"llm":          VisionModel,
		"text_layer":   DirectText,
		"tesseract":    OCR,
	}
	if m, ok := synonyms[normalized]; ok {
		return m, true
	}

	for _, m := range allExtractionMethods {
		if normalized == string(m) {
			return m, true
		}
	}
	return OCR, false
}
