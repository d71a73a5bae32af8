package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDocumentType(t *testing.T) {
	for _, dt := range allDocumentTypes {
		got, ok := ParseDocumentType(string(dt))
		assert.True(t, ok)
		assert.Equal(t, dt, got)
	}

	got, ok := ParseDocumentType(" Scanned_PDF ")
	assert.True(t, ok)
	assert.Equal(t, ScannedPDF, got)

	got, ok = ParseDocumentType("spreadsheet")
	assert.False(t, ok)
	assert.Equal(t, Unknown, got)
}

func TestParseExtractionMethod(t *testing.T) {
	got, ok := ParseExtractionMethod("vision_llm")
	assert.True(t, ok)
	assert.Equal(t, VisionModel, got)

	got, ok = ParseExtractionMethod("Tesseract")
	assert.True(t, ok)
	assert.Equal(t, OCR, got)

	got, ok = ParseExtractionMethod("telepathy")
	assert.False(t, ok)
	assert.Equal(t, OCR, got)

	got, ok = ParseExtractionMethod("")
	assert.False(t, ok)
	assert.Equal(t, OCR, got)

	assert.Len(t, ExtractionMethodStrings(), 4)
}

func TestExtensionSets(t *testing.T) {
	assert.Equal(t, "jpeg", NormalizeExt(".JPEG"))
	assert.True(t, IsImageExt(".webp"))
	assert.False(t, IsImageExt(".heic"))
	assert.True(t, IsHEICExt("HEIF"))
	assert.True(t, IsPDFExt(".Pdf"))

	_, ok := AllowedExtensions["heic"]
	assert.True(t, ok)
	_, ok = AllowedExtensions["docx"]
	assert.False(t, ok)
}
