package document

import (
	"bytes"
	"path/filepath"

	"github.com/joseph-ayodele/docproc/constants"
)

var (
	pageMarker = []byte("/Type /Page")
	beginText  = []byte("BT")
	endText    = []byte("ET")
)

// Classify decides the DocumentType from the filename extension and, for
// PDFs, a byte scan for a page object with text operators. It never fails.
func Classify(data []byte, filename string) constants.DocumentType {
	ext := filepath.Ext(filename)
	switch {
	case constants.IsPDFExt(ext):
		if hasTextLayer(data) {
			return constants.NativePDF
		}
		return constants.ScannedPDF
	case constants.IsImageExt(ext):
		return constants.Image
	default:
		return constants.Unknown
	}
}

// hasTextLayer is a cheap heuristic; compressed content streams hide BT/ET
// and classify as scanned.
func hasTextLayer(data []byte) bool {
	return bytes.Contains(data, pageMarker) &&
		bytes.Contains(data, beginText) &&
		bytes.Contains(data, endText)
}
