package ocr

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docproc/internal/extract"
)

const (
	tsvColumns   = 12
	tsvConfCol   = 10
	tsvTextCol   = 11
	tsvWordLevel = "5"
)

// parseTSV reads tesseract's TSV output and returns word rows in reading
// order. Rows that are not words (page, block, paragraph, line) carry conf -1
// and no text, so they are skipped. Unparseable confidences become the sentinel.
func parseTSV(out []byte) []extract.Token {
	lines := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	tokens := make([]extract.Token, 0, len(lines))
	for i, ln := range lines {
		if len(ln) == 0 {
			continue
		}
		if i == 0 && strings.HasPrefix(ln, "level") {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < tsvColumns {
			continue
		}
		if cols[0] != tsvWordLevel {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[tsvConfCol]), 64)
		if err != nil {
			conf = extract.NoConfidence
		}
		tokens = append(tokens, extract.Token{Text: cols[tsvTextCol], Confidence: conf})
	}
	return tokens
}
