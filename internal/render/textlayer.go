package render

import (
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// textFromContentStream walks the operators of a page content stream and
// collects the operands of the text showing operators (Tj, TJ, ' and ").
// Positioning operators become spaces or line breaks. String bytes are read as
// WinAnsiEncoding; font encodings are not resolved, so text drawn with
// composite fonts comes out as garbage and is caught by PrintableRatio.
func textFromContentStream(data []byte) string {
	var (
		sb      strings.Builder
		pending []string
	)
	flush := func(prefixNewline bool) {
		if prefixNewline && sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		for _, s := range pending {
			sb.WriteString(s)
		}
		pending = pending[:0]
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, n := readLiteralString(data[i:])
			pending = append(pending, s)
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] != '<':
			s, n := readHexString(data[i:])
			pending = append(pending, s)
			i += n
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case isDelimiter(c) || isSpace(c):
			i++
		default:
			start := i
			for i < len(data) && !isDelimiter(data[i]) && !isSpace(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				flush(false)
			case "'", "\"":
				flush(true)
			case "Td", "TD", "Tm":
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				pending = pending[:0]
			case "T*":
				sb.WriteByte('\n')
			case "BT", "ET":
				pending = pending[:0]
			}
		}
	}
	return cleanText(sb.String())
}

func readLiteralString(b []byte) (string, int) {
	var sb strings.Builder
	depth := 0
	i := 0
	for ; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\\' && i+1 < len(b):
			i++
			switch e := b[i]; e {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(b) && b[i+1] >= '0' && b[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(b[i]-'0')
					}
					sb.WriteByte(byte(val))
				} else {
					sb.WriteByte(e)
				}
			}
		case c == '(':
			if depth > 0 {
				sb.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return decodeWinAnsi(sb.String()), i + 1
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return decodeWinAnsi(sb.String()), i
}

func readHexString(b []byte) (string, int) {
	end := 1
	for end < len(b) && b[end] != '>' {
		end++
	}
	var digits []byte
	for _, c := range b[1:min(end, len(b))] {
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out, err := hex.DecodeString(string(digits))
	if err != nil {
		return "", end + 1
	}
	return decodeWinAnsi(string(out)), end + 1
}

// decodeWinAnsi turns single-byte string operands into UTF-8. ASCII is left
// as is.
func decodeWinAnsi(raw string) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] >= 0x80 {
			out, err := charmap.Windows1252.NewDecoder().String(raw)
			if err != nil {
				return raw
			}
			return out
		}
	}
	return raw
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// cleanText collapses whitespace runs inside a line and drops blank lines.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			if unicode.IsSpace(r) {
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
				continue
			}
			sb.WriteRune(r)
			prevSpace = false
		}
		if l := strings.TrimSpace(sb.String()); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// PrintableRatio is the share of runes that are printable text. Private use
// code points, U+FFFD and control characters other than \n, \r, \t count as
// garbage. Empty text has ratio 1.
func PrintableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == 0xFFFD:
		return true
	case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}
