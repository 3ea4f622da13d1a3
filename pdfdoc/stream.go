package pdfdoc

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// pdfHexRe matches PDF hex strings: <48656C6C6F>
var pdfHexRe = regexp.MustCompile(`<([0-9A-Fa-f \t\r\n]+)>`)

// tfRe matches font-select operators: /F1 12 Tf
var tfRe = regexp.MustCompile(`/[^\s/]+\s+(\d+(?:\.\d+)?)\s+Tf`)

// extractLayout walks content-stream operators for text, preserving line
// and word breaks from positioning operators.
func extractLayout(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		// Tj operator: (text) Tj
		// TJ operator: [(text) -100 (more text)] TJ
		if bytes.HasSuffix(line, []byte("Tj")) || bytes.HasSuffix(line, []byte("TJ")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
			for _, m := range pdfHexRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFHexString(m[1]))
			}
		}

		// ' operator (move to next line and show text): (text) '
		if bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")) {
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				if text := decodePDFString(m[1]); text != "" {
					sb.WriteByte('\n')
					sb.WriteString(text)
				}
			}
		}

		// Td/TD operator (text positioning — word/line separator).
		if bytes.HasSuffix(line, []byte("Td")) || bytes.HasSuffix(line, []byte("TD")) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}

		// T* operator (move to start of next line).
		if bytes.Equal(line, []byte("T*")) {
			sb.WriteByte('\n')
		}
	}

	return tidyStreamText(sb.String())
}

// extractBlocks extracts text per BT..ET block, one line per block. More
// tolerant of streams whose operators do not sit on their own lines.
func extractBlocks(data []byte) string {
	var blocks []string

	rest := data
	for {
		start := bytes.Index(rest, []byte("BT"))
		if start < 0 {
			break
		}
		rest = rest[start+2:]
		end := bytes.Index(rest, []byte("ET"))
		block := rest
		if end >= 0 {
			block = rest[:end]
			rest = rest[end+2:]
		} else {
			rest = nil
		}

		var sb strings.Builder
		for _, m := range pdfStringRe.FindAllSubmatch(block, -1) {
			s := decodePDFString(m[1])
			if s == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(s)
		}
		for _, m := range pdfHexRe.FindAllSubmatch(block, -1) {
			s := decodePDFHexString(m[1])
			if s == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(s)
		}

		if text := tidyStreamText(sb.String()); text != "" {
			blocks = append(blocks, text)
		}
		if rest == nil {
			break
		}
	}

	return strings.Join(blocks, "\n")
}

// extractGlyphs sweeps the whole stream for string literals and hex strings
// with no regard for operator context. Recovers text from malformed streams
// the structured walks miss.
func extractGlyphs(data []byte) string {
	var sb strings.Builder

	for _, m := range pdfStringRe.FindAllSubmatch(data, -1) {
		s := decodePDFString(m[1])
		if s == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}
	for _, m := range pdfHexRe.FindAllSubmatch(data, -1) {
		s := decodePDFHexString(m[1])
		if s == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s)
	}

	return tidyStreamText(sb.String())
}

// decodePDFString handles PDF escape sequences, then maps any bytes that do
// not form valid UTF-8 to U+FFFD so downstream corruption scoring sees them.
func decodePDFString(raw []byte) string {
	var buf bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
			switch raw[i] {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case '\\':
				buf.WriteByte('\\')
			case '(':
				buf.WriteByte('(')
			case ')':
				buf.WriteByte(')')
			default:
				// Octal escape (e.g. \040 for space).
				if raw[i] >= '0' && raw[i] <= '7' {
					val := int(raw[i] - '0')
					if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
						i++
						val = val*8 + int(raw[i]-'0')
						if i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7' {
							i++
							val = val*8 + int(raw[i]-'0')
						}
					}
					buf.WriteByte(byte(val))
				} else {
					buf.WriteByte(raw[i])
				}
			}
		} else {
			buf.WriteByte(raw[i])
		}
	}
	return toValidUTF8(buf.Bytes())
}

// decodePDFHexString decodes a <hex> string. UTF-16BE (BOM FEFF) payloads
// are decoded as such; everything else byte-wise.
func decodePDFHexString(raw []byte) string {
	var compact []byte
	for _, b := range raw {
		switch {
		case b >= '0' && b <= '9', b >= 'a' && b <= 'f', b >= 'A' && b <= 'F':
			compact = append(compact, b)
		}
	}
	if len(compact)%2 == 1 {
		// Odd count: PDF spec says assume trailing zero.
		compact = append(compact, '0')
	}

	decoded := make([]byte, 0, len(compact)/2)
	for i := 0; i+1 < len(compact); i += 2 {
		v, err := strconv.ParseUint(string(compact[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		decoded = append(decoded, byte(v))
	}

	if len(decoded) >= 2 && decoded[0] == 0xFE && decoded[1] == 0xFF {
		return decodeUTF16BE(decoded[2:])
	}
	return toValidUTF8(decoded)
}

func decodeUTF16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	u := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		u = append(u, uint16(b[i])<<8|uint16(b[i+1]))
	}
	return string(utf16.Decode(u))
}

// toValidUTF8 replaces every byte that is not part of a valid UTF-8
// sequence with U+FFFD. The replacement characters are deliberate: the
// extraction cascade measures them to decide whether to escalate.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
		} else {
			sb.WriteRune(r)
		}
		b = b[size:]
	}
	return sb.String()
}

// tidyStreamText collapses runs of spaces/tabs within lines and drops empty
// lines, keeping line structure intact.
func tidyStreamText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			if r == utf8.RuneError {
				// Keep replacement chars verbatim for corruption scoring.
				sb.WriteRune(r)
				prevSpace = false
				continue
			}
			if unicode.IsSpace(r) {
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			} else if unicode.IsPrint(r) {
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}

// scanFontSizes collects every Tf font size in stream order.
func scanFontSizes(data []byte) []float64 {
	var sizes []float64
	for _, m := range tfRe.FindAllSubmatch(data, -1) {
		if v, err := strconv.ParseFloat(string(m[1]), 64); err == nil {
			sizes = append(sizes, v)
		}
	}
	return sizes
}
