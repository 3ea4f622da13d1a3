package extract

import (
	"strings"
	"unicode"
)

// CorruptionRatio returns the fraction of runes that are the Unicode
// replacement character (U+FFFD). This is the escalation signal for the
// extraction cascade.
func CorruptionRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total := 0
	bad := 0
	for _, r := range text {
		total++
		if r == '�' {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}

// replacementCount counts U+FFFD runes, used to pick the least-corrupted
// structural attempt when every strategy exceeds the threshold.
func replacementCount(text string) int {
	n := 0
	for _, r := range text {
		if r == '�' {
			n++
		}
	}
	return n
}

// printableRatio returns the ratio of printable characters in text.
// Excludes PUA U+E000-U+F8FF, control chars < U+0020 (except \n\r\t), U+FFFD.
func printableRatio(text string) float64 {
	if len(text) == 0 {
		return 1.0
	}
	total := 0
	printable := 0
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
	// Private Use Area
	if r >= 0xE000 && r <= 0xF8FF {
		return true
	}
	// Replacement character
	if r == 0xFFFD {
		return true
	}
	// Control chars except whitespace
	if r < 0x0020 && r != '\n' && r != '\r' && r != '\t' {
		return true
	}
	return false
}

// wordlikeRatio returns the ratio of word-like tokens (length 2-15) to
// total tokens. Garbled extractions skew toward single glyphs or very long
// runs, pushing this down.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		n := len([]rune(f))
		if n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

// QualityScore rates extraction cleanliness in [0,1], independent of
// detection confidence. corruptFraction is the share of pages still above
// the corruption threshold after the full cascade.
func QualityScore(text string, corruptFraction float64) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := (printableRatio(text) + wordlikeRatio(text)) / 2
	score *= 1 - 0.5*corruptFraction
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
