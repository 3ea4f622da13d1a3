package extract

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"
)

// minHashableRunes is the normalized-text length below which the hash is
// salted with chapter metadata. Two failed extractions would otherwise hash
// identically and trip duplicate grouping.
const minHashableRunes = 10

// Normalize canonicalises text for content hashing: lowercase, punctuation
// stripped, all whitespace runs collapsed to single spaces. Cosmetic
// differences between two extractions of the same content must not produce
// distinct hashes.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	prevSpace := true
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !prevSpace {
				sb.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			sb.WriteRune(unicode.ToLower(r))
			prevSpace = false
		}
		// Punctuation and symbols dropped.
	}
	return strings.TrimSpace(sb.String())
}

// ContentHash computes the deduplication key: sha256 over normalized text.
// When the normalized text is degenerate (failed or near-empty extraction)
// the digest is salted with title and page range so each failure stays
// unique under the content_hash constraint.
func ContentHash(text, title string, startPage, endPage int) string {
	norm := Normalize(text)
	if len([]rune(norm)) < minHashableRunes {
		salted := fmt.Sprintf("%s\x00%s\x00%d-%d", norm, title, startPage, endPage)
		sum := sha256.Sum256([]byte(salted))
		return fmt.Sprintf("%x", sum)
	}
	sum := sha256.Sum256([]byte(norm))
	return fmt.Sprintf("%x", sum)
}
