package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// headingMatch is a recognized chapter heading on a page.
type headingMatch struct {
	number *int
	title  string
}

var (
	// "Chapter 7", "Chapter 7: Title", "CHAPTER 7 - Title"
	arabicRe = regexp.MustCompile(`(?i)^\s*chapter\s+(\d{1,3})\s*[:.\-–—]?\s*(.*)$`)
	// "Chapter XII", "Chapter IV: Title"
	romanRe = regexp.MustCompile(`(?i)^\s*chapter\s+([ivxlcdm]{1,9})\b\s*[:.\-–—]?\s*(.*)$`)
	// "Ch. 3", "Ch 3: Title"
	abbrevRe = regexp.MustCompile(`(?i)^\s*ch\.?\s+(\d{1,3})\s*[:.\-–—]?\s*(.*)$`)
	// "7. Title" numbered-section style; a title is required so bare page
	// numbers and list items don't trigger it.
	sectionRe = regexp.MustCompile(`^\s*(\d{1,3})\.\s+(\p{Lu}.{2,})$`)
)

// matchHeading tests one line against the chapter-heading patterns,
// returning nil when none apply.
func matchHeading(line string) *headingMatch {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 120 {
		return nil
	}

	if m := arabicRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &headingMatch{number: &n, title: headingTitle(line, m[2])}
	}
	if m := romanRe.FindStringSubmatch(line); m != nil {
		if n, ok := romanToInt(m[1]); ok {
			return &headingMatch{number: &n, title: headingTitle(line, m[2])}
		}
	}
	if m := abbrevRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &headingMatch{number: &n, title: headingTitle(line, m[2])}
	}
	if m := sectionRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &headingMatch{number: &n, title: headingTitle(line, m[2])}
	}
	return nil
}

// headingTitle prefers the trailing title text; a bare "Chapter 7" keeps
// the whole line as its title.
func headingTitle(line, rest string) string {
	rest = strings.TrimSpace(rest)
	if rest != "" {
		return rest
	}
	return line
}

// parseChapterNumber extracts a leading chapter number from an outline or
// heading title, nil when the title carries none.
func parseChapterNumber(title string) *int {
	if m := matchHeading(title); m != nil {
		return m.number
	}
	return nil
}

var romanValues = map[byte]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

// romanToInt converts a Roman numeral (case-insensitive). It rejects
// malformed sequences by round-tripping the result.
func romanToInt(s string) (int, bool) {
	s = strings.ToLower(s)
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && romanValues[s[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	if total <= 0 || total > 3999 || intToRoman(total) != s {
		return 0, false
	}
	return total, true
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

func intToRoman(n int) string {
	var sb strings.Builder
	for _, e := range romanTable {
		for n >= e.value {
			sb.WriteString(e.symbol)
			n -= e.value
		}
	}
	return sb.String()
}
