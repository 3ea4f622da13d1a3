// Package chunk splits overlong chapter text into indexed fragments for
// precision retrieval. Chapters at or below the word threshold stay whole;
// above it, text is cut on line boundaries into chunks that carry byte
// offsets into the chapter text and, when available, the heading line that
// preceded them.
package chunk

import (
	"strings"
	"unicode"
)

// Options configures the splitter.
type Options struct {
	// MaxWords is the target chunk size. Default: 1000.
	MaxWords int
	// ThresholdWords is the chapter length above which chunking applies.
	// Chapters at or below it yield no chunks. Default: 4000.
	ThresholdWords int
}

func (o *Options) defaults() {
	if o.MaxWords <= 0 {
		o.MaxWords = 1000
	}
	if o.ThresholdWords <= 0 {
		o.ThresholdWords = 4000
	}
}

// Chunk is one fragment of a chapter.
type Chunk struct {
	Index       int    // 0-based position within the chapter
	Text        string
	StartOffset int    // byte offset into the chapter text, inclusive
	EndOffset   int    // byte offset, exclusive
	WordCount   int
	Heading     string // nearest preceding heading-like line, may be empty
}

// Split cuts chapter text into chunks. It returns nil when the chapter is
// at or below the threshold; callers persist the chapter whole in that
// case.
func Split(text string, opts Options) []Chunk {
	opts.defaults()

	total := len(strings.Fields(text))
	if total <= opts.ThresholdWords {
		return nil
	}

	lines := splitLines(text)
	var chunks []Chunk
	var cur []lineSpan
	curWords := 0
	heading := ""
	pendingHeading := ""

	flush := func() {
		if len(cur) == 0 {
			return
		}
		start := cur[0].start
		end := cur[len(cur)-1].end
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text[start:end],
			StartOffset: start,
			EndOffset:   end,
			WordCount:   curWords,
			Heading:     heading,
		})
		cur = nil
		curWords = 0
	}

	for _, ln := range lines {
		if isHeadingLike(text[ln.start:ln.end]) {
			pendingHeading = text[ln.start:ln.end]
		}

		if curWords+ln.words > opts.MaxWords && curWords > 0 {
			flush()
			heading = pendingHeading
		}
		if len(cur) == 0 && heading == "" {
			heading = pendingHeading
		}
		cur = append(cur, ln)
		curWords += ln.words

		// A single line longer than the target still becomes one chunk;
		// lines are page text joined per page, splitting inside one would
		// cut mid-sentence for no retrieval gain.
		if curWords >= opts.MaxWords {
			flush()
			heading = pendingHeading
		}
	}
	flush()

	return chunks
}

// lineSpan is one non-empty line's byte range and word count.
type lineSpan struct {
	start, end, words int
}

func splitLines(text string) []lineSpan {
	var spans []lineSpan
	off := 0
	for {
		i := strings.IndexByte(text[off:], '\n')
		var line string
		end := 0
		if i < 0 {
			line = text[off:]
			end = len(text)
		} else {
			line = text[off : off+i]
			end = off + i
		}
		if strings.TrimSpace(line) != "" {
			spans = append(spans, lineSpan{start: off, end: end, words: len(strings.Fields(line))})
		}
		if i < 0 {
			return spans
		}
		off = end + 1
	}
}

// isHeadingLike reports whether a line reads like a section heading: short,
// starts with an upper-case letter or digit, and does not end in sentence
// punctuation.
func isHeadingLike(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(strings.Fields(line)) > 12 {
		return false
	}
	r := []rune(line)[0]
	if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
		return false
	}
	switch line[len(line)-1] {
	case '.', ',', ';', '!', '?':
		return false
	}
	return true
}

// WordCount counts whitespace-separated tokens. The long-chapter threshold
// and chapter word counts use the same tokenization.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
