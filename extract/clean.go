package extract

import "strings"

// punctReplacer maps typographic punctuation to plain ASCII.
var punctReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"‚", "'", // single low quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"„", `"`, // double low quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
	" ", " ", // no-break space
	"\x00", "", // NUL
)

// PostProcess normalises extracted page text: each line becomes
// single-space-separated tokens, NUL bytes are stripped, and typographic
// punctuation is replaced with ASCII equivalents.
func PostProcess(text string) string {
	text = punctReplacer.Replace(text)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}
