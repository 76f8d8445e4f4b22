package polish

import (
	"strings"
	"unicode"
)

func isSpacePunct(r rune) bool {
	return strings.ContainsRune(",.;:!?", r)
}

// Normalize fixes whitespace around punctuation: no space before ,.;:!?,
// one space after unless a digit follows, single spaces inside a line, and
// at most one blank line between paragraphs. Explicit line breaks are kept.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = normalizeLine(line)
		if line == "" {
			blank++
			continue
		}
		if len(out) > 0 {
			if blank > 0 {
				out = append(out, "")
			}
		}
		blank = 0
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func normalizeLine(line string) string {
	rs := []rune(strings.Join(strings.Fields(line), " "))
	var b strings.Builder
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r == ' ' && i+1 < len(rs) && isSpacePunct(rs[i+1]) {
			continue
		}
		b.WriteRune(r)
		if !isSpacePunct(r) || i+1 >= len(rs) {
			continue
		}
		next := rs[i+1]
		if unicode.IsSpace(next) || unicode.IsDigit(next) || unicode.IsPunct(next) {
			continue
		}
		// Dotted words such as "e.g" or "example.com" stay joined.
		if r == '.' && i > 0 && unicode.IsLetter(rs[i-1]) && unicode.IsLower(next) {
			continue
		}
		b.WriteRune(' ')
	}
	return strings.TrimSpace(b.String())
}
