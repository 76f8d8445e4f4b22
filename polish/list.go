package polish

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var listMarkerRe = regexp.MustCompile(`(?:^|\s)(\d+)\.\s`)

// FormatNumberedList reformats text containing an inline "1. a 2. b" list
// as one item per line. It reports false unless there are at least two
// markers numbered consecutively from 1, each followed by content.
func FormatNumberedList(text string) (string, bool) {
	matches := listMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) < 2 {
		return "", false
	}

	items := make([]string, 0, len(matches))
	for i, m := range matches {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || n != i+1 {
			return "", false
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		item := strings.TrimSpace(text[m[1]:end])
		item = strings.TrimRightFunc(item, func(r rune) bool {
			return unicode.IsSpace(r) || strings.ContainsRune(".,;:", r)
		})
		if item == "" {
			return "", false
		}
		items = append(items, strconv.Itoa(n)+". "+capitalizeFirst(item))
	}

	var b strings.Builder
	preamble := strings.TrimRightFunc(text[:matches[0][0]], func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".,;:", r)
	})
	if preamble != "" {
		b.WriteString(capitalizeFirst(preamble))
		b.WriteString(":\n")
	}
	b.WriteString(strings.Join(items, "\n"))
	return b.String(), true
}
