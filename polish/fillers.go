package polish

import (
	"regexp"
	"strings"
	"unicode"
)

// fillerRe matches hesitation tokens, including elongated forms like
// "ummm" or "eeeh".
var fillerRe = regexp.MustCompile(`^(?:u+h+|u+m+|e+h+|e+h*m+|h+m+|m{2,}|este)$`)

func isFiller(tok string) bool {
	return fillerRe.MatchString(wordKey(tok))
}

// removeFillers drops filler tokens. Punctuation trailing a filler moves to
// the previous word so sentence boundaries survive.
func removeFillers(toks []string) []string {
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		if tok == "\n" || !isFiller(tok) {
			out = append(out, tok)
			continue
		}
		trail := tok[len(strings.TrimRightFunc(tok, unicode.IsPunct)):]
		if trail == "" || len(out) == 0 {
			continue
		}
		prev := out[len(out)-1]
		if strings.Contains(prev, "\n") {
			continue
		}
		last := []rune(prev)[len([]rune(prev))-1]
		if !unicode.IsPunct(last) {
			out[len(out)-1] = prev + trail
		}
	}
	return out
}
