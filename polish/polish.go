// Package polish turns raw decoder text into readable dictation: spacing
// and punctuation cleanup, spoken punctuation, filler removal,
// capitalization and numbered lists.
package polish

import (
	"fmt"
	"strings"
	"unicode"
)

type Mode int

const (
	Off Mode = iota
	Basic
	Fluent
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Basic:
		return "basic"
	case Fluent:
		return "fluent"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "none":
		return Off, nil
	case "basic":
		return Basic, nil
	case "fluent", "":
		return Fluent, nil
	}
	return Off, fmt.Errorf("unknown polish mode %q", s)
}

// ProcessChunk polishes one incremental chunk. More text may follow, so no
// terminal punctuation is added, and line breaks at either edge are kept
// for joining with neighbouring chunks.
func ProcessChunk(text string, mode Mode, isFirst bool) string {
	raw := prepare(text, mode)
	s := Normalize(raw)
	if s == "" {
		if isFirst {
			return ""
		}
		return edgeBreaks(raw)
	}
	if mode != Off && isFirst {
		s = capitalizeFirst(s)
	}
	lead := edgeBreaks(raw[:len(raw)-len(strings.TrimLeftFunc(raw, unicode.IsSpace))])
	trail := edgeBreaks(raw[len(strings.TrimRightFunc(raw, unicode.IsSpace)):])
	if isFirst {
		lead = ""
	}
	return lead + s + trail
}

// ProcessFinal polishes a complete session transcript.
func ProcessFinal(text string, mode Mode) string {
	s := transform(text, mode)
	if mode == Off || s == "" {
		return s
	}
	if list, ok := FormatNumberedList(s); ok {
		return list
	}
	s = capitalizeSentences(s)
	return ensureTerminal(s)
}

func transform(text string, mode Mode) string {
	return Normalize(prepare(text, mode))
}

// prepare applies the token-level rewrites of mode without normalizing.
func prepare(text string, mode Mode) string {
	if mode == Off {
		return strings.ReplaceAll(text, "\r\n", "\n")
	}
	toks := tokenize(text)
	toks = substituteCommands(toks)
	if mode == Fluent {
		toks = removeFillers(toks)
	}
	return strings.Join(toks, " ")
}

// edgeBreaks keeps at most a paragraph break worth of newlines from ws.
func edgeBreaks(ws string) string {
	n := strings.Count(ws, "\n")
	if n > 2 {
		n = 2
	}
	return strings.Repeat("\n", n)
}

// tokenize splits on spaces and keeps every line break as its own token.
func tokenize(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var toks []string
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			toks = append(toks, "\n")
		}
		toks = append(toks, strings.Fields(line)...)
	}
	return toks
}

func wordKey(tok string) string {
	return strings.ToLower(strings.TrimFunc(tok, unicode.IsPunct))
}

func isOpening(r rune) bool {
	return strings.ContainsRune("¿¡\"'(«“", r)
}

func capitalizeFirst(s string) string {
	rs := []rune(s)
	for i, r := range rs {
		if unicode.IsSpace(r) || isOpening(r) {
			continue
		}
		if unicode.IsLetter(r) {
			rs[i] = unicode.ToUpper(r)
		}
		break
	}
	return string(rs)
}

func capitalizeSentences(s string) string {
	rs := []rune(s)
	capNext := true
	afterTerminal := false
	for i, r := range rs {
		switch {
		case r == '\n':
			capNext = true
			afterTerminal = false
		case unicode.IsSpace(r):
			if afterTerminal {
				capNext = true
				afterTerminal = false
			}
		case isTerminal(r):
			afterTerminal = true
		case isOpening(r):
			afterTerminal = false
		case unicode.IsLetter(r):
			if capNext {
				rs[i] = unicode.ToUpper(r)
			}
			capNext = false
			afterTerminal = false
		default:
			capNext = false
			afterTerminal = false
		}
	}
	return string(rs)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func ensureTerminal(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':'
	})
	if s == "" {
		return s
	}
	rs := []rune(s)
	if isTerminal(rs[len(rs)-1]) {
		return s
	}
	return s + "."
}

// CapitalizeFirst upper-cases the first letter of s, skipping opening
// quotes and inverted marks.
func CapitalizeFirst(s string) string {
	return capitalizeFirst(s)
}
