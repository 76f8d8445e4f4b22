// Package command recognizes spoken editing commands ("undo", "delete the
// last sentence", "I meant ...") in a decoded chunk.
package command

import (
	"regexp"
	"strings"
	"unicode"

	"murmur/polish"
)

type Kind int

const (
	None Kind = iota
	DeleteLastSentence
	Undo
	Redo
	Correction
)

func (k Kind) String() string {
	switch k {
	case DeleteLastSentence:
		return "delete_last_sentence"
	case Undo:
		return "undo"
	case Redo:
		return "redo"
	case Correction:
		return "correction"
	}
	return "none"
}

type Command struct {
	Kind Kind
	// Replacement is the polished content of a correction.
	Replacement string
}

type pattern struct {
	re   *regexp.Regexp
	kind Kind
}

// patterns are evaluated in order against the whole normalized chunk.
// Adding a language means adding rows here.
var patterns = []pattern{
	{regexp.MustCompile(`^(?:please )?(?:delete|remove|erase|scratch) (?:the )?last sentence$`), DeleteLastSentence},
	{regexp.MustCompile(`^(?:borra|borrar|elimina|eliminar|quita|quitar) (?:la )?(?:última|ultima) (?:frase|oración|oracion)$`), DeleteLastSentence},
	{regexp.MustCompile(`^(?:undo|undo that|deshacer|deshaz|deshazlo)$`), Undo},
	{regexp.MustCompile(`^(?:redo|redo that|rehacer|rehaz|rehazlo)$`), Redo},
	{regexp.MustCompile(`^(?:i meant|i mean|correction|quise decir|quiero decir|corrección|correccion)[,:]?\s+(.+)$`), Correction},
}

// Interpret classifies text. The second result is false for ordinary
// dictation content.
func Interpret(text string) (Command, bool) {
	s := normalize(text)
	if s == "" {
		return Command{}, false
	}
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		cmd := Command{Kind: p.kind}
		if p.kind == Correction {
			cmd.Replacement = polish.ProcessFinal(originalTail(text, m[1]), polish.Fluent)
			if cmd.Replacement == "" {
				return Command{}, false
			}
		}
		return cmd, true
	}
	return Command{}, false
}

func normalize(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".!?,;", r)
	})
}

// originalTail recovers the correction content with its original casing.
// normalize only lower-cases and trims trailing marks, so the content is the
// same number of runes at the end of the trimmed original.
func originalTail(text, lowered string) string {
	trimmed := []rune(strings.TrimRightFunc(strings.Join(strings.Fields(text), " "), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(".!?,;", r)
	}))
	n := len([]rune(lowered))
	if n > len(trimmed) {
		return lowered
	}
	return string(trimmed[len(trimmed)-n:])
}
