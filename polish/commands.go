package polish

import (
	"strings"
	"unicode"
)

type spokenCommand struct {
	words []string
	repl  string
	// clauseEnd commands are also ordinary words and only apply where a
	// clause ends: at the end of the text, before a line break, before
	// another command, or when the recognizer already punctuated them.
	clauseEnd bool
}

// spokenCommands maps dictated punctuation and layout phrases to their
// symbols. Entries are matched longest first so "punto y coma" is not read
// as "punto".
var spokenCommands = sortedCommands([]spokenCommand{
	{words: []string{"new", "paragraph"}, repl: "\n\n"},
	{words: []string{"new", "line"}, repl: "\n"},
	{words: []string{"nuevo", "párrafo"}, repl: "\n\n"},
	{words: []string{"nuevo", "parrafo"}, repl: "\n\n"},
	{words: []string{"punto", "y", "aparte"}, repl: ".\n\n"},
	{words: []string{"nueva", "línea"}, repl: "\n"},
	{words: []string{"nueva", "linea"}, repl: "\n"},
	{words: []string{"punto", "y", "seguido"}, repl: "."},
	{words: []string{"punto", "y", "coma"}, repl: ";"},
	{words: []string{"dos", "puntos"}, repl: ":"},
	{words: []string{"signo", "de", "interrogación"}, repl: "?"},
	{words: []string{"signo", "de", "exclamación"}, repl: "!"},
	{words: []string{"question", "mark"}, repl: "?"},
	{words: []string{"exclamation", "mark"}, repl: "!"},
	{words: []string{"exclamation", "point"}, repl: "!"},
	{words: []string{"full", "stop"}, repl: "."},
	{words: []string{"period"}, repl: ".", clauseEnd: true},
	{words: []string{"punto"}, repl: ".", clauseEnd: true},
	{words: []string{"comma"}, repl: ","},
	{words: []string{"coma"}, repl: ","},
	{words: []string{"semicolon"}, repl: ";"},
	{words: []string{"colon"}, repl: ":", clauseEnd: true},
})

func sortedCommands(cmds []spokenCommand) []spokenCommand {
	out := make([]spokenCommand, 0, len(cmds))
	for n := 3; n >= 1; n-- {
		for _, c := range cmds {
			if len(c.words) == n {
				out = append(out, c)
			}
		}
	}
	return out
}

func substituteCommands(toks []string) []string {
	out := make([]string, 0, len(toks))
	for i := 0; i < len(toks); {
		if cmd, ok := matchCommand(toks[i:]); ok {
			out = append(out, strings.Split(cmd.repl, " ")...)
			i += len(cmd.words)
			continue
		}
		out = append(out, toks[i])
		i++
	}
	return out
}

func matchCommand(toks []string) (spokenCommand, bool) {
	for _, c := range spokenCommands {
		if len(c.words) > len(toks) {
			continue
		}
		match := true
		for j, w := range c.words {
			if wordKey(toks[j]) != w {
				match = false
				break
			}
		}
		if match && (!c.clauseEnd || endsClause(toks, len(c.words))) {
			return c, true
		}
	}
	return spokenCommand{}, false
}

// endsClause reports whether the command made of toks[:n] closes a clause.
func endsClause(toks []string, n int) bool {
	last := toks[n-1]
	if r := []rune(last); unicode.IsPunct(r[len(r)-1]) {
		return true
	}
	if n == len(toks) || toks[n] == "\n" {
		return true
	}
	_, ok := matchCommand(toks[n:])
	return ok
}
